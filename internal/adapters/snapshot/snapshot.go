// Package snapshot persists the durable team rating snapshot loaded at the
// start of a run and saved at its end.
package snapshot

import (
	"context"
	"errors"

	"github.com/okian/elorank/internal/domain/model"
)

// ErrPersistence marks an unreadable or unwritable snapshot.
var ErrPersistence = errors.New("snapshot persistence failure")

// Store loads and replaces the rating snapshot as a whole.
type Store interface {
	// Load returns every team in the snapshot sorted by id. A snapshot that
	// does not exist yet is empty, not an error.
	Load(ctx context.Context) ([]model.Team, error)
	// Save replaces the snapshot atomically.
	Save(ctx context.Context, teams []model.Team) error
	Close() error
}
