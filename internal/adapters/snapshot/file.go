package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/pkg/metrics"
)

// File keeps the snapshot as a JSON array of teams.
type File struct {
	path string
}

var _ Store = (*File)(nil)

// NewFile returns a File snapshot at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load implements Store.
func (f *File) Load(_ context.Context) ([]model.Team, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordStoreError("file", "load")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	var teams []model.Team
	if err := json.Unmarshal(b, &teams); err != nil {
		metrics.RecordStoreError("file", "load")
		return nil, fmt.Errorf("%w: decode %s: %w", ErrPersistence, f.path, err)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

// Save implements Store by writing a temp file and renaming it over path.
func (f *File) Save(_ context.Context, teams []model.Team) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	b, err := json.MarshalIndent(teams, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		metrics.RecordStoreError("file", "save")
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	metrics.RecordSnapshotSaved()
	return nil
}

// Close implements Store.
func (f *File) Close() error { return nil }
