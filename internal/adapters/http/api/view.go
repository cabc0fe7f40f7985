package api

import (
	"sync/atomic"
	"time"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/rating"
)

// View is the read-only result of one completed run.
type View struct {
	RunID       string                      `json:"run_id"`
	CompletedAt time.Time                   `json:"completed_at"`
	Table       *rating.Store               `json:"-"` // read-only once published
	Calibration []model.Bin                 `json:"-"`
	Strengths   []model.CompetitionStrength `json:"-"`
	Report      *model.Report               `json:"report"`
}

// Holder publishes the latest View to handlers. The zero value holds nothing.
type Holder struct {
	v atomic.Pointer[View]
}

// Publish replaces the served view.
func (h *Holder) Publish(v View) {
	h.v.Store(&v)
}

// Latest returns the served view, if any run completed.
func (h *Holder) Latest() (*View, bool) {
	v := h.v.Load()
	return v, v != nil
}
