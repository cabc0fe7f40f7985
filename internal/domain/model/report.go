package model

import "sort"

// SkipReason names a report category for skipped records.
type SkipReason string

// Report categories.
const (
	SkipMissingFields   SkipReason = "missing_fields"
	SkipDuplicateMatch  SkipReason = "duplicate_match"
	SkipMissingMetadata SkipReason = "missing_metadata"
	SkipSameCompetition SkipReason = "same_competition"
	SkipMissingRating   SkipReason = "missing_rating"
	SkipUnrated         SkipReason = "missing_ratings"
	SkipSeasonLabel     SkipReason = "season_label"
)

// Skip describes one skipped record.
type Skip struct {
	Stage   string     `json:"stage"`
	MatchID string     `json:"match_id,omitempty"`
	Reason  SkipReason `json:"reason"`
	Detail  string     `json:"detail,omitempty"`
}

// StageCount is processed vs skipped for one stage.
type StageCount struct {
	Processed int                `json:"processed"`
	Skipped   map[SkipReason]int `json:"skipped"`
}

// Report summarizes a run: records processed vs skipped per category and stage.
type Report struct {
	Stages map[string]*StageCount `json:"stages"`
	Skips  []Skip                 `json:"skips"`
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{Stages: make(map[string]*StageCount)}
}

func (r *Report) stage(name string) *StageCount {
	sc, ok := r.Stages[name]
	if !ok {
		sc = &StageCount{Skipped: make(map[SkipReason]int)}
		r.Stages[name] = sc
	}
	return sc
}

// Processed adds n processed records to stage.
func (r *Report) Processed(stage string, n int) {
	r.stage(stage).Processed += n
}

// Skip records a skipped record.
func (r *Report) Skip(s Skip) {
	r.stage(s.Stage).Skipped[s.Reason]++
	r.Skips = append(r.Skips, s)
}

// Merge folds other into r, keeping skip order.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for _, name := range other.StageNames() {
		sc := other.Stages[name]
		dst := r.stage(name)
		dst.Processed += sc.Processed
		for reason, n := range sc.Skipped {
			dst.Skipped[reason] += n
		}
	}
	r.Skips = append(r.Skips, other.Skips...)
}

// StageNames returns stage names sorted for stable output.
func (r *Report) StageNames() []string {
	names := make([]string, 0, len(r.Stages))
	for name := range r.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalSkipped returns the number of skipped records across stages.
func (r *Report) TotalSkipped() int {
	return len(r.Skips)
}
