package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/pkg/logger"
	"github.com/okian/elorank/pkg/metrics"
)

// File names inside a file store directory.
const (
	matchesFile      = "matches.json"
	competitionsFile = "competitions.json"
	membershipsFile  = "team_seasons.json"
	fileBackend      = "file"
)

// File is a Store over JSON documents: one directory holds matches,
// competitions and memberships, another one standings record per
// competition-season. The content is held in memory and written through.
type File struct {
	*Memory
	dir          string
	standingsDir string
	logger       logger.Logger
}

var _ Store = (*File)(nil)

// OpenFile loads a file store. Missing documents are treated as empty.
func OpenFile(ctx context.Context, dir, standingsDir string, opts ...Option) (*File, error) {
	s := apply(opts)
	start := time.Now()

	var ds Dataset
	for name, dst := range map[string]any{
		matchesFile:      &ds.Matches,
		competitionsFile: &ds.Competitions,
		membershipsFile:  &ds.Memberships,
	} {
		if err := readJSON(filepath.Join(dir, name), dst); err != nil {
			metrics.RecordStoreError(fileBackend, "open")
			return nil, err
		}
	}

	entries, err := os.ReadDir(standingsDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.RecordStoreError(fileBackend, "open")
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, standingsDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		var st model.Standings
		if err := readJSON(filepath.Join(standingsDir, name), &st); err != nil {
			metrics.RecordStoreError(fileBackend, "open")
			return nil, err
		}
		ds.Standings = append(ds.Standings, st)
	}

	f := &File{Memory: NewMemory(ds), dir: dir, standingsDir: standingsDir, logger: s.logger}
	metrics.RecordStoreLatency(fileBackend, "open", float64(time.Since(start).Milliseconds()))
	f.logger.Info(ctx, "file store opened",
		logger.String("dir", dir),
		logger.Int("matches", len(ds.Matches)),
		logger.Int("competitions", len(ds.Competitions)),
		logger.Int("standings", len(ds.Standings)),
	)
	return f, nil
}

// WriteRatings implements MatchStore and rewrites the matches document.
func (f *File) WriteRatings(ctx context.Context, writes []model.MatchRatings, at time.Time) error {
	start := time.Now()
	if err := f.Memory.WriteRatings(ctx, writes, at); err != nil {
		metrics.RecordStoreError(fileBackend, "write_ratings")
		return err
	}
	if err := writeJSON(filepath.Join(f.dir, matchesFile), f.Dataset().Matches); err != nil {
		metrics.RecordStoreError(fileBackend, "write_ratings")
		return err
	}
	metrics.RecordStoreLatency(fileBackend, "write_ratings", float64(time.Since(start).Milliseconds()))
	return nil
}

// SaveStandings implements StandingsStore. An existing file is never replaced.
func (f *File) SaveStandings(ctx context.Context, st model.Standings) (bool, error) {
	inserted, err := f.Memory.SaveStandings(ctx, st)
	if err != nil || !inserted {
		return inserted, err
	}
	if err := os.MkdirAll(f.standingsDir, 0o755); err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	path := filepath.Join(f.standingsDir, StandingsFileName(st.Competition, st.Season))
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		f.logger.Warn(ctx, "standings file already present", logger.String("path", path))
		return false, nil
	}
	if err != nil {
		metrics.RecordStoreError(fileBackend, "save_standings")
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		_ = out.Close()
		metrics.RecordStoreError(fileBackend, "save_standings")
		return false, fmt.Errorf("%w: encode %s: %w", ErrPersistence, path, err)
	}
	if err := out.Close(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return true, nil
}

// StandingsFileName maps a competition-season to a file name.
func StandingsFileName(competition, season string) string {
	r := strings.NewReplacer("/", "-", string(os.PathSeparator), "-", " ", "_")
	return r.Replace(competition) + "__" + r.Replace(season) + ".json"
}

func readJSON(path string, dst any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPersistence, path, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrPersistence, path, err)
	}
	return nil
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
