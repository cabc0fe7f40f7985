package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/pkg/logger"
	"github.com/okian/elorank/pkg/metrics"
)

const postgresBackend = "postgres"

// schema creates the tables if they do not exist.
var schema = []string{ //nolint:gochecknoglobals // migration statements
	`CREATE TABLE IF NOT EXISTS competitions (
		id      TEXT PRIMARY KEY,
		name    TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		type    TEXT NOT NULL,
		level   INT  NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS team_seasons (
		team_id     TEXT NOT NULL,
		season      TEXT NOT NULL,
		competition TEXT NOT NULL,
		PRIMARY KEY (team_id, season, competition)
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id                TEXT PRIMARY KEY,
		competition       TEXT   NOT NULL,
		season            TEXT   NOT NULL,
		home_id           TEXT   NOT NULL,
		away_id           TEXT   NOT NULL,
		home_goals        INT,
		away_goals        INT,
		ts                BIGINT NOT NULL,
		home_pre          DOUBLE PRECISION,
		home_pre_adjusted DOUBLE PRECISION,
		away_pre          DOUBLE PRECISION,
		away_pre_adjusted DOUBLE PRECISION,
		both_teams_scored BOOLEAN,
		rated_at          TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS matches_competition_season ON matches (competition, season, ts)`,
	`CREATE TABLE IF NOT EXISTS standings (
		competition TEXT   NOT NULL,
		season      TEXT   NOT NULL,
		teams       TEXT[] NOT NULL,
		points      JSONB  NOT NULL,
		top         JSONB  NOT NULL,
		bottom      JSONB  NOT NULL,
		final       JSONB  NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (competition, season)
	)`,
}

const matchColumns = `id, competition, season, home_id, away_id, home_goals, away_goals, ts,
	home_pre, home_pre_adjusted, away_pre, away_pre_adjusted, both_teams_scored, rated_at`

// Postgres is a Store backed by PostgreSQL through lib/pq.
type Postgres struct {
	db     *sql.DB
	logger logger.Logger
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to dsn, verifies the connection and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", ErrPersistence, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: pinging database: %w", ErrPersistence, err)
	}
	p := NewPostgres(db, opts...)
	if err := p.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB, opts ...Option) *Postgres {
	s := apply(opts)
	return &Postgres{db: db, logger: s.logger}
}

// Migrate creates the necessary tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, q := range schema {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return p.fail("migrate", err)
		}
	}
	return nil
}

func (p *Postgres) fail(op string, err error) error {
	metrics.RecordStoreError(postgresBackend, op)
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(postgresBackend, op, float64(time.Since(start).Milliseconds()))
}

// Matches implements MatchStore.
func (p *Postgres) Matches(ctx context.Context, competition, season string) ([]model.Match, error) {
	defer observe("matches", time.Now())
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE competition = $1 AND season = $2 ORDER BY ts, id`,
		competition, season)
	if err != nil {
		return nil, p.fail("matches", err)
	}
	return p.scanMatches(rows)
}

// Fixtures implements MatchStore.
func (p *Postgres) Fixtures(ctx context.Context, competitions []string) ([]model.Match, error) {
	defer observe("fixtures", time.Now())
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE competition = ANY($1) ORDER BY ts, id`,
		pq.Array(competitions))
	if err != nil {
		return nil, p.fail("fixtures", err)
	}
	return p.scanMatches(rows)
}

func (p *Postgres) scanMatches(rows *sql.Rows) ([]model.Match, error) {
	defer func() { _ = rows.Close() }()
	var out []model.Match
	for rows.Next() {
		var (
			m                model.Match
			hg, ag           sql.NullInt64
			hp, hpa, ap, apa sql.NullFloat64
			btts             sql.NullBool
			ratedAt          sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.Competition, &m.Season, &m.HomeID, &m.AwayID, &hg, &ag, &m.Timestamp,
			&hp, &hpa, &ap, &apa, &btts, &ratedAt); err != nil {
			return nil, p.fail("scan_match", err)
		}
		if hg.Valid {
			m.HomeGoals = model.Goals(int(hg.Int64))
		}
		if ag.Valid {
			m.AwayGoals = model.Goals(int(ag.Int64))
		}
		if hp.Valid && ap.Valid {
			m.Ratings = &model.Ratings{
				HomePre:         hp.Float64,
				HomePreAdjusted: hpa.Float64,
				AwayPre:         ap.Float64,
				AwayPreAdjusted: apa.Float64,
				BothTeamsScored: btts.Bool,
			}
		}
		if ratedAt.Valid {
			t := ratedAt.Time.UTC()
			m.RatedAt = &t
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, p.fail("scan_match", err)
	}
	return out, nil
}

// WriteRatings implements MatchStore in one transaction.
func (p *Postgres) WriteRatings(ctx context.Context, writes []model.MatchRatings, at time.Time) (err error) {
	defer observe("write_ratings", time.Now())
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return p.fail("write_ratings", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, `UPDATE matches SET
		home_pre = $2, home_pre_adjusted = $3, away_pre = $4, away_pre_adjusted = $5,
		both_teams_scored = $6, rated_at = $7
		WHERE id = $1`)
	if err != nil {
		return p.fail("write_ratings", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, w := range writes {
		r := w.Ratings
		res, err := stmt.ExecContext(ctx, w.MatchID, r.HomePre, r.HomePreAdjusted, r.AwayPre, r.AwayPreAdjusted, r.BothTeamsScored, at)
		if err != nil {
			return p.fail("write_ratings", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return p.fail("write_ratings", fmt.Errorf("match %s: %w", w.MatchID, ErrNotFound))
		}
	}
	if err := tx.Commit(); err != nil {
		return p.fail("write_ratings", err)
	}
	p.logger.Debug(ctx, "match ratings written", logger.Int("matches", len(writes)))
	return nil
}

// Competition implements MetadataStore.
func (p *Postgres) Competition(ctx context.Context, id string) (model.Competition, bool, error) {
	var c model.Competition
	err := p.db.QueryRowContext(ctx, `SELECT id, name, country, type, level FROM competitions WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Country, &c.Type, &c.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Competition{}, false, nil
	}
	if err != nil {
		return model.Competition{}, false, p.fail("competition", err)
	}
	return c, true, nil
}

// DomesticCompetition implements MetadataStore. Ties prefer the higher division.
func (p *Postgres) DomesticCompetition(ctx context.Context, teamID, season string) (string, bool, error) {
	var id string
	err := p.db.QueryRowContext(ctx, `SELECT ts.competition
		FROM team_seasons ts JOIN competitions c ON c.id = ts.competition
		WHERE ts.team_id = $1 AND ts.season = $2 AND c.type = $3
		ORDER BY c.level, ts.competition LIMIT 1`, teamID, season, string(model.Domestic)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, p.fail("domestic_competition", err)
	}
	return id, true, nil
}

// Standings implements StandingsStore.
func (p *Postgres) Standings(ctx context.Context, competition, season string) (model.Standings, bool, error) {
	st := model.Standings{Competition: competition, Season: season}
	var teams pq.StringArray
	var points, top, bottom, final []byte
	err := p.db.QueryRowContext(ctx, `SELECT teams, points, top, bottom, final, created_at
		FROM standings WHERE competition = $1 AND season = $2`, competition, season).
		Scan(&teams, &points, &top, &bottom, &final, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Standings{}, false, nil
	}
	if err != nil {
		return model.Standings{}, false, p.fail("standings", err)
	}
	st.Teams = []string(teams)
	for _, f := range []struct {
		raw []byte
		dst any
	}{{points, &st.Points}, {top, &st.Top}, {bottom, &st.Bottom}, {final, &st.Final}} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return model.Standings{}, false, p.fail("standings", err)
		}
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return st, true, nil
}

// SaveStandings implements StandingsStore with INSERT ... ON CONFLICT DO NOTHING.
func (p *Postgres) SaveStandings(ctx context.Context, st model.Standings) (bool, error) {
	var raw [4][]byte
	for i, v := range []any{st.Points, st.Top, st.Bottom, st.Final} {
		b, err := json.Marshal(v)
		if err != nil {
			return false, p.fail("save_standings", err)
		}
		raw[i] = b
	}
	res, err := p.db.ExecContext(ctx, `INSERT INTO standings
		(competition, season, teams, points, top, bottom, final, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (competition, season) DO NOTHING`,
		st.Competition, st.Season, pq.Array(st.Teams), raw[0], raw[1], raw[2], raw[3], st.CreatedAt)
	if err != nil {
		return false, p.fail("save_standings", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, p.fail("save_standings", err)
	}
	return n == 1, nil
}

// Seed inserts ds, skipping rows that already exist.
func (p *Postgres) Seed(ctx context.Context, ds Dataset) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return p.fail("seed", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, c := range ds.Competitions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO competitions (id, name, country, type, level)
			VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			c.ID, c.Name, c.Country, string(c.Type), c.Level); err != nil {
			return p.fail("seed", err)
		}
	}
	for _, ts := range ds.Memberships {
		if _, err := tx.ExecContext(ctx, `INSERT INTO team_seasons (team_id, season, competition)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, ts.TeamID, ts.Season, ts.Competition); err != nil {
			return p.fail("seed", err)
		}
	}
	for _, m := range ds.Matches {
		if _, err := tx.ExecContext(ctx, `INSERT INTO matches (id, competition, season, home_id, away_id, home_goals, away_goals, ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`,
			m.ID, m.Competition, m.Season, m.HomeID, m.AwayID, nullInt(m.HomeGoals), nullInt(m.AwayGoals), m.Timestamp); err != nil {
			return p.fail("seed", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return p.fail("seed", err)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// Close implements Store.
func (p *Postgres) Close() error {
	return p.db.Close()
}
