// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Validate before any processing; failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
)

// Store and snapshot drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Serve keeps the process up after a run to serve the read-only API.
	Serve bool `koanf:"serve"`

	// Rating model.
	KFactor       float64 `koanf:"k_factor"`
	HomeAdvantage float64 `koanf:"home_advantage"`
	Scale         float64 `koanf:"scale"`
	InitialRating float64 `koanf:"initial_rating"`
	StandingsN    int     `koanf:"standings_n"`

	// Calibration.
	BinWidth      float64 `koanf:"bin_width"`
	MaxGap        float64 `koanf:"max_gap"`
	MinBinSamples int64   `koanf:"min_bin_samples"`
	BatchSize     int     `koanf:"batch_size"`
	BatchWorkers  int     `koanf:"batch_workers"`

	// Competitions and Seasons enumerate the domestic competition-seasons to rate.
	Competitions []string `koanf:"competitions"`
	Seasons      []string `koanf:"seasons"`

	// FixtureCompetitions lists competitions whose matches feed the strength
	// solver. Empty disables the solver stage.
	FixtureCompetitions []string `koanf:"fixture_competitions"`

	// Match, metadata and standings store.
	StoreDriver  string `koanf:"store_driver"`
	StorePath    string `koanf:"store_path"`
	StandingsDir string `koanf:"standings_dir"`
	PostgresDSN  string `koanf:"postgres_dsn"`

	// Rating snapshot.
	SnapshotDriver string `koanf:"snapshot_driver"`
	SnapshotPath   string `koanf:"snapshot_path"`
	RedisAddr      string `koanf:"redis_addr"`
	RedisKey       string `koanf:"redis_key"`

	// OutputDir receives the CSV artifacts.
	OutputDir string `koanf:"output_dir"`

	// ZeroSumTolerance bounds the solver offset sum.
	ZeroSumTolerance float64 `koanf:"zero_sum_tolerance"`
}

// New creates a Config with reference defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		KFactor:          20,
		HomeAdvantage:    100,
		Scale:            500,
		InitialRating:    1500,
		StandingsN:       3,
		BinWidth:         50,
		MaxGap:           500,
		MinBinSamples:    1,
		BatchSize:        5000,
		BatchWorkers:     runtime.NumCPU(),
		StoreDriver:      DriverFile,
		StorePath:        "data/store",
		StandingsDir:     "data/standings",
		SnapshotDriver:   DriverFile,
		SnapshotPath:     "data/ratings.json",
		RedisAddr:        "localhost:6379",
		RedisKey:         "elorank:ratings",
		OutputDir:        "out",
		ZeroSumTolerance: 1e-6,
	}
}
