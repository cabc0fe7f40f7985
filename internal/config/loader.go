package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/elorank/internal/domain/calibration"
)

const envPrefix = "ELORANK_"

// list-valued keys accept comma separated env values.
var listKeys = map[string]bool{ //nolint:gochecknoglobals // read-only lookup
	"competitions":         true,
	"seasons":              true,
	"fixture_competitions": true,
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if ELORANK_CONFIG is set
//  3. env (prefix ELORANK_)
//
// The result is validated before it is returned.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// ELORANK_K_FACTOR -> k_factor (flat keys, underscores kept to match tags).
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if key == "config" {
			return "", nil
		}
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first configuration problem wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case !(c.KFactor > 0):
		return invalid("k_factor must be positive, got %v", c.KFactor)
	case !(c.Scale > 0):
		return invalid("scale must be positive, got %v", c.Scale)
	case math.IsNaN(c.HomeAdvantage) || math.IsInf(c.HomeAdvantage, 0):
		return invalid("home_advantage must be finite")
	case !(c.InitialRating > 0):
		return invalid("initial_rating must be positive, got %v", c.InitialRating)
	case c.StandingsN <= 0:
		return invalid("standings_n must be positive, got %d", c.StandingsN)
	case !(c.BinWidth > 0):
		return invalid("bin_width must be positive, got %v", c.BinWidth)
	case !(c.MaxGap > 0):
		return invalid("max_gap must be positive, got %v", c.MaxGap)
	case !hasWholeBins(c.BinWidth, c.MaxGap):
		return invalid("max_gap %v is not a multiple of bin_width %v", c.MaxGap, c.BinWidth)
	case c.BatchSize <= 0:
		return invalid("batch_size must be positive, got %d", c.BatchSize)
	case c.BatchWorkers <= 0:
		return invalid("batch_workers must be positive, got %d", c.BatchWorkers)
	case !(c.ZeroSumTolerance > 0):
		return invalid("zero_sum_tolerance must be positive")
	case len(c.Competitions) == 0:
		return invalid("competitions must not be empty")
	case len(c.Seasons) == 0:
		return invalid("seasons must not be empty")
	case c.Serve && c.Addr == "":
		return invalid("addr must not be empty when serving")
	}

	switch c.StoreDriver {
	case DriverFile:
		if c.StorePath == "" || c.StandingsDir == "" {
			return invalid("store_path and standings_dir are required for the file store")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return invalid("postgres_dsn is required for the postgres store")
		}
	default:
		return invalid("unknown store_driver %q", c.StoreDriver)
	}

	switch c.SnapshotDriver {
	case DriverFile:
		if c.SnapshotPath == "" {
			return invalid("snapshot_path is required for the file snapshot")
		}
	case DriverRedis:
		if c.RedisAddr == "" || c.RedisKey == "" {
			return invalid("redis_addr and redis_key are required for the redis snapshot")
		}
	default:
		return invalid("unknown snapshot_driver %q", c.SnapshotDriver)
	}
	return nil
}

func hasWholeBins(width, maxGap float64) bool {
	_, ok := calibration.InnerBins(width, maxGap)
	return ok
}
