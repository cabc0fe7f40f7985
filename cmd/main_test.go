package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/elorank/internal/adapters/export"
	"github.com/okian/elorank/internal/adapters/http/api"
	"github.com/okian/elorank/internal/adapters/snapshot"
	"github.com/okian/elorank/internal/config"
	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWithWriter(io.Discard, "text"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatal(err)
	}
}

func seedStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	m := func(id, home, away string, hg, ag int, ts int64) model.Match {
		return model.Match{
			ID: id, Competition: "ENG-1", Season: "2023/2024",
			HomeID: home, AwayID: away,
			HomeGoals: model.Goals(hg), AwayGoals: model.Goals(ag),
			Timestamp: ts,
		}
	}
	writeJSON(t, filepath.Join(dir, "matches.json"), []model.Match{
		m("m1", "A", "B", 2, 1, 100),
		m("m2", "B", "C", 0, 0, 200),
		m("m3", "C", "A", 1, 3, 300),
	})
	writeJSON(t, filepath.Join(dir, "competitions.json"), []model.Competition{
		{ID: "ENG-1", Name: "Premier League", Type: model.Domestic, Level: 1},
	})
	return dir
}

func setBaseEnv(t *testing.T, storeDir string) string {
	out := filepath.Join(t.TempDir(), "out")
	t.Setenv("ELORANK_COMPETITIONS", "ENG-1")
	t.Setenv("ELORANK_SEASONS", "2023/2024")
	t.Setenv("ELORANK_STORE_PATH", storeDir)
	t.Setenv("ELORANK_STANDINGS_DIR", filepath.Join(storeDir, "standings"))
	t.Setenv("ELORANK_SNAPSHOT_PATH", filepath.Join(storeDir, "ratings.json"))
	t.Setenv("ELORANK_OUTPUT_DIR", out)
	return out
}

func TestRun(t *testing.T) {
	convey.Convey("Given a file store and a file snapshot", t, func() {
		dir := seedStore(t)
		out := setBaseEnv(t, dir)

		convey.Convey("When the batch runs", func() {
			err := run(context.Background())

			convey.Convey("Then every artifact is written", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, path := range []string{
					filepath.Join(out, export.CalibrationFile),
					filepath.Join(out, export.RatingsFile),
					filepath.Join(dir, "ratings.json"),
					filepath.Join(dir, "standings", "ENG-1__2023-2024.json"),
				} {
					_, statErr := os.Stat(path)
					convey.So(statErr, convey.ShouldBeNil)
				}
				_, statErr := os.Stat(filepath.Join(out, export.StrengthsFile))
				convey.So(os.IsNotExist(statErr), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a redis snapshot", t, func() {
		mr := miniredis.RunT(t)
		dir := seedStore(t)
		setBaseEnv(t, dir)
		t.Setenv("ELORANK_SNAPSHOT_DRIVER", "redis")
		t.Setenv("ELORANK_REDIS_ADDR", mr.Addr())

		convey.Convey("When the batch runs", func() {
			err := run(context.Background())

			convey.Convey("Then the snapshot hash holds every team", func() {
				convey.So(err, convey.ShouldBeNil)
				keys, hErr := mr.HKeys("elorank:ratings")
				convey.So(hErr, convey.ShouldBeNil)
				convey.So(keys, convey.ShouldHaveLength, 3)
			})
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("ELORANK_COMPETITIONS", "")
		err := run(context.Background())
		convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
	})
}

func TestOpenBackends(t *testing.T) {
	convey.Convey("Given configurations for each backend", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.StorePath = t.TempDir()
		cfg.StandingsDir = t.TempDir()

		convey.Convey("Then the file store opens on an empty directory", func() {
			store, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(store.Close(), convey.ShouldBeNil)
		})

		convey.Convey("Then an unknown store driver is rejected", func() {
			cfg.StoreDriver = "sqlite"
			_, err := openStore(ctx, cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Then the snapshot driver picks the backend", func() {
			_, isFile := openSnapshot(cfg).(*snapshot.File)
			convey.So(isFile, convey.ShouldBeTrue)

			cfg.SnapshotDriver = config.DriverRedis
			snap := openSnapshot(cfg)
			_, isRedis := snap.(*snapshot.Redis)
			convey.So(isRedis, convey.ShouldBeTrue)
			_ = snap.Close()
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given the serving router", t, func() {
		ctx := context.Background()
		holder := &api.Holder{}
		r := newRouter(ctx, holder)

		convey.Convey("Then the OpenAPI document and the API share it", func() {
			for target, want := range map[string]int{
				"/openapi.yaml": http.StatusOK,
				"/healthz":      http.StatusOK,
				"/ratings":      http.StatusServiceUnavailable,
			} {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))
				convey.So(rec.Code, convey.ShouldEqual, want)
			}
		})
	})
}

func TestServeShutdown(t *testing.T) {
	convey.Convey("Given a server on a free port", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- serve(ctx, "127.0.0.1:0", http.NotFoundHandler()) }()

		convey.Convey("When the context is cancelled", func() {
			cancel()
			convey.So(<-done, convey.ShouldBeNil)
		})
	})
}
