package snapshot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/elorank/internal/adapters/snapshot"
	"github.com/okian/elorank/internal/domain/model"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func teams() []model.Team {
	at := time.Unix(1_800_000_000, 0).UTC()
	return []model.Team{
		{ID: "b", Rating: 1492.914, UpdatedAt: at},
		{ID: "a", Rating: 1507.086, UpdatedAt: at},
	}
}

func contract(ctx context.Context, s snapshot.Store) {
	Convey("Then an absent snapshot loads empty", func() {
		got, err := s.Load(ctx)
		So(err, ShouldBeNil)
		So(got, ShouldBeEmpty)
	})

	Convey("When a snapshot is saved", func() {
		So(s.Save(ctx, teams()), ShouldBeNil)

		Convey("Then it loads back sorted by id", func() {
			got, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[0].ID, ShouldEqual, "a")
			So(got[0].Rating, ShouldEqual, 1507.086)
			So(got[1].UpdatedAt.Equal(teams()[0].UpdatedAt), ShouldBeTrue)
		})

		Convey("And a smaller snapshot replaces it", func() {
			So(s.Save(ctx, teams()[:1]), ShouldBeNil)
			got, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			So(got[0].ID, ShouldEqual, "b")
		})
	})
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	Convey("Given a redis snapshot", t, func() {
		mr, err := miniredis.Run()
		So(err, ShouldBeNil)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		s := snapshot.NewRedis(rdb, "elorank:ratings")
		Reset(func() {
			_ = s.Close()
			mr.Close()
		})

		contract(ctx, s)

		Convey("When the hash holds a corrupt entry", func() {
			mr.HSet("elorank:ratings", "x", "{")
			_, err := s.Load(ctx)

			Convey("Then loading fails", func() {
				So(errors.Is(err, snapshot.ErrPersistence), ShouldBeTrue)
			})
		})

		Convey("When redis is gone", func() {
			mr.Close()
			err := s.Save(ctx, teams())

			Convey("Then saving fails", func() {
				So(errors.Is(err, snapshot.ErrPersistence), ShouldBeTrue)
			})
		})
	})
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	Convey("Given a file snapshot", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "ratings.json")
		s := snapshot.NewFile(path)

		contract(ctx, s)

		Convey("When the file is corrupt", func() {
			So(os.MkdirAll(filepath.Dir(path), 0o755), ShouldBeNil)
			So(os.WriteFile(path, []byte("[{"), 0o600), ShouldBeNil)
			_, err := s.Load(ctx)

			Convey("Then loading fails", func() {
				So(errors.Is(err, snapshot.ErrPersistence), ShouldBeTrue)
			})
		})
	})
}
