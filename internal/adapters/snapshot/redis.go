package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const redisBackend = "redis"

type entry struct {
	Rating    float64   `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Redis keeps the snapshot in one hash: field team id, value JSON entry.
type Redis struct {
	client *redis.Client
	key    string
}

var _ Store = (*Redis)(nil)

// NewRedis returns a Redis snapshot stored under key.
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Load implements Store.
func (r *Redis) Load(ctx context.Context) ([]model.Team, error) {
	start := time.Now()
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		metrics.RecordStoreError(redisBackend, "load")
		return nil, fmt.Errorf("%w: hgetall %s: %w", ErrPersistence, r.key, err)
	}
	teams := make([]model.Team, 0, len(fields))
	for id, raw := range fields {
		var e entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			metrics.RecordStoreError(redisBackend, "load")
			return nil, fmt.Errorf("%w: team %s: %w", ErrPersistence, id, err)
		}
		teams = append(teams, model.Team{ID: id, Rating: e.Rating, UpdatedAt: e.UpdatedAt.UTC()})
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	metrics.RecordStoreLatency(redisBackend, "load", float64(time.Since(start).Milliseconds()))
	return teams, nil
}

// Save implements Store inside MULTI/EXEC so readers never see a partial snapshot.
func (r *Redis) Save(ctx context.Context, teams []model.Team) error {
	start := time.Now()
	values := make([]any, 0, 2*len(teams))
	for _, t := range teams {
		b, err := json.Marshal(entry{Rating: t.Rating, UpdatedAt: t.UpdatedAt})
		if err != nil {
			return fmt.Errorf("%w: team %s: %w", ErrPersistence, t.ID, err)
		}
		values = append(values, t.ID, string(b))
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values...)
		}
		return nil
	})
	if err != nil {
		metrics.RecordStoreError(redisBackend, "save")
		return fmt.Errorf("%w: save %s: %w", ErrPersistence, r.key, err)
	}
	metrics.RecordSnapshotSaved()
	metrics.RecordStoreLatency(redisBackend, "save", float64(time.Since(start).Milliseconds()))
	return nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.client.Close()
}
