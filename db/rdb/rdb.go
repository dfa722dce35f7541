// Package rdb keeps the remote snapshot in redis and guards writes with WATCH.
package rdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	dbt "tracker/db/db"
)

const maxTxRetries = 5

// NewClient parses a redis:// URL into a client.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type RedisSnapshotStore struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshotStore stores the snapshot under "route:snapshot:<scope>".
func NewRedisSnapshotStore(client *redis.Client, scope string) *RedisSnapshotStore {
	if scope == "" {
		scope = "default"
	}
	return &RedisSnapshotStore{client: client, key: "route:snapshot:" + scope}
}

func (s *RedisSnapshotStore) Fetch(ctx context.Context) (*dbt.Snapshot, error) {
	return s.read(ctx, s.client)
}

func (s *RedisSnapshotStore) read(ctx context.Context, c getter) (*dbt.Snapshot, error) {
	raw, err := c.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.key, err)
	}
	var snapshot dbt.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		log.Printf("[storage] %s holds malformed JSON, treating as absent: %v", s.key, err)
		return nil, nil
	}
	return &snapshot, nil
}

// Save runs the conflict check and the write in one optimistic transaction,
// retrying when another client touches the key in between.
func (s *RedisSnapshotStore) Save(ctx context.Context, snapshot dbt.Snapshot, opts dbt.SaveOptions) (dbt.Snapshot, error) {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return dbt.Snapshot{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		stored, err := s.read(ctx, tx)
		if err != nil {
			return err
		}
		if err := dbt.CheckConflict(stored, opts); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, encoded, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return dbt.Snapshot{}, err
		}
		return dbt.CloneSnapshot(snapshot), nil
	}
	return dbt.Snapshot{}, fmt.Errorf("failed to save %s after %d attempts: %w", s.key, maxTxRetries, err)
}

func (s *RedisSnapshotStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
