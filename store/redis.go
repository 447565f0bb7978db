package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const maxPatchRetries = 5

// RedisStore keeps each table in one Redis hash: field = record ID, value =
// JSON document.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects lazily to addr. Keys are namespaced under prefix.
func NewRedisStore(addr, password, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "library"
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
	}
}

func (s *RedisStore) key(table string) string {
	return s.prefix + ":" + table
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get fetches a single document.
func (s *RedisStore) Get(ctx context.Context, table, id string) ([]byte, error) {
	data, err := s.client.HGet(ctx, s.key(table), id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return data, nil
}

// GetAll returns matching documents ordered by ID.
func (s *RedisStore) GetAll(ctx context.Context, table string, filter Filter) ([][]byte, error) {
	rows, err := s.client.HGetAll(ctx, s.key(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([][]byte, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, []byte(rows[id]))
	}
	return filterDocs(docs, filter)
}

// Put stores or replaces a document.
func (s *RedisStore) Put(ctx context.Context, table, id string, doc []byte) error {
	if err := checkKey(table, id); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key(table), id, doc).Err(); err != nil {
		return fmt.Errorf("put %s/%s: %w", table, id, err)
	}
	return nil
}

// Patch merges fields into an existing document. The read-modify-write runs
// under WATCH and is retried if another client changes the hash meanwhile.
func (s *RedisStore) Patch(ctx context.Context, table, id string, fields map[string]any) error {
	key := s.key(table)
	for attempt := 0; attempt < maxPatchRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.HGet(ctx, key, id).Bytes()
			if err == redis.Nil {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			merged, err := mergeFields(data, fields)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, id, merged)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("patch %s/%s: %w", table, id, err)
		}
		return nil
	}
	return fmt.Errorf("patch %s/%s: too much contention", table, id)
}

// Delete removes a document.
func (s *RedisStore) Delete(ctx context.Context, table, id string) error {
	n, err := s.client.HDel(ctx, s.key(table), id).Result()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
