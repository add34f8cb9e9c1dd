package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quorum/api/internal/util"
)

// txAttempts bounds the optimistic retry loop in RunTransaction.
const txAttempts = 8

// RedisStore implements Store on Redis. Each document lives as a JSON string
// at doc:<collection>:<id>; a per-collection sorted set scored by creation
// time provides the ordered index.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func indexKey(collection string) string {
	return "idx:" + collection
}

// createdAtScore derives the index score from the document's createdAt
// field, falling back to the current time when the field is absent.
func createdAtScore(fields map[string]any) float64 {
	createdAt := Time(fields, "createdAt")
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return float64(createdAt.UnixMicro())
}

func (s *RedisStore) CreateDocument(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := util.NewID("")
	if err := s.SetDocument(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) SetDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(collection, id), data, 0)
		pipe.ZAdd(ctx, indexKey(collection), redis.Z{Score: createdAtScore(fields), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("write document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *RedisStore) GetDocument(ctx context.Context, collection, id string) (map[string]any, error) {
	raw, err := s.client.Get(ctx, docKey(collection, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal document %s/%s: %w", collection, id, err)
	}
	return fields, nil
}

func (s *RedisStore) QueryDocuments(ctx context.Context, q Query) ([]Document, error) {
	var ids []string
	var err error
	if q.Descending {
		ids, err = s.client.ZRevRange(ctx, indexKey(q.Collection), 0, -1).Result()
	} else {
		ids, err = s.client.ZRange(ctx, indexKey(q.Collection), 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("query index %s: %w", q.Collection, err)
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(q.Collection, id)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query documents %s: %w", q.Collection, err)
	}

	results := make([]Document, 0, len(ids))
	for i, raw := range raws {
		payload, ok := raw.(string)
		if !ok {
			// Index entry whose document was deleted out of band.
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(payload), &fields); err != nil {
			return nil, fmt.Errorf("unmarshal document %s/%s: %w", q.Collection, ids[i], err)
		}
		if q.FilterField != "" && String(fields, q.FilterField) != q.FilterValue {
			continue
		}
		results = append(results, Document{ID: ids[i], Fields: fields})
		if q.Limit > 0 && len(results) == q.Limit {
			break
		}
	}
	return results, nil
}

// RunTransaction implements the read-modify-write with WATCH-based
// optimistic locking. A concurrent write to the same document between the
// read and the queued write fails the EXEC, and the whole closure reruns.
func (s *RedisStore) RunTransaction(ctx context.Context, collection, id string, update UpdateFunc) error {
	key := docKey(collection, id)

	for attempt := 0; attempt < txAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("read document %s/%s: %w", collection, id, err)
			}

			var fields map[string]any
			if err := json.Unmarshal([]byte(raw), &fields); err != nil {
				return fmt.Errorf("unmarshal document %s/%s: %w", collection, id, err)
			}

			updated, err := update(fields)
			if err != nil {
				return err
			}

			data, err := json.Marshal(updated)
			if err != nil {
				return fmt.Errorf("marshal document: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (s *RedisStore) CountDocuments(ctx context.Context, collection string) (int64, error) {
	count, err := s.client.ZCard(ctx, indexKey(collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("count documents %s: %w", collection, err)
	}
	return count, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
