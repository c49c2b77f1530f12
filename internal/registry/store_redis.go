package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Open connects to REDIS_URL and pings it.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis registry")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, ttl), nil
}

func (s *RedisStore) keyMeta(id string) string { return "sess:" + strings.TrimSpace(id) }
func (s *RedisStore) keyActive() string        { return "sess:active" }

func (s *RedisStore) Save(ctx context.Context, meta *SessionMeta) error {
	if meta == nil || strings.TrimSpace(meta.ID) == "" {
		return ErrInvalidArgs
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keyMeta(meta.ID), raw, s.ttl)
	if meta.State == StateActive {
		pipe.SAdd(ctx, s.keyActive(), meta.ID)
		pipe.Expire(ctx, s.keyActive(), s.ttl)
	} else {
		pipe.SRem(ctx, s.keyActive(), meta.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, id string) (*SessionMeta, error) {
	raw, err := s.rdb.Get(ctx, s.keyMeta(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m SessionMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *RedisStore) ListActive(ctx context.Context) ([]*SessionMeta, error) {
	ids, err := s.rdb.SMembers(ctx, s.keyActive()).Result()
	if err != nil {
		return nil, err
	}
	var out []*SessionMeta
	for _, id := range ids {
		m, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if m == nil {
			// meta expired before the index entry; drop the stale member
			_ = s.rdb.SRem(ctx, s.keyActive(), id).Err()
			continue
		}
		if m.State != StateActive {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}
