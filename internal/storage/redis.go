package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ensure RedisStorage implements the Storage interface
var _ Storage = (*RedisStorage)(nil)

// RedisStorage backs sessions and relay targets with Redis. TTLs are enforced
// by Redis itself; read-once relay semantics use GETDEL.
type RedisStorage struct {
	client     *redis.Client
	sessionTTL time.Duration
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(ctx context.Context, redisURL string, sessionTTL time.Duration) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStorage{
		client:     client,
		sessionTTL: sessionTTL,
	}, nil
}

func sessionKey(key string) string {
	return "nina:session:" + key
}

func relayKey(id string) string {
	return "nina:relay:" + id
}

const sessionIndexKey = "nina:sessions"

func (s *RedisStorage) SetSession(ctx context.Context, rec SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(rec.Key), data, s.sessionTTL)
	pipe.SAdd(ctx, sessionIndexKey, rec.Key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStorage) GetSession(ctx context.Context, key string) (*SessionRecord, error) {
	val, err := s.client.Get(ctx, sessionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec SessionRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &rec, nil
}

func (s *RedisStorage) DeleteSession(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(key))
	pipe.SRem(ctx, sessionIndexKey, key)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStorage) ListActiveSessions(ctx context.Context) ([]SessionRecord, error) {
	keys, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, err
	}

	out := make([]SessionRecord, 0, len(keys))
	for _, key := range keys {
		rec, err := s.GetSession(ctx, key)
		if errors.Is(err, ErrSessionNotFound) {
			// Expired under us; drop from the index
			s.client.SRem(ctx, sessionIndexKey, key)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *RedisStorage) PutRelayTarget(ctx context.Context, id, target string, ttl time.Duration) error {
	return s.client.Set(ctx, relayKey(id), target, ttl).Err()
}

func (s *RedisStorage) TakeRelayTarget(ctx context.Context, id string) (string, error) {
	val, err := s.client.GetDel(ctx, relayKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrRelayTargetNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
