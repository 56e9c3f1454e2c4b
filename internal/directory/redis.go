package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ATHScanner/internal/model"
)

const DefaultRedisKey = "athscan:instruments"

// RedisCache stores the instrument list under one key with a TTL.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
}

type redisEntry struct {
	StoredAt    time.Time          `json:"stored_at"`
	Instruments []model.Instrument `json:"instruments"`
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(addr, password string, db int, key string, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newRedisCache(rdb, key, ttl), nil
}

func newRedisCache(client *redis.Client, key string, ttl time.Duration) *RedisCache {
	if key == "" {
		key = DefaultRedisKey
	}
	if ttl <= 0 {
		ttl = DefaultMaxAge
	}
	return &RedisCache{client: client, key: key, ttl: ttl, now: time.Now}
}

func (r *RedisCache) Load(ctx context.Context) ([]model.Instrument, time.Time, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis get: %w", err)
	}
	var entry redisEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, time.Time{}, fmt.Errorf("redis decode: %w", err)
	}
	return entry.Instruments, entry.StoredAt, nil
}

func (r *RedisCache) Store(ctx context.Context, list []model.Instrument) error {
	data, err := json.Marshal(redisEntry{StoredAt: r.now().UTC(), Instruments: list})
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, string(data), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error { return r.client.Close() }
