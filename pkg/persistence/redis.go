// Package persistence holds the host's durable and semi-durable
// session state: a Redis-backed token cache for fast auth lookups and
// a PostgreSQL audit log for session lifecycle events.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionCache caches session tokens so repeated auth checks
// (e.g. a viewer reconnecting mid-stream) don't round-trip to
// PostgreSQL.
type RedisSessionCache struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
}

// RedisSessionCacheConfig holds Redis connection settings.
type RedisSessionCacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration // fallback TTL when a session carries no explicit expiry
}

// NewRedisSessionCache dials Redis and verifies the connection.
func NewRedisSessionCache(config RedisSessionCacheConfig) (*RedisSessionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	log.Println("Redis session cache connection established")
	return &RedisSessionCache{
		client: client,
		ctx:    ctx,
		ttl:    ttl,
	}, nil
}

type cachedSession struct {
	SessionID string `json:"session_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// CacheSession records a session token and the session it belongs to.
// The key's TTL tracks the session's own expiry rather than the
// cache's default.
func (rc *RedisSessionCache) CacheSession(token, sessionID string, expiresAt time.Time) error {
	key := fmt.Sprintf("session:%s", token)
	data, err := json.Marshal(cachedSession{SessionID: sessionID, ExpiresAt: expiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = rc.ttl
	}
	return rc.client.Set(rc.ctx, key, data, ttl).Err()
}

// GetCachedSession retrieves a session token's owning session ID and
// expiry, or an error if the token is not cached.
func (rc *RedisSessionCache) GetCachedSession(token string) (sessionID string, expiresAt time.Time, err error) {
	key := fmt.Sprintf("session:%s", token)

	data, err := rc.client.Get(rc.ctx, key).Result()
	if err == redis.Nil {
		return "", time.Time{}, fmt.Errorf("session not in cache")
	}
	if err != nil {
		return "", time.Time{}, err
	}

	var cached cachedSession
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return "", time.Time{}, err
	}
	return cached.SessionID, time.Unix(cached.ExpiresAt, 0), nil
}

// InvalidateSession removes a token from the cache, forcing the next
// lookup to fall through to the audit log.
func (rc *RedisSessionCache) InvalidateSession(token string) error {
	key := fmt.Sprintf("session:%s", token)
	return rc.client.Del(rc.ctx, key).Err()
}

// IncrementCounter bumps a named counter (frames sent, auth
// failures, quality downgrades, ...).
func (rc *RedisSessionCache) IncrementCounter(name string) error {
	key := fmt.Sprintf("counter:%s", name)
	return rc.client.Incr(rc.ctx, key).Err()
}

// GetCounter reads a named counter's current value.
func (rc *RedisSessionCache) GetCounter(name string) (int64, error) {
	key := fmt.Sprintf("counter:%s", name)
	return rc.client.Get(rc.ctx, key).Int64()
}

// SetExpiry overrides the TTL on an arbitrary cache key.
func (rc *RedisSessionCache) SetExpiry(key string, duration time.Duration) error {
	return rc.client.Expire(rc.ctx, key, duration).Err()
}

// FlushAll clears the entire cache. Used by tests and the
// gen-access-code CLI's --reset flag; never called on the hot path.
func (rc *RedisSessionCache) FlushAll() error {
	return rc.client.FlushAll(rc.ctx).Err()
}

// GetStats returns cache occupancy and Redis's own stats section.
func (rc *RedisSessionCache) GetStats() (map[string]interface{}, error) {
	info := rc.client.Info(rc.ctx, "stats")
	if info.Err() != nil {
		return nil, info.Err()
	}

	sessionKeys, _ := rc.client.Keys(rc.ctx, "session:*").Result()

	return map[string]interface{}{
		"cached_sessions": len(sessionKeys),
		"info":            info.Val(),
	}, nil
}

// Close closes the Redis connection.
func (rc *RedisSessionCache) Close() error {
	log.Println("Closing Redis session cache connection")
	return rc.client.Close()
}

// Health checks whether Redis is reachable.
func (rc *RedisSessionCache) Health() error {
	return rc.client.Ping(rc.ctx).Err()
}
