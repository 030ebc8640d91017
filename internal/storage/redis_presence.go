// Package storage holds adapters to stores outside the primary database.
package storage

import (
	"context"
	"os"
	"time"

	"social-app/internal/config"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: im:presence:<user>
// Value: instance id. The TTL bounds how long a crashed instance keeps a
// user looking online.
func presenceKey(user string) string { return "im:presence:" + user }

type RedisPresence struct {
	rdb      *redis.Client
	ttl      time.Duration
	instance string
}

// NewRedisPresence connects and pings. Callers treat a failure as "run
// without the mirror".
func NewRedisPresence(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*RedisPresence, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", cfg.Addr)
	}

	instance, err := os.Hostname()
	if err != nil {
		instance = "unknown"
	}
	return &RedisPresence{rdb: rdb, ttl: ttl, instance: instance}, nil
}

// Online marks the user online and renews the TTL.
func (p *RedisPresence) Online(ctx context.Context, userID string) error {
	return p.rdb.Set(ctx, presenceKey(userID), p.instance, p.ttl).Err()
}

// Offline deletes the key.
func (p *RedisPresence) Offline(ctx context.Context, userID string) error {
	return p.rdb.Del(ctx, presenceKey(userID)).Err()
}

// Lookup reports which instance holds the user, if any.
func (p *RedisPresence) Lookup(ctx context.Context, userID string) (string, bool, error) {
	val, err := p.rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (p *RedisPresence) Close() error {
	return p.rdb.Close()
}
