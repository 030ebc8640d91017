package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"social-app/internal/config"
	"social-app/pkg/testutil"

	"github.com/google/uuid"
)

// Runs against a real server; set REDIS_ADDR to enable.
func TestRedisPresence(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	p, err := NewRedisPresence(ctx, config.RedisConfig{Addr: addr}, time.Minute)
	testutil.IsNil(t, err, "connect")
	defer p.Close()

	user := "presence-test-" + uuid.NewString()
	_, online, err := p.Lookup(ctx, user)
	testutil.IsNil(t, err, "lookup")
	testutil.Assert(t, false, online, "starts offline")

	testutil.IsNil(t, p.Online(ctx, user), "online")
	instance, online, err := p.Lookup(ctx, user)
	testutil.IsNil(t, err, "lookup")
	testutil.Assert(t, true, online, "online")
	testutil.Assert(t, p.instance, instance, "instance recorded")

	ttl, err := p.rdb.TTL(ctx, presenceKey(user)).Result()
	testutil.IsNil(t, err, "ttl")
	testutil.IsTrue(t, ttl > 0 && ttl <= time.Minute, "ttl set")

	testutil.IsNil(t, p.Offline(ctx, user), "offline")
	_, online, err = p.Lookup(ctx, user)
	testutil.IsNil(t, err, "lookup")
	testutil.Assert(t, false, online, "cleared")
}

func TestPresenceKey(t *testing.T) {
	testutil.Assert(t, "im:presence:alice", presenceKey("alice"), "key layout")
}
