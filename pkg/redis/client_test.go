package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/config"
)

func TestIsNilError(t *testing.T) {
	if !IsNilError(goredis.Nil) {
		t.Error("redis.Nil not recognised")
	}
	if !IsNilError(fmt.Errorf("get: %w", goredis.Nil)) {
		t.Error("wrapped redis.Nil not recognised")
	}
	if IsNilError(fmt.Errorf("connection refused")) {
		t.Error("unrelated error treated as a miss")
	}
}

func TestFlushByPattern(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("skipping: TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := NewClient(ctx, config.RedisConfig{Addr: addr, PoolSize: 2})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	defer c.Close()

	for i := 0; i < 3; i++ {
		if err := c.Set(ctx, fmt.Sprintf("eftest:%d", i), "v", time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	deleted, err := c.FlushByPattern(ctx, "eftest:*")
	if err != nil {
		t.Fatalf("FlushByPattern: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	if _, err := c.Get(ctx, "eftest:0"); !IsNilError(err) {
		t.Errorf("Get after flush: %v", err)
	}
}
