package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestDialRedisAndCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := DialRedis(ctx, RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("DialRedis: %v", err)
	}
	defer c.Close()

	ok, err := c.SetNX(ctx, "gate", 1, time.Second)
	if err != nil || !ok {
		t.Fatalf("first SetNX = %v, %v", ok, err)
	}
	ok, err = c.SetNX(ctx, "gate", 1, time.Second)
	if err != nil || ok {
		t.Fatalf("second SetNX = %v, %v", ok, err)
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := c.SetNX(ctx, "gate", 1, time.Second); !ok {
		t.Fatalf("SetNX after expiry should succeed")
	}

	incr := NewScript(`return redis.call("INCRBY", KEYS[1], ARGV[1])`)
	n, err := c.EvalInt(ctx, incr, []string{"counter"}, 5)
	if err != nil || n != 5 {
		t.Fatalf("EvalInt = %d, %v", n, err)
	}
}

func TestDialRedisErrors(t *testing.T) {
	if _, err := DialRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
	if _, err := FromClient(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	cfg := RedisConfig{Addr: "x", PoolSize: 7}.WithDefaults()
	if cfg.PoolSize != 7 || cfg.MaxRetries != 3 || cfg.DialTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
