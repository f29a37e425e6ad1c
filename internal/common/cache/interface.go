// Package cache wraps the Redis commands shared by runner instances.
package cache

import (
	"context"
	"time"
)

// Cache is the subset of Redis the runner relies on. Every call is a single
// server-side atomic operation.
type Cache interface {
	// SetNX stores value under key only when key is absent.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// EvalInt runs script and returns its integer reply.
	EvalInt(ctx context.Context, script *Script, keys []string, args ...interface{}) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
