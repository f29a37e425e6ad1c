package governor

import (
	"context"
	"fmt"
	"time"

	"bojmock/internal/common/cache"
)

const (
	rateKeyPrefix     = "runner:rate:"
	inFlightKeyPrefix = "runner:inflight:"
	// defaultSlotTTL expires a session counter whose owner died without
	// releasing.
	defaultSlotTTL = 10 * time.Minute
)

var acquireScript = cache.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

var releaseScript = cache.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current <= 1 then
  redis.call('DEL', KEYS[1])
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisStore shares the counters between replicas.
type RedisStore struct {
	cache   cache.Cache
	slotTTL time.Duration
}

// NewRedisStore creates a store over c. slotTTL <= 0 uses the default.
func NewRedisStore(c cache.Cache, slotTTL time.Duration) (*RedisStore, error) {
	if c == nil {
		return nil, fmt.Errorf("redis cache is required")
	}
	if slotTTL <= 0 {
		slotTTL = defaultSlotTTL
	}
	return &RedisStore{cache: c, slotTTL: slotTTL}, nil
}

func (s *RedisStore) Touch(ctx context.Context, participantID string, interval time.Duration) (bool, error) {
	return s.cache.SetNX(ctx, rateKeyPrefix+participantID, time.Now().UnixMilli(), interval)
}

func (s *RedisStore) TryAcquire(ctx context.Context, sessionID string, limit int) (bool, error) {
	ok, err := s.cache.EvalInt(ctx, acquireScript, []string{inFlightKeyPrefix + sessionID}, limit, s.slotTTL.Milliseconds())
	if err != nil {
		return false, err
	}
	return ok == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, sessionID string) error {
	_, err := s.cache.EvalInt(ctx, releaseScript, []string{inFlightKeyPrefix + sessionID})
	return err
}
