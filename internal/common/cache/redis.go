package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig selects and tunes the Redis connection.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"maxRetries"`
	PoolSize     int           `yaml:"poolSize"`
	MinIdleConns int           `yaml:"minIdleConns"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	PoolTimeout  time.Duration `yaml:"poolTimeout"`
}

// WithDefaults fills zero fields.
func (c RedisConfig) WithDefaults() RedisConfig {
	setInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setDur := func(v *time.Duration, def time.Duration) {
		if *v == 0 {
			*v = def
		}
	}
	setInt(&c.MaxRetries, 3)
	setInt(&c.PoolSize, 20)
	setInt(&c.MinIdleConns, 2)
	setDur(&c.DialTimeout, 5*time.Second)
	setDur(&c.ReadTimeout, 3*time.Second)
	setDur(&c.WriteTimeout, 3*time.Second)
	setDur(&c.PoolTimeout, 4*time.Second)
	return c
}

// RedisCache implements Cache on go-redis.
type RedisCache struct {
	client redis.UniversalClient
}

// DialRedis connects and pings before returning.
func DialRedis(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	cfg = cfg.WithDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

// FromClient wraps an existing client; Close closes it.
func FromClient(client redis.UniversalClient) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

// Script is Lua source run by hash, loaded on first use.
type Script struct {
	script *redis.Script
}

func NewScript(src string) *Script {
	return &Script{script: redis.NewScript(src)}
}

func (r *RedisCache) EvalInt(ctx context.Context, script *Script, keys []string, args ...interface{}) (int64, error) {
	return script.script.Run(ctx, r.client, keys, args...).Int64()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

var _ Cache = (*RedisCache)(nil)
