// Package governor guards the run service with a per-session admission
// ceiling and a per-participant minimum submission interval.
package governor

import (
	"context"
	"fmt"
	"strings"
	"time"

	appErr "bojmock/pkg/errors"
	"bojmock/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultMaxPerSession = 2
	defaultMinInterval   = 2 * time.Second
	defaultStoreTimeout  = 500 * time.Millisecond
)

// Store keeps the shared counters. Every method must be atomic with respect
// to concurrent callers.
type Store interface {
	// Touch records now as the participant's last accepted request unless
	// the previous one is younger than interval.
	Touch(ctx context.Context, participantID string, interval time.Duration) (bool, error)
	// TryAcquire increments the session's in-flight count if it is below limit.
	TryAcquire(ctx context.Context, sessionID string, limit int) (bool, error)
	// Release decrements the session's in-flight count, never below zero.
	Release(ctx context.Context, sessionID string) error
}

// Config holds the policy limits.
type Config struct {
	MaxPerSession int
	MinInterval   time.Duration
	// StoreTimeout bounds each store call.
	StoreTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPerSession <= 0 {
		c.MaxPerSession = defaultMaxPerSession
	}
	if c.MinInterval <= 0 {
		c.MinInterval = defaultMinInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	return c
}

// Governor applies both policies around the run service.
type Governor struct {
	cfg   Config
	store Store
}

// New creates a governor over store.
func New(cfg Config, store Store) (*Governor, error) {
	if store == nil {
		return nil, fmt.Errorf("governor store is required")
	}
	return &Governor{cfg: cfg.withDefaults(), store: store}, nil
}

// Limits returns the effective configuration.
func (g *Governor) Limits() Config {
	return g.cfg
}

// CheckRate accepts the request and records its time, or rejects it when the
// participant's previous accepted request is too recent.
func (g *Governor) CheckRate(ctx context.Context, participantID string) error {
	if strings.TrimSpace(participantID) == "" {
		return appErr.ValidationError("participant_id", "required")
	}
	ctxStore, cancel := context.WithTimeout(ctx, g.cfg.StoreTimeout)
	defer cancel()

	allowed, err := g.store.Touch(ctxStore, participantID, g.cfg.MinInterval)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate check failed")
	}
	if !allowed {
		return appErr.New(appErr.SubmitTooFrequently).
			WithMessagef("wait %s between runs", g.cfg.MinInterval).
			WithDetail("min_interval_ms", g.cfg.MinInterval.Milliseconds())
	}
	return nil
}

// Acquire takes one of the session's run slots. Every successful Acquire must
// be paired with Release.
func (g *Governor) Acquire(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return appErr.ValidationError("session_id", "required")
	}
	ctxStore, cancel := context.WithTimeout(ctx, g.cfg.StoreTimeout)
	defer cancel()

	acquired, err := g.store.TryAcquire(ctxStore, sessionID, g.cfg.MaxPerSession)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "admission check failed")
	}
	if !acquired {
		return appErr.New(appErr.RunConcurrencyLimit).
			WithMessagef("session already has %d runs in flight", g.cfg.MaxPerSession).
			WithDetail("max_per_session", g.cfg.MaxPerSession)
	}
	return nil
}

// Release frees a slot taken by Acquire. It runs even when ctx is already
// canceled so a failed run never keeps its slot.
func (g *Governor) Release(ctx context.Context, sessionID string) {
	ctxStore, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.StoreTimeout)
	defer cancel()
	if err := g.store.Release(ctxStore, sessionID); err != nil {
		logger.Warn(ctx, "release run slot failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Guard checks the rate gate, takes a slot, runs fn and releases the slot on
// every path including panics.
func (g *Governor) Guard(ctx context.Context, sessionID, participantID string, fn func(ctx context.Context) error) error {
	if err := g.CheckRate(ctx, participantID); err != nil {
		return err
	}
	return g.Admit(ctx, sessionID, fn)
}

// Admit runs fn inside a session slot without touching the rate gate.
func (g *Governor) Admit(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	if err := g.Acquire(ctx, sessionID); err != nil {
		return err
	}
	defer g.Release(ctx, sessionID)
	return fn(ctx)
}
