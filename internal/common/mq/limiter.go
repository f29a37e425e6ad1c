package mq

import "context"

// TokenLimiter bounds how many messages a subscription handles at once.
// A token is held from before the fetch until the handler returns.
type TokenLimiter struct {
	held chan struct{}
}

// NewTokenLimiter creates a limiter with size tokens; size below one means one.
func NewTokenLimiter(size int) *TokenLimiter {
	if size <= 0 {
		size = 1
	}
	return &TokenLimiter{held: make(chan struct{}, size)}
}

// Acquire blocks until a token is free or ctx is done.
func (l *TokenLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case l.held <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a token without waiting.
func (l *TokenLimiter) TryAcquire() bool {
	select {
	case l.held <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a token. Releasing more than was acquired is a no-op.
func (l *TokenLimiter) Release() {
	select {
	case <-l.held:
	default:
	}
}

// InUse reports how many tokens are held.
func (l *TokenLimiter) InUse() int {
	return len(l.held)
}

// Size is the token capacity.
func (l *TokenLimiter) Size() int {
	return cap(l.held)
}
