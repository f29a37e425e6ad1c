package mq

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const fetchBackoff = 100 * time.Millisecond

type publishFunc func(ctx context.Context, topic string, m *Message) error

// subscription runs one fetch loop and up to opts.Concurrency handlers.
type subscription struct {
	topic   string
	handler HandlerFunc
	opts    SubscribeOptions
	parent  context.Context
	publish publishFunc
	tokens  *TokenLimiter

	reader  messageReader
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	commits *commitTracker
}

func newSubscription(parent context.Context, topic string, h HandlerFunc, opts SubscribeOptions, publish publishFunc) *subscription {
	return &subscription{
		topic:   topic,
		handler: h,
		opts:    opts,
		parent:  parent,
		publish: publish,
		tokens:  NewTokenLimiter(opts.Concurrency),
		commits: newCommitTracker(),
	}
}

func (s *subscription) start(r messageReader) {
	ctx, cancel := context.WithCancel(s.parent)
	s.reader, s.cancel = r, cancel
	// offsets left unfinished by a previous run are redelivered by the reader
	s.commits = newCommitTracker()
	s.wg.Add(1)
	go s.fetchLoop(ctx, r)
}

func (s *subscription) stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	r := s.reader
	s.reader = nil
	return r.Close()
}

func (s *subscription) fetchLoop(ctx context.Context, r messageReader) {
	defer s.wg.Done()
	for {
		// take the token before fetching so no message sits uncommitted
		// while every handler slot is busy
		if s.tokens.Acquire(ctx) != nil {
			return
		}
		km, err := r.FetchMessage(ctx)
		if err != nil {
			s.tokens.Release()
			if ctx.Err() != nil {
				return
			}
			time.Sleep(fetchBackoff)
			continue
		}
		slot := s.commits.track(km)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.tokens.Release()
			if s.deliver(ctx, km) {
				_ = s.commits.complete(ctx, r, slot)
			}
		}()
	}
}

// deliver handles km until it succeeds or runs out of retries and reports
// whether its offset may be committed. It reports false when ctx ends
// first so another member redelivers.
func (s *subscription) deliver(ctx context.Context, km kafka.Message) bool {
	m := fromKafkaMessage(km)
	if m.MaxRetries == 0 {
		m.MaxRetries = s.opts.MaxRetries
	}
	if ttl := s.opts.MessageTTL; ttl > 0 && !m.Timestamp.IsZero() && time.Since(m.Timestamp) > ttl {
		return true
	}

	for s.handler(ctx, m) != nil {
		if m.RetryCount++; m.RetryCount > m.MaxRetries {
			return s.deadLetter(ctx, m)
		}
		if !sleepCtx(ctx, s.opts.RetryDelay) {
			return false
		}
	}
	return true
}

// deadLetter publishes m until the broker accepts it.
func (s *subscription) deadLetter(ctx context.Context, m *Message) bool {
	if s.opts.DeadLetterTopic == "" {
		return true
	}
	for s.publish(ctx, s.opts.DeadLetterTopic, m) != nil {
		if !sleepCtx(ctx, s.opts.RetryDelay) {
			return false
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type commitSlot struct {
	km   kafka.Message
	done bool
}

// commitTracker commits offsets of a partition in fetch order. A finished
// message is committed only once every message fetched before it on the
// same partition has finished too.
type commitTracker struct {
	mu      sync.Mutex
	pending map[int][]*commitSlot
}

func newCommitTracker() *commitTracker {
	return &commitTracker{pending: make(map[int][]*commitSlot)}
}

// track must be called from the fetch loop in fetch order.
func (t *commitTracker) track(km kafka.Message) *commitSlot {
	slot := &commitSlot{km: km}
	t.mu.Lock()
	t.pending[km.Partition] = append(t.pending[km.Partition], slot)
	t.mu.Unlock()
	return slot
}

func (t *commitTracker) complete(ctx context.Context, r messageReader, slot *commitSlot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot.done = true
	queue := t.pending[slot.km.Partition]
	n := 0
	for n < len(queue) && queue[n].done {
		n++
	}
	if n == 0 {
		return nil
	}
	ready := make([]kafka.Message, n)
	for i := range ready {
		ready[i] = queue[i].km
	}
	if rest := queue[n:]; len(rest) > 0 {
		t.pending[slot.km.Partition] = rest
	} else {
		delete(t.pending, slot.km.Partition)
	}
	// held across the commit so a later prefix never lands first
	return r.CommitMessages(ctx, ready...)
}
