package governor

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold is the number of tracked participants above which expired
// gate entries are dropped.
const sweepThreshold = 4096

// MemoryStore keeps the counters in process memory.
type MemoryStore struct {
	mu           sync.Mutex
	lastAccepted map[string]time.Time
	inFlight     map[string]int
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lastAccepted: make(map[string]time.Time),
		inFlight:     make(map[string]int),
		now:          time.Now,
	}
}

func (m *MemoryStore) Touch(ctx context.Context, participantID string, interval time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if last, ok := m.lastAccepted[participantID]; ok && now.Sub(last) < interval {
		return false, nil
	}
	m.lastAccepted[participantID] = now
	if len(m.lastAccepted) > sweepThreshold {
		for id, at := range m.lastAccepted {
			if now.Sub(at) >= interval {
				delete(m.lastAccepted, id)
			}
		}
	}
	return true, nil
}

func (m *MemoryStore) TryAcquire(ctx context.Context, sessionID string, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[sessionID] >= limit {
		return false, nil
	}
	m.inFlight[sessionID]++
	return true, nil
}

func (m *MemoryStore) Release(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[sessionID] <= 1 {
		delete(m.inFlight, sessionID)
		return nil
	}
	m.inFlight[sessionID]--
	return nil
}

// InFlight returns the session's current count.
func (m *MemoryStore) InFlight(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight[sessionID]
}
