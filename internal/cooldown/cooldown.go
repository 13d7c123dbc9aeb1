package cooldown

import (
	"context"
	"sync"
	"time"
)

const DefaultWindow = 5 * time.Second

// Limiter accepts one invocation per key per window. When an invocation is
// refused, retryAfter is the time left until the key is accepted again.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// pruneEvery bounds how many Allow calls may pass between sweeps of expired keys.
const pruneEvery = 1024

type Memory struct {
	window time.Duration
	now    func() time.Time

	mtx   sync.Mutex
	last  map[string]time.Time
	calls int
}

func NewMemory(window time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{
		window: window,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

// WithClock replaces the time source; tests use it to step time forward.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.calls++
	if m.calls%pruneEvery == 0 {
		m.prune(now)
	}

	if at, ok := m.last[key]; ok {
		if elapsed := now.Sub(at); elapsed < m.window {
			return false, m.window - elapsed, nil
		}
	}
	m.last[key] = now
	return true, 0, nil
}

func (m *Memory) Len() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return len(m.last)
}

// Prune drops every key whose window has passed and reports how many went.
func (m *Memory) Prune() int {
	now := m.now()
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.prune(now)
}

func (m *Memory) prune(now time.Time) int {
	removed := 0
	for key, at := range m.last {
		if now.Sub(at) >= m.window {
			delete(m.last, key)
			removed++
		}
	}
	return removed
}
