package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/movienight/internal/dependencies/clock"
)

var _ clock.Clock = (*MockClock)(nil)

// MockClock is a settable clock. Token expiry and document timestamps in
// tests are driven by Advance.
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t.UTC()}
}

func (c *MockClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}
