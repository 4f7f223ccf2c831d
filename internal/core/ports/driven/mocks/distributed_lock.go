package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockDistributedLock is an in-memory lock for testing
type MockDistributedLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	fails bool
}

// NewMockDistributedLock creates a new MockDistributedLock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		held: make(map[string]time.Time),
	}
}

// SetFail makes every Acquire return an error
func (m *MockDistributedLock) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fails = fail
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails {
		return false, fmt.Errorf("lock backend unavailable")
	}
	if expiry, ok := m.held[name]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	m.held[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[name]; !ok {
		return fmt.Errorf("lock %s not held", name)
	}
	m.held[name] = time.Now().Add(ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return nil
}
