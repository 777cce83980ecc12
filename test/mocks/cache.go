package mocks

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MockCache is an in-memory mock implementation of the Cache interface
// Used for testing without requiring a real Redis instance
type MockCache struct {
	data map[string]string
	mu   sync.RWMutex

	// Err, when set, is returned by every operation.
	Err error
}

// NewMockCache creates a new mock cache instance
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string]string)}
}

// Get retrieves a value from the mock cache
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.data[key], nil // Empty string for non-existent keys (like Redis)
}

// Set stores a value in the mock cache
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	// Note: expiration is ignored in mock (no TTL implementation)
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return nil
}

// Incr increments a key's value
func (m *MockCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return 0, m.Err
	}
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

// Health always reports healthy unless Err is set
func (m *MockCache) Health(ctx context.Context) error {
	return m.Err
}

// Close is a no-op
func (m *MockCache) Close() error {
	return nil
}
