package poolapi

import (
	"context"
	"sync"
)

// MockLocator implements Locator for testing.
type MockLocator struct {
	mu sync.Mutex

	Pool  *Pool
	Calls int

	// Error override
	GetPoolErr error
}

// NewMockLocator creates a mock locator pointing at a local node.
func NewMockLocator() *MockLocator {
	return &MockLocator{
		Pool: &Pool{
			Name:    "local-node",
			IP:      "127.0.0.1",
			Port:    2813,
			Success: true,
		},
	}
}

func (m *MockLocator) GetPool(_ context.Context) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.GetPoolErr != nil {
		return nil, m.GetPoolErr
	}
	return m.Pool, nil
}
