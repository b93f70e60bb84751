package verifiers

import (
	"context"
	"sync"
)

// MemoryIssuer is an in-process CodeIssuer for development and tests.
// Production deployments plug in a delivery-backed issuer instead.
type MemoryIssuer struct {
	mu    sync.RWMutex
	codes map[string]string
}

func NewMemoryIssuer() *MemoryIssuer {
	return &MemoryIssuer{codes: make(map[string]string)}
}

// Issue sets the code currently expected for a user.
func (m *MemoryIssuer) Issue(userID, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[userID] = code
}

func (m *MemoryIssuer) Code(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.codes[userID], nil
}

var _ CodeIssuer = (*MemoryIssuer)(nil)
