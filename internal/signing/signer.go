package signing

import (
	"context"
	"fmt"
	"sync"

	"github.com/addonhub/addonhub/internal/models"
)

// Signer obtains a signing certificate serial for a packaged file.
type Signer interface {
	Sign(ctx context.Context, file *models.File) (string, error)
}

// MockSigner returns a fixed serial without contacting any service.
// Used in development when no signing endpoint is configured, and in
// tests.
type MockSigner struct {
	Serial string
	Err    error

	mu    sync.Mutex
	calls []uint
}

// NewMockSigner creates a MockSigner returning the given serial
func NewMockSigner(serial string) *MockSigner {
	return &MockSigner{Serial: serial}
}

// Sign records the call and returns the configured serial or error.
func (m *MockSigner) Sign(ctx context.Context, file *models.File) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, file.ID)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Serial == "" {
		return fmt.Sprintf("mock-serial-%d", file.ID), nil
	}
	return m.Serial, nil
}

// Calls returns the file IDs signed so far, in order.
func (m *MockSigner) Calls() []uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint, len(m.calls))
	copy(out, m.calls)
	return out
}
