package state

import (
	"bytes"
	"sort"
	"sync"

	"github.com/TheMichaelB/zpass/internal/models"
)

// MockStore provides an in-memory Store for testing.
type MockStore struct {
	mu     sync.RWMutex
	states map[string]*models.SyncState

	// SaveError is returned by Save when set.
	SaveError error
}

// NewMockStore creates a mock state store.
func NewMockStore() *MockStore {
	return &MockStore{
		states: make(map[string]*models.SyncState),
	}
}

// Load returns a copy of the stored state.
func (m *MockStore) Load(accountID string) (*models.SyncState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.states[accountID]; ok {
		return cloneState(state), nil
	}

	return nil, ErrStateNotFound
}

// Save stores a copy of state.
func (m *MockStore) Save(accountID string, state *models.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveError != nil {
		return m.SaveError
	}
	m.states[accountID] = cloneState(state)
	return nil
}

// Reset removes state for an account.
func (m *MockStore) Reset(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, accountID)
	return nil
}

// List returns stored account IDs in order.
func (m *MockStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

func cloneState(s *models.SyncState) *models.SyncState {
	out := *s
	out.Blob = cloneBlob(s.Blob)
	out.Pending = cloneBlob(s.Pending)
	return &out
}

func cloneBlob(b *models.EncryptedBlob) *models.EncryptedBlob {
	if b == nil {
		return nil
	}
	return &models.EncryptedBlob{
		Ciphertext: bytes.Clone(b.Ciphertext),
		Salt:       bytes.Clone(b.Salt),
	}
}
