package remote

import (
	"bytes"
	"context"
	"sync"

	"github.com/TheMichaelB/zpass/internal/models"
)

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu   sync.Mutex
	blob *models.EncryptedBlob

	// Error injection
	FetchError error
	PutError   error

	// BeforePut runs before every Put. Returning an error fails the Put.
	BeforePut func(ctx context.Context, blob *models.EncryptedBlob) error

	puts    []*models.EncryptedBlob
	fetches int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Fetch returns a copy of the stored blob.
func (m *MemoryStore) Fetch(ctx context.Context) (*models.EncryptedBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.NetworkError{Op: "memory fetch", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetches++
	if m.FetchError != nil {
		return nil, m.FetchError
	}
	return cloneBlob(m.blob), nil
}

// Put stores a copy of blob.
func (m *MemoryStore) Put(ctx context.Context, blob *models.EncryptedBlob) error {
	m.mu.Lock()
	hook := m.BeforePut
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, blob); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return &models.NetworkError{Op: "memory put", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutError != nil {
		return m.PutError
	}
	m.blob = cloneBlob(blob)
	m.puts = append(m.puts, cloneBlob(blob))
	return nil
}

// SetBlob seeds the stored blob.
func (m *MemoryStore) SetBlob(blob *models.EncryptedBlob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = cloneBlob(blob)
}

// SetPutError sets the error returned by Put.
func (m *MemoryStore) SetPutError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutError = err
}

// SetFetchError sets the error returned by Fetch.
func (m *MemoryStore) SetFetchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchError = err
}

// SetBeforePut installs a Put hook.
func (m *MemoryStore) SetBeforePut(fn func(ctx context.Context, blob *models.EncryptedBlob) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BeforePut = fn
}

// Blob returns a copy of the stored blob.
func (m *MemoryStore) Blob() *models.EncryptedBlob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneBlob(m.blob)
}

// Puts returns every successfully stored blob in order.
func (m *MemoryStore) Puts() []*models.EncryptedBlob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.EncryptedBlob, len(m.puts))
	copy(out, m.puts)
	return out
}

// Fetches returns the number of Fetch calls.
func (m *MemoryStore) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
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
