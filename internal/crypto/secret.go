package crypto

import (
	"sync"
)

// Secret holds key material or a master password. The bytes are kept out of
// swap where the OS allows it and are zeroed by Destroy.
type Secret struct {
	mu     sync.RWMutex
	buf    []byte
	locked bool
}

// NewSecret copies b into a protected buffer. The caller should zero b.
func NewSecret(b []byte) *Secret {
	buf := make([]byte, len(b))
	copy(buf, b)
	s := &Secret{buf: buf}
	if len(buf) > 0 && lockMemory(buf) == nil {
		s.locked = true
	}
	return s
}

// NewSecretString copies a string into a protected buffer.
func NewSecretString(str string) *Secret {
	b := []byte(str)
	s := NewSecret(b)
	Zero(b)
	return s
}

// Use calls fn with the secret bytes. fn must not retain the slice.
func (s *Secret) Use(fn func([]byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil {
		return ErrSecretDestroyed
	}
	return fn(s.buf)
}

// Len returns the secret length, or 0 once destroyed.
func (s *Secret) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

// Destroyed reports whether Destroy has run.
func (s *Secret) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf == nil
}

// Destroy zeroes and releases the buffer. Safe to call more than once.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return
	}
	Zero(s.buf)
	if s.locked {
		_ = unlockMemory(s.buf)
		s.locked = false
	}
	s.buf = nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
