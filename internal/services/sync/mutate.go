package sync

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/TheMichaelB/zpass/internal/models"
)

// errUnchanged lets a mutation report that it left the vault as it was.
var errUnchanged = errors.New("vault unchanged")

// Mutate applies fn to a copy of the vault and installs the copy when fn
// succeeds. A Clean session becomes Dirty. Mutations during a sync are kept
// and leave the session Dirty once the sync settles.
func (s *Service) Mutate(fn func(v *models.Vault) error) error {
	s.mu.Lock()
	if s.state == StateLocked {
		s.mu.Unlock()
		return models.ErrLocked
	}

	next := s.vault.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	s.vault = next
	s.generation++
	if s.state == StateClean {
		s.state = StateDirty
	}
	s.touchLocked()
	if s.opts.AutoSync {
		s.startSyncLocked(context.Background())
	}
	s.mu.Unlock()

	s.emit(EventChanged, nil)
	return nil
}

// AddEntry adds a password entry and returns it with ID and timestamps set.
func (s *Service) AddEntry(e models.PasswordEntry) (models.PasswordEntry, error) {
	var added models.PasswordEntry
	err := s.Mutate(func(v *models.Vault) error {
		var err error
		added, err = v.AddEntry(e)
		return err
	})
	return added, err
}

// UpdateEntry replaces the entry with the same ID.
func (s *Service) UpdateEntry(e models.PasswordEntry) (models.PasswordEntry, error) {
	var updated models.PasswordEntry
	err := s.Mutate(func(v *models.Vault) error {
		var err error
		updated, err = v.UpdateEntry(e)
		return err
	})
	return updated, err
}

// DeleteEntry removes an entry by ID.
func (s *Service) DeleteEntry(id string) error {
	return s.Mutate(func(v *models.Vault) error {
		return v.DeleteEntry(id)
	})
}

// AddCategory adds a category. Adding an existing one is not a change.
func (s *Service) AddCategory(name string) error {
	return s.Mutate(func(v *models.Vault) error {
		if !v.AddCategory(name) {
			return errUnchanged
		}
		return nil
	})
}

// AddNote adds a secure note.
func (s *Service) AddNote(n models.Note) (models.Note, error) {
	var added models.Note
	err := s.Mutate(func(v *models.Vault) error {
		var err error
		added, err = v.AddNote(n)
		return err
	})
	return added, err
}

// DeleteNote removes a note by ID.
func (s *Service) DeleteNote(id string) error {
	return s.Mutate(func(v *models.Vault) error {
		return v.DeleteNote(id)
	})
}

// Vault returns a copy of the unlocked vault.
func (s *Service) Vault() (*models.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLocked {
		return nil, models.ErrLocked
	}
	s.touchLocked()
	return s.vault.Clone(), nil
}

// Entry returns the entry with the given ID.
func (s *Service) Entry(id string) (models.PasswordEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLocked {
		return models.PasswordEntry{}, models.ErrLocked
	}
	s.touchLocked()
	return s.vault.Entry(id)
}

// Search returns entries matching term.
func (s *Service) Search(term string) ([]models.PasswordEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLocked {
		return nil, models.ErrLocked
	}
	s.touchLocked()
	return s.vault.Clone().Search(term), nil
}

// VerifyPassword reports whether password is the session's master password.
func (s *Service) VerifyPassword(password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.password == nil {
		return false
	}
	match := false
	_ = s.password.Use(func(b []byte) error {
		match = subtle.ConstantTimeCompare(b, []byte(password)) == 1
		return nil
	})
	return match
}
