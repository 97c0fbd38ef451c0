package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheMichaelB/zpass/internal/crypto"
	"github.com/TheMichaelB/zpass/internal/models"
)

// ErrNoLocalCache is returned by Stash when the session has no cache to
// write to.
var ErrNoLocalCache = errors.New("no local cache for unsynced changes")

// Stash seals the unsynced vault into the local cache. The next Unlock with
// the same master password restores it as a Dirty session, and the stash is
// dropped once an upload succeeds. It returns the number of stashed changes;
// a Clean session has nothing to stash.
func (s *Service) Stash(ctx context.Context) (int, error) {
	if s.cache == nil || s.opts.AccountID == "" {
		return 0, ErrNoLocalCache
	}

	s.mu.Lock()
	for s.state == StateSyncing {
		s.settled.Wait()
	}
	if s.state == StateLocked {
		s.mu.Unlock()
		return 0, models.ErrLocked
	}
	changes := int(s.generation - s.syncedGen)
	if s.state == StateClean || changes == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	snapshot := s.vault.Clone()
	password := s.password
	s.mu.Unlock()

	blob, err := s.vaults.Seal(ctx, snapshot, password)
	if err != nil {
		return 0, fmt.Errorf("seal unsynced vault: %w", err)
	}
	if err := s.saveCache(func(st *models.SyncState) { st.RecordPending(blob, changes) }); err != nil {
		return 0, fmt.Errorf("save unsynced vault: %w", err)
	}

	s.logger.WithField("changes", changes).Info("Unsynced changes stashed")
	return changes, nil
}

// loadStash opens a stashed vault for this account. A stash the password
// cannot open is left in place.
func (s *Service) loadStash(ctx context.Context, password *crypto.Secret) (*models.Vault, int) {
	if s.cache == nil || s.opts.AccountID == "" {
		return nil, 0
	}
	cached, err := s.cache.Load(s.opts.AccountID)
	if err != nil || cached.Pending == nil {
		return nil, 0
	}

	vault, err := s.vaults.Open(ctx, cached.Pending, password)
	if err != nil {
		s.logger.WithError(err).Warn("Stashed changes do not open with this password; keeping them")
		return nil, 0
	}
	return vault, max(cached.PendingChanges, 1)
}
