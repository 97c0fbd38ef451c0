package sync

import (
	"context"
	"errors"
	"time"

	"github.com/TheMichaelB/zpass/internal/crypto"
	"github.com/TheMichaelB/zpass/internal/models"
)

// Sync phases reported in SyncError.
const (
	PhaseSeal   = "seal"
	PhaseUpload = "upload"
)

// Sync uploads the current vault when it has unsynced changes. Only one sync
// runs at a time; a concurrent call waits and then re-checks the state. On
// failure the session stays Dirty and keeps its data.
func (s *Service) Sync(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.slot }()

	s.mu.Lock()
	switch s.state {
	case StateLocked:
		s.mu.Unlock()
		return models.ErrLocked
	case StateClean:
		s.mu.Unlock()
		return nil
	}
	snapshot := s.vault.Clone()
	gen := s.generation
	password := s.password
	s.state = StateSyncing
	s.touchLocked()
	s.mu.Unlock()

	s.emit(EventSyncStarted, nil)
	start := time.Now()

	blob, err := s.upload(ctx, snapshot, password)
	s.settle(gen, blob, err)

	if err != nil {
		s.logger.WithError(err).Warn("Sync failed")
		s.emit(EventSyncFailed, err)
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"entries":  len(snapshot.Passwords),
		"duration": time.Since(start).String(),
	}).Info("Vault synced")
	s.emit(EventSyncCompleted, nil)
	return nil
}

// upload seals the snapshot and issues a single PUT. Cancellation is honored
// until the PUT starts.
func (s *Service) upload(ctx context.Context, vault *models.Vault, password *crypto.Secret) (*models.EncryptedBlob, error) {
	blob, err := s.vaults.Seal(ctx, vault, password)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &models.SyncError{Code: models.ErrorCode(err), Phase: PhaseSeal, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.remote.Put(context.WithoutCancel(ctx), blob); err != nil {
		return nil, &models.SyncError{Code: models.ErrorCode(err), Phase: PhaseUpload, Err: err}
	}
	return blob, nil
}

func (s *Service) settle(gen uint64, blob *models.EncryptedBlob, err error) {
	s.mu.Lock()
	if err != nil {
		s.state = StateDirty
		s.lastErr = err
	} else {
		s.syncedGen = gen
		s.lastSync = time.Now()
		s.lastErr = nil
		if s.generation == gen {
			s.state = StateClean
		} else {
			s.state = StateDirty
		}
	}
	s.settled.Broadcast()
	s.mu.Unlock()

	if err != nil {
		s.updateCache(func(st *models.SyncState) { st.SetError(err) })
		return
	}
	s.updateCache(func(st *models.SyncState) { st.RecordUpload(blob, string(s.vaults.Scheme())) })
}

// Task is a sync running in the background.
type Task struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Wait blocks until the sync settles and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Done is closed when the sync settles.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel aborts the sync if its upload has not started yet.
func (t *Task) Cancel() {
	t.cancel()
}

// SyncAsync runs Sync in a goroutine owned by the session. On a locked
// session the returned task is already done with ErrLocked.
func (s *Service) SyncAsync(ctx context.Context) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLocked {
		t := &Task{done: make(chan struct{}), err: models.ErrLocked, cancel: func() {}}
		close(t.done)
		return t
	}
	return s.startSyncLocked(ctx)
}

// startSyncLocked must be called with mu held on an unlocked session, so the
// task is counted before Close can observe the session locked and wait.
func (s *Service) startSyncLocked(ctx context.Context) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		defer cancel()

		t.err = s.Sync(ctx)
		if t.err != nil && !errors.Is(t.err, context.Canceled) && !errors.Is(t.err, models.ErrLocked) {
			s.logger.WithError(t.err).Debug("Background sync failed")
		}
		close(t.done)
	}()
	return t
}
