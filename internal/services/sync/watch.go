package sync

import (
	"context"
	"time"

	"github.com/TheMichaelB/zpass/internal/models"
)

// Touch records activity and postpones auto-lock.
func (s *Service) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

// touchLocked must be called with mu held.
func (s *Service) touchLocked() {
	timeout := s.opts.AutoLockTimeout
	if s.state == StateLocked || timeout <= 0 {
		return
	}
	s.lastActivity = time.Now()
	if s.autoLock == nil {
		s.autoLock = time.AfterFunc(timeout, s.autoLockFired)
	}
}

func (s *Service) autoLockFired() {
	timeout := s.opts.AutoLockTimeout

	s.mu.Lock()
	if s.state == StateLocked {
		s.mu.Unlock()
		return
	}
	idle := time.Since(s.lastActivity)
	if idle < timeout && s.autoLock != nil {
		s.autoLock.Reset(timeout - idle)
		s.mu.Unlock()
		return
	}
	s.autoLock = nil
	s.mu.Unlock()

	res := s.Lock()
	s.logger.WithFields(map[string]interface{}{
		"idle":      idle.Round(time.Second).String(),
		"discarded": res.DiscardedChanges,
	}).Info("Auto-locked idle vault")
}

func (s *Service) startWatch() {
	if !s.opts.WatchRemote || s.watcher == nil {
		return
	}

	s.mu.Lock()
	if s.state == StateLocked || s.stopWatch != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	s.mu.Unlock()

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.watch(ctx)
	}()
}

func (s *Service) watch(ctx context.Context) {
	msgs, err := s.watcher.WatchVault(ctx, s.opts.WatchPath)
	if err != nil {
		s.logger.WithError(err).Warn("Vault change watch unavailable")
		return
	}
	s.logger.WithField("path", s.opts.WatchPath).Debug("Watching remote vault")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			s.handleRemoteEvent(ctx, msg)
		}
	}
}

// handleRemoteEvent reloads the vault after a remote change unless local
// changes are pending. There is no merge.
func (s *Service) handleRemoteEvent(ctx context.Context, msg models.WSMessage) {
	switch msg.Type {
	case models.WSTypeVaultUpdated, models.WSTypeVaultDeleted:
		s.emit(EventRemoteChanged, nil)

		if current := s.State(); current != StateClean {
			s.logger.WithField("state", current.String()).
				Info("Remote vault changed while local changes are pending; not reloading")
			return
		}
		if err := s.Download(ctx); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Warn("Reload after remote change failed")
		}

	case models.WSTypeError:
		s.logger.WithField("data", string(msg.Data)).Warn("Vault event stream error")

	default:
		s.logger.WithField("type", string(msg.Type)).Debug("Ignoring vault event")
	}
}
