package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/TheMichaelB/zpass/internal/crypto"
	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
	"github.com/TheMichaelB/zpass/internal/remote"
	"github.com/TheMichaelB/zpass/internal/services/vaults"
	"github.com/TheMichaelB/zpass/internal/state"
)

// Session errors.
var (
	ErrAlreadyUnlocked = errors.New("session already unlocked")
	ErrUnsyncedChanges = errors.New("vault has unsynced changes")
)

// AccountAuth ends the account session on Logout.
type AccountAuth interface {
	Logout(ctx context.Context) error
}

// Watcher streams remote vault change notifications.
type Watcher interface {
	WatchVault(ctx context.Context, path string) (<-chan models.WSMessage, error)
}

// Options configures a session.
type Options struct {
	AccountID       string
	AutoLockTimeout time.Duration // 0 disables
	AutoSync        bool
	WatchRemote     bool
	WatchPath       string
}

// Service holds one decrypted vault and keeps it in step with the remote
// store. All vault access goes through the session mutex.
type Service struct {
	remote  remote.Store
	vaults  *vaults.Service
	cache   state.Store
	account AccountAuth
	watcher Watcher
	opts    Options
	logger  *events.Logger

	mu       sync.Mutex
	settled  *sync.Cond
	state    State
	vault    *models.Vault
	password *crypto.Secret

	// generation counts mutations since unlock; syncedGen is the
	// generation carried by the last successful upload.
	generation uint64
	syncedGen  uint64
	lastSync   time.Time
	lastErr    error

	slot   chan struct{}
	events chan Event
	tasks  sync.WaitGroup

	lastActivity time.Time
	autoLock     *time.Timer
	stopWatch    context.CancelFunc
}

// NewService creates a locked session. cache may be nil.
func NewService(store remote.Store, vaultsService *vaults.Service, cache state.Store, opts Options, logger *events.Logger) *Service {
	s := &Service{
		remote: store,
		vaults: vaultsService,
		cache:  cache,
		opts:   opts,
		logger: logger.WithField("service", "sync"),
		state:  StateLocked,
		slot:   make(chan struct{}, 1),
		events: make(chan Event, 100),
	}
	s.settled = sync.NewCond(&s.mu)
	if opts.AccountID != "" {
		s.logger = s.logger.WithField("account", opts.AccountID)
	}
	return s
}

// SetAccountAuth sets the account session ended by Logout.
func (s *Service) SetAccountAuth(a AccountAuth) {
	s.account = a
}

// SetWatcher sets the source of remote change notifications.
func (s *Service) SetWatcher(w Watcher) {
	s.watcher = w
}

// Events returns the event channel. Events are dropped when it is full.
func (s *Service) Events() <-chan Event {
	return s.events
}

// State returns the current state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Unlock stores the master password and downloads the vault with it. On any
// failure the password is wiped and the session stays locked.
func (s *Service) Unlock(ctx context.Context, password string) error {
	secret := crypto.NewSecretString(password)

	if s.State() != StateLocked {
		secret.Destroy()
		return ErrAlreadyUnlocked
	}

	vault, blob, err := s.fetchAndOpen(ctx, secret)
	if err != nil {
		secret.Destroy()
		s.updateCache(func(st *models.SyncState) { st.SetError(err) })
		s.logger.WithError(err).Warn("Unlock failed")
		return err
	}
	stashed, changes := s.loadStash(ctx, secret)
	s.updateCache(func(st *models.SyncState) { st.RecordFetch(blob) })

	s.mu.Lock()
	if s.state != StateLocked {
		s.mu.Unlock()
		secret.Destroy()
		return ErrAlreadyUnlocked
	}
	s.install(vault, secret)
	if stashed != nil {
		vault = stashed
		s.vault = stashed
		s.generation = uint64(changes)
		s.state = StateDirty
		if s.opts.AutoSync {
			s.startSyncLocked(context.Background())
		}
	}
	s.mu.Unlock()

	s.startWatch()

	s.logger.WithFields(map[string]interface{}{
		"entries":  len(vault.Passwords),
		"new":      blob == nil,
		"restored": changes,
	}).Info("Vault unlocked")
	s.emit(EventUnlocked, nil)
	return nil
}

// Download replaces the in-memory vault with the remote copy. It refuses to
// overwrite unsynced changes. A blob the current password cannot open locks
// the session.
func (s *Service) Download(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateLocked:
		s.mu.Unlock()
		return models.ErrLocked
	case StateDirty, StateSyncing:
		s.mu.Unlock()
		return ErrUnsyncedChanges
	}
	gen := s.generation
	password := s.password
	s.touchLocked()
	s.mu.Unlock()

	vault, blob, err := s.fetchAndOpen(ctx, password)
	if err != nil {
		s.updateCache(func(st *models.SyncState) { st.SetError(err) })
		if errors.Is(err, models.ErrAuthentication) && s.lockIfClean() {
			s.logger.WithError(err).Warn("Remote vault no longer opens with this password; locked")
		}
		return err
	}

	s.mu.Lock()
	switch {
	case s.state == StateLocked || s.password != password:
		s.mu.Unlock()
		return models.ErrLocked
	case s.state != StateClean || s.generation != gen:
		s.mu.Unlock()
		return ErrUnsyncedChanges
	}
	s.vault = vault
	s.mu.Unlock()

	s.updateCache(func(st *models.SyncState) { st.RecordFetch(blob) })
	s.logger.WithField("entries", len(vault.Passwords)).Info("Vault refreshed from remote")
	s.emit(EventRefreshed, nil)
	return nil
}

// Lock wipes the master password and discards the vault. Unsynced changes
// are lost. An in-flight sync settles first.
func (s *Service) Lock() LockResult {
	s.mu.Lock()
	for s.state == StateSyncing {
		s.settled.Wait()
	}
	if s.state == StateLocked {
		s.mu.Unlock()
		return LockResult{}
	}
	discarded := int(s.generation - s.syncedGen)
	stop := s.clearLocked()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if discarded > 0 {
		s.logger.WithField("discarded", discarded).Warn("Locked with unsynced changes")
	} else {
		s.logger.Info("Vault locked")
	}
	s.emit(EventLocked, nil)
	return LockResult{DiscardedChanges: discarded}
}

// Logout locks the session and ends the account session.
func (s *Service) Logout(ctx context.Context) (LockResult, error) {
	res := s.Lock()
	if s.account == nil {
		return res, nil
	}
	return res, s.account.Logout(ctx)
}

// Close locks the session and waits for background syncs to finish.
func (s *Service) Close() LockResult {
	res := s.Lock()
	s.tasks.Wait()
	return res
}

// Status returns a snapshot of the session. Sync metadata falls back to the
// local cache while locked.
func (s *Service) Status() Status {
	s.mu.Lock()
	st := Status{
		AccountID:      s.opts.AccountID,
		State:          s.state,
		PendingChanges: int(s.generation - s.syncedGen),
		LastSync:       s.lastSync,
		Scheme:         string(s.vaults.Scheme()),
	}
	if s.vault != nil {
		st.Entries = len(s.vault.Passwords)
		st.Notes = len(s.vault.Notes)
		st.Categories = len(s.vault.Categories)
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()

	if (st.LastSync.IsZero() || st.State == StateLocked) && s.cache != nil && s.opts.AccountID != "" {
		if cached, err := s.cache.Load(s.opts.AccountID); err == nil {
			if st.LastSync.IsZero() {
				st.LastSync = cached.LastSyncTime
			}
			if st.LastError == "" {
				st.LastError = cached.LastError
			}
			if st.State == StateLocked {
				st.PendingChanges = cached.PendingChanges
			}
		}
	}
	return st
}

func (s *Service) fetchAndOpen(ctx context.Context, password *crypto.Secret) (*models.Vault, *models.EncryptedBlob, error) {
	blob, err := s.remote.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	if blob == nil {
		s.logger.Info("No remote vault, starting empty")
		return models.NewVault(), nil, nil
	}

	vault, err := s.vaults.Open(ctx, blob, password)
	if err != nil {
		if errors.Is(err, models.ErrDecryptionFailed) || errors.Is(err, models.ErrMalformedVault) {
			return nil, nil, &models.AuthenticationError{Reason: "wrong master password or corrupted vault", Err: err}
		}
		return nil, nil, err
	}
	return vault, blob, nil
}

// install must be called with mu held.
func (s *Service) install(vault *models.Vault, password *crypto.Secret) {
	s.vault = vault
	s.password = password
	s.state = StateClean
	s.generation = 0
	s.syncedGen = 0
	s.lastErr = nil
	s.touchLocked()
}

// clearLocked must be called with mu held. It returns the watch cancel func.
func (s *Service) clearLocked() context.CancelFunc {
	s.password.Destroy()
	s.password = nil
	s.vault = nil
	s.state = StateLocked
	s.generation = 0
	s.syncedGen = 0
	if s.autoLock != nil {
		s.autoLock.Stop()
		s.autoLock = nil
	}
	stop := s.stopWatch
	s.stopWatch = nil
	return stop
}

func (s *Service) lockIfClean() bool {
	s.mu.Lock()
	if s.state != StateClean {
		s.mu.Unlock()
		return false
	}
	stop := s.clearLocked()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.emit(EventLocked, nil)
	return true
}

func (s *Service) updateCache(fn func(st *models.SyncState)) {
	if s.cache == nil || s.opts.AccountID == "" {
		return
	}
	if err := s.saveCache(fn); err != nil {
		s.logger.WithError(err).Warn("Failed to save cached state")
	}
}

func (s *Service) saveCache(fn func(st *models.SyncState)) error {
	cached, err := s.cache.Load(s.opts.AccountID)
	if err != nil {
		if !errors.Is(err, state.ErrStateNotFound) {
			s.logger.WithError(err).Warn("Failed to load cached state")
		}
		cached = models.NewSyncState(s.opts.AccountID)
	}
	fn(cached)
	return s.cache.Save(s.opts.AccountID, cached)
}

func (s *Service) emit(t EventType, err error) {
	event := Event{
		Type:      t,
		Timestamp: time.Now(),
		State:     s.State(),
		Error:     err,
	}
	select {
	case s.events <- event:
	default:
		s.logger.Debug("Event channel full, dropping event")
	}
}
