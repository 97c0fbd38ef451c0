package sync_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/zpass/internal/crypto"
	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
	"github.com/TheMichaelB/zpass/internal/remote"
	"github.com/TheMichaelB/zpass/internal/services/sync"
	"github.com/TheMichaelB/zpass/internal/services/vaults"
	"github.com/TheMichaelB/zpass/internal/state"
)

const (
	testIterations = 1000
	masterPassword = "correct horse battery staple"
)

func newVaults() *vaults.Service {
	p := crypto.NewProvider(crypto.WithIterations(testIterations))
	return vaults.NewService(p, events.Discard())
}

func newSession(t *testing.T, store remote.Store, opts sync.Options) *sync.Service {
	t.Helper()
	s := sync.NewService(store, newVaults(), nil, opts, events.Discard())
	t.Cleanup(func() { s.Close() })
	return s
}

func unlocked(t *testing.T, store remote.Store, opts sync.Options) *sync.Service {
	t.Helper()
	s := newSession(t, store, opts)
	require.NoError(t, s.Unlock(context.Background(), masterPassword))
	return s
}

func entry(title string) models.PasswordEntry {
	return models.PasswordEntry{Title: title, Username: "alice", Password: "s3cret!" + title}
}

// openPut decrypts the i-th uploaded blob.
func openPut(t *testing.T, store *remote.MemoryStore, i int) *models.Vault {
	t.Helper()
	puts := store.Puts()
	require.Greater(t, len(puts), i)

	password := crypto.NewSecretString(masterPassword)
	defer password.Destroy()
	v, err := newVaults().Open(context.Background(), puts[i], password)
	require.NoError(t, err)
	return v
}

// blockPuts makes every Put wait until release is called.
func blockPuts(store *remote.MemoryStore) (started <-chan struct{}, release func()) {
	startedCh := make(chan struct{}, 16)
	releaseCh := make(chan struct{})
	store.SetBeforePut(func(ctx context.Context, blob *models.EncryptedBlob) error {
		startedCh <- struct{}{}
		<-releaseCh
		return nil
	})
	return startedCh, func() { close(releaseCh) }
}

func waitStarted(t *testing.T, started <-chan struct{}) {
	t.Helper()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("upload did not start")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state sync.State
		want  string
	}{
		{sync.StateLocked, "Locked"},
		{sync.StateClean, "Clean"},
		{sync.StateDirty, "Dirty"},
		{sync.StateSyncing, "Syncing"},
		{sync.State(42), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestUnlockEmptyRemote(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	assert.Equal(t, sync.StateClean, s.State())
	v, err := s.Vault()
	require.NoError(t, err)
	assert.Empty(t, v.Passwords)
	assert.Equal(t, models.CurrentSchemaVersion, v.SchemaVersion)

	assert.ErrorIs(t, s.Unlock(context.Background(), masterPassword), sync.ErrAlreadyUnlocked)
}

func TestSyncRoundTrip(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	added, err := s.AddEntry(entry("GitHub"))
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, sync.StateDirty, s.State())

	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, sync.StateClean, s.State())
	require.Len(t, store.Puts(), 1)

	other := unlocked(t, store, sync.Options{})
	got, err := other.Entry(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "GitHub", got.Title)
	assert.Equal(t, added.Password, got.Password)
}

func TestFreshSaltPerSync(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	_, err := s.AddEntry(entry("one"))
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background()))
	_, err = s.AddEntry(entry("two"))
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background()))

	puts := store.Puts()
	require.Len(t, puts, 2)
	assert.NotEqual(t, puts[0].Salt, puts[1].Salt)
	assert.NotEqual(t, puts[0].Ciphertext[:16], puts[1].Ciphertext[:16])
}

func TestUnlockWrongPassword(t *testing.T) {
	store := remote.NewMemoryStore()
	owner := unlocked(t, store, sync.Options{})
	_, err := owner.AddEntry(entry("GitHub"))
	require.NoError(t, err)
	require.NoError(t, owner.Sync(context.Background()))

	s := newSession(t, store, sync.Options{})
	err = s.Unlock(context.Background(), "wrong password")
	require.Error(t, err)

	var authErr *models.AuthenticationError
	assert.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, models.ErrAuthentication)
	assert.False(t, models.IsRetryable(err))
	assert.Equal(t, sync.StateLocked, s.State())

	_, err = s.Vault()
	assert.ErrorIs(t, err, models.ErrLocked)
}

func TestUnlockNetworkFailure(t *testing.T) {
	store := remote.NewMemoryStore()
	store.SetFetchError(&models.NetworkError{Op: "fetch vault", Err: errors.New("connection refused")})

	s := newSession(t, store, sync.Options{})
	err := s.Unlock(context.Background(), masterPassword)
	assert.ErrorIs(t, err, models.ErrNetwork)
	assert.True(t, models.IsRetryable(err))
	assert.Equal(t, sync.StateLocked, s.State())
}

func TestLockedRejectsOperations(t *testing.T) {
	s := newSession(t, remote.NewMemoryStore(), sync.Options{})

	_, err := s.AddEntry(entry("x"))
	assert.ErrorIs(t, err, models.ErrLocked)
	assert.ErrorIs(t, s.DeleteEntry("x"), models.ErrLocked)
	assert.ErrorIs(t, s.Sync(context.Background()), models.ErrLocked)
	assert.ErrorIs(t, s.Download(context.Background()), models.ErrLocked)

	_, err = s.Search("x")
	assert.ErrorIs(t, err, models.ErrLocked)
}

func TestMutations(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	added, err := s.AddEntry(entry("Mail"))
	require.NoError(t, err)

	added.Username = "bob"
	updated, err := s.UpdateEntry(added)
	require.NoError(t, err)
	assert.Equal(t, "bob", updated.Username)

	require.NoError(t, s.AddCategory("Finance"))
	note, err := s.AddNote(models.Note{Title: "Recovery codes", Content: "1234"})
	require.NoError(t, err)

	results, err := s.Search("bob")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	require.NoError(t, s.DeleteNote(note.ID))
	require.NoError(t, s.DeleteEntry(added.ID))
	assert.ErrorIs(t, s.DeleteEntry(added.ID), models.ErrEntryNotFound)

	_, err = s.AddEntry(models.PasswordEntry{Title: "no password"})
	assert.ErrorIs(t, err, models.ErrInvalidEntry)

	status := s.Status()
	assert.Equal(t, sync.StateDirty, status.State)
	assert.Equal(t, 6, status.PendingChanges)
	assert.Equal(t, 0, status.Entries)

	v, err := s.Vault()
	require.NoError(t, err)
	assert.Contains(t, v.Categories, "Finance")
}

func TestAddExistingCategoryIsNotAChange(t *testing.T) {
	s := unlocked(t, remote.NewMemoryStore(), sync.Options{})

	require.NoError(t, s.AddCategory("Work"))
	require.NoError(t, s.Sync(context.Background()))

	require.NoError(t, s.AddCategory("Work"))
	assert.Equal(t, sync.StateClean, s.State())
}

func TestSyncFromCleanUploadsNothing(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	require.NoError(t, s.Sync(context.Background()))
	assert.Empty(t, store.Puts())
	assert.Equal(t, sync.StateClean, s.State())
}

func TestFailedSyncStaysDirty(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	added, err := s.AddEntry(entry("Bank"))
	require.NoError(t, err)

	store.SetPutError(&models.NetworkError{Op: "put vault", StatusCode: 503, Err: errors.New("unavailable")})
	err = s.Sync(context.Background())
	require.Error(t, err)

	var syncErr *models.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, sync.PhaseUpload, syncErr.Phase)
	assert.Equal(t, models.ErrCodeNetwork, models.ErrorCode(err))
	assert.True(t, models.IsRetryable(err))

	assert.Equal(t, sync.StateDirty, s.State())
	assert.Contains(t, s.Status().LastError, "unavailable")
	_, err = s.Entry(added.ID)
	assert.NoError(t, err)

	store.SetPutError(nil)
	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, sync.StateClean, s.State())
	assert.Empty(t, s.Status().LastError)
	assert.Len(t, openPut(t, store, 0).Passwords, 1)
}

func TestMutationDuringSyncReachesNextUpload(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	_, err := s.AddEntry(entry("first"))
	require.NoError(t, err)

	started, release := blockPuts(store)
	task := s.SyncAsync(context.Background())
	waitStarted(t, started)
	assert.Equal(t, sync.StateSyncing, s.State())

	_, err = s.AddEntry(entry("second"))
	require.NoError(t, err)
	assert.Equal(t, sync.StateSyncing, s.State())

	release()
	require.NoError(t, task.Wait())
	assert.Equal(t, sync.StateDirty, s.State())
	assert.Len(t, openPut(t, store, 0).Passwords, 1)

	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, sync.StateClean, s.State())

	latest := openPut(t, store, 1)
	require.Len(t, latest.Passwords, 2)
	assert.Equal(t, "second", latest.Passwords[1].Title)
}

func TestLockWaitsForInflightSync(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	_, err := s.AddEntry(entry("pending"))
	require.NoError(t, err)

	started, release := blockPuts(store)
	task := s.SyncAsync(context.Background())
	waitStarted(t, started)

	locked := make(chan sync.LockResult, 1)
	go func() { locked <- s.Lock() }()

	select {
	case <-locked:
		t.Fatal("Lock returned while a sync was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	require.NoError(t, task.Wait())

	select {
	case res := <-locked:
		assert.Equal(t, 0, res.DiscardedChanges)
	case <-time.After(5 * time.Second):
		t.Fatal("Lock did not return after sync settled")
	}
	assert.Equal(t, sync.StateLocked, s.State())
	assert.Len(t, store.Puts(), 1)
}

func TestLockDiscardsUnsyncedChanges(t *testing.T) {
	s := unlocked(t, remote.NewMemoryStore(), sync.Options{})

	_, err := s.AddEntry(entry("a"))
	require.NoError(t, err)
	_, err = s.AddEntry(entry("b"))
	require.NoError(t, err)

	res := s.Lock()
	assert.Equal(t, 2, res.DiscardedChanges)
	assert.Equal(t, sync.StateLocked, s.State())

	_, err = s.Vault()
	assert.ErrorIs(t, err, models.ErrLocked)
	assert.Equal(t, sync.LockResult{}, s.Lock())
}

func TestSingleSyncInFlight(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	var active, maxActive int32
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	store.SetBeforePut(func(ctx context.Context, blob *models.EncryptedBlob) error {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		started <- struct{}{}
		<-release
		return nil
	})

	_, err := s.AddEntry(entry("one"))
	require.NoError(t, err)
	first := s.SyncAsync(context.Background())
	waitStarted(t, started)

	_, err = s.AddEntry(entry("two"))
	require.NoError(t, err)
	second := s.SyncAsync(context.Background())

	select {
	case <-second.Done():
		t.Fatal("second sync finished while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, first.Wait())
	require.NoError(t, second.Wait())

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
	assert.Len(t, store.Puts(), 2)
	assert.Equal(t, sync.StateClean, s.State())
	assert.Len(t, openPut(t, store, 1).Passwords, 2)
}

func TestSyncAsyncCancelledBeforeUpload(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	_, err := s.AddEntry(entry("x"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := s.SyncAsync(ctx)
	assert.ErrorIs(t, task.Wait(), context.Canceled)
	assert.Empty(t, store.Puts())
	assert.Equal(t, sync.StateDirty, s.State())
}

func TestCancelAfterUploadStartsSettles(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{})

	_, err := s.AddEntry(entry("x"))
	require.NoError(t, err)

	started, release := blockPuts(store)
	task := s.SyncAsync(context.Background())
	waitStarted(t, started)
	task.Cancel()
	release()

	require.NoError(t, task.Wait())
	assert.Len(t, store.Puts(), 1)
	assert.Equal(t, sync.StateClean, s.State())
}

func TestAutoLock(t *testing.T) {
	s := unlocked(t, remote.NewMemoryStore(), sync.Options{AutoLockTimeout: 50 * time.Millisecond})

	assert.Eventually(t, func() bool {
		return s.State() == sync.StateLocked
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAutoLockPostponedByActivity(t *testing.T) {
	s := unlocked(t, remote.NewMemoryStore(), sync.Options{AutoLockTimeout: 200 * time.Millisecond})

	for i := 0; i < 5; i++ {
		time.Sleep(60 * time.Millisecond)
		s.Touch()
	}
	assert.NotEqual(t, sync.StateLocked, s.State())
}

func TestAutoSync(t *testing.T) {
	store := remote.NewMemoryStore()
	s := unlocked(t, store, sync.Options{AutoSync: true})

	_, err := s.AddEntry(entry("auto"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(store.Puts()) >= 1 && s.State() == sync.StateClean
	}, 5*time.Second, 10*time.Millisecond)
}

type fakeWatcher struct {
	ch chan models.WSMessage
}

func (w *fakeWatcher) WatchVault(ctx context.Context, path string) (<-chan models.WSMessage, error) {
	return w.ch, nil
}

func TestRemoteChangeReloadsCleanSession(t *testing.T) {
	store := remote.NewMemoryStore()
	writer := unlocked(t, store, sync.Options{})
	_, err := writer.AddEntry(entry("one"))
	require.NoError(t, err)
	require.NoError(t, writer.Sync(context.Background()))

	watcher := &fakeWatcher{ch: make(chan models.WSMessage)}
	reader := newSession(t, store, sync.Options{WatchRemote: true, WatchPath: "/api/vault/events"})
	reader.SetWatcher(watcher)
	require.NoError(t, reader.Unlock(context.Background(), masterPassword))
	assert.Equal(t, 1, reader.Status().Entries)

	_, err = writer.AddEntry(entry("two"))
	require.NoError(t, err)
	require.NoError(t, writer.Sync(context.Background()))

	watcher.ch <- models.WSMessage{Type: models.WSTypeVaultUpdated, Timestamp: time.Now()}
	assert.Eventually(t, func() bool {
		return reader.Status().Entries == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRemoteChangeIgnoredWhenDirty(t *testing.T) {
	store := remote.NewMemoryStore()
	watcher := &fakeWatcher{ch: make(chan models.WSMessage)}
	s := newSession(t, store, sync.Options{WatchRemote: true})
	s.SetWatcher(watcher)
	require.NoError(t, s.Unlock(context.Background(), masterPassword))

	_, err := s.AddEntry(entry("local"))
	require.NoError(t, err)
	fetches := store.Fetches()

	watcher.ch <- models.WSMessage{Type: models.WSTypeVaultUpdated}
	// A second send only completes once the first was handled.
	watcher.ch <- models.WSMessage{Type: models.WSTypePong}

	assert.Equal(t, fetches, store.Fetches())
	assert.Equal(t, sync.StateDirty, s.State())
	assert.Equal(t, 1, s.Status().Entries)
}

func TestDownloadRefusesUnsyncedChanges(t *testing.T) {
	s := unlocked(t, remote.NewMemoryStore(), sync.Options{})
	_, err := s.AddEntry(entry("local"))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Download(context.Background()), sync.ErrUnsyncedChanges)
}

func TestSyncRecordsCache(t *testing.T) {
	store := remote.NewMemoryStore()
	cache := state.NewMockStore()
	s := sync.NewService(store, newVaults(), cache, sync.Options{AccountID: "alice@test"}, events.Discard())
	defer s.Close()

	require.NoError(t, s.Unlock(context.Background(), masterPassword))
	_, err := s.AddEntry(entry("cached"))
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background()))

	cached, err := cache.Load("alice@test")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Uploads)
	assert.Equal(t, string(crypto.SchemeCBC), cached.Scheme)
	require.NotNil(t, cached.Blob)
	assert.Equal(t, store.Blob().Salt, cached.Blob.Salt)
	assert.False(t, cached.LastSyncTime.IsZero())

	s.Lock()
	assert.False(t, s.Status().LastSync.IsZero())
}

type mockAuth struct {
	mock.Mock
}

func (a *mockAuth) Logout(ctx context.Context) error {
	return a.Called(ctx).Error(0)
}

func TestLogout(t *testing.T) {
	s := unlocked(t, remote.NewMemoryStore(), sync.Options{})
	account := &mockAuth{}
	account.On("Logout", mock.Anything).Return(nil).Once()
	s.SetAccountAuth(account)

	_, err := s.AddEntry(entry("lost"))
	require.NoError(t, err)

	res, err := s.Logout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.DiscardedChanges)
	assert.Equal(t, sync.StateLocked, s.State())
	account.AssertExpectations(t)
}

func TestLogoutAuthFailureStillLocks(t *testing.T) {
	s := unlocked(t, remote.NewMemoryStore(), sync.Options{})
	account := &mockAuth{}
	account.On("Logout", mock.Anything).Return(errors.New("remove token file: permission denied"))
	s.SetAccountAuth(account)

	_, err := s.Logout(context.Background())
	assert.ErrorContains(t, err, "permission denied")
	assert.Equal(t, sync.StateLocked, s.State())
	account.AssertNumberOfCalls(t, "Logout", 1)
}

func TestEvents(t *testing.T) {
	s := unlocked(t, remote.NewMemoryStore(), sync.Options{})
	_, err := s.AddEntry(entry("x"))
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background()))

	var types []sync.EventType
	for len(types) < 4 {
		select {
		case e := <-s.Events():
			types = append(types, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("missing events, got %v", types)
		}
	}
	assert.Equal(t, []sync.EventType{
		sync.EventUnlocked,
		sync.EventChanged,
		sync.EventSyncStarted,
		sync.EventSyncCompleted,
	}, types)
}

func TestVerifyPassword(t *testing.T) {
	s := newSession(t, remote.NewMemoryStore(), sync.Options{})
	assert.False(t, s.VerifyPassword(masterPassword))

	require.NoError(t, s.Unlock(context.Background(), masterPassword))
	assert.True(t, s.VerifyPassword(masterPassword))
	assert.False(t, s.VerifyPassword("nope"))

	s.Lock()
	assert.False(t, s.VerifyPassword(masterPassword))
}

func TestStashRestoresAfterRestart(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemoryStore()
	cache := state.NewMockStore()
	opts := sync.Options{AccountID: "alice@test"}

	first := sync.NewService(store, newVaults(), cache, opts, events.Discard())
	require.NoError(t, first.Unlock(ctx, masterPassword))
	for _, title := range []string{"one", "two"} {
		_, err := first.AddEntry(entry(title))
		require.NoError(t, err)
	}

	store.SetPutError(&models.NetworkError{Op: "put", Err: errors.New("offline")})
	require.Error(t, first.Sync(ctx))

	n, err := first.Stash(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, first.Close().DiscardedChanges)

	second := sync.NewService(store, newVaults(), cache, opts, events.Discard())
	defer second.Close()
	assert.Equal(t, 2, second.Status().PendingChanges)

	store.SetPutError(nil)
	require.NoError(t, second.Unlock(ctx, masterPassword))
	assert.Equal(t, sync.StateDirty, second.State())
	assert.Equal(t, 2, second.Status().Entries)
	assert.Equal(t, 2, second.Status().PendingChanges)

	require.NoError(t, second.Sync(ctx))
	assert.Equal(t, sync.StateClean, second.State())
	assert.Len(t, openPut(t, store, 0).Passwords, 2)

	cached, err := cache.Load("alice@test")
	require.NoError(t, err)
	assert.Nil(t, cached.Pending)
	assert.Zero(t, cached.PendingChanges)
}

func TestStash(t *testing.T) {
	ctx := context.Background()

	t.Run("clean session has nothing to stash", func(t *testing.T) {
		cache := state.NewMockStore()
		s := sync.NewService(remote.NewMemoryStore(), newVaults(), cache, sync.Options{AccountID: "a"}, events.Discard())
		defer s.Close()
		require.NoError(t, s.Unlock(ctx, masterPassword))

		n, err := s.Stash(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("locked", func(t *testing.T) {
		s := sync.NewService(remote.NewMemoryStore(), newVaults(), state.NewMockStore(), sync.Options{AccountID: "a"}, events.Discard())
		_, err := s.Stash(ctx)
		assert.ErrorIs(t, err, models.ErrLocked)
	})

	t.Run("no cache", func(t *testing.T) {
		s := unlocked(t, remote.NewMemoryStore(), sync.Options{})
		_, err := s.AddEntry(entry("x"))
		require.NoError(t, err)

		_, err = s.Stash(ctx)
		assert.ErrorIs(t, err, sync.ErrNoLocalCache)
	})

	t.Run("cache write fails", func(t *testing.T) {
		cache := state.NewMockStore()
		s := sync.NewService(remote.NewMemoryStore(), newVaults(), cache, sync.Options{AccountID: "a"}, events.Discard())
		defer s.Close()
		require.NoError(t, s.Unlock(ctx, masterPassword))
		_, err := s.AddEntry(entry("x"))
		require.NoError(t, err)

		cache.SaveError = assert.AnError
		_, err = s.Stash(ctx)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("other password leaves the stash in place", func(t *testing.T) {
		cache := state.NewMockStore()
		opts := sync.Options{AccountID: "a"}
		store := remote.NewMemoryStore()
		store.SetPutError(errors.New("offline"))

		s := sync.NewService(store, newVaults(), cache, opts, events.Discard())
		require.NoError(t, s.Unlock(ctx, masterPassword))
		_, err := s.AddEntry(entry("x"))
		require.NoError(t, err)
		_, err = s.Stash(ctx)
		require.NoError(t, err)
		s.Close()

		other := sync.NewService(store, newVaults(), cache, opts, events.Discard())
		defer other.Close()
		require.NoError(t, other.Unlock(ctx, "a different password"))
		assert.Equal(t, sync.StateClean, other.State())
		assert.Zero(t, other.Status().Entries)

		cached, err := cache.Load("a")
		require.NoError(t, err)
		assert.NotNil(t, cached.Pending)
	})
}

func TestCloseRacesAutoSync(t *testing.T) {
	store := remote.NewMemoryStore()
	s := sync.NewService(store, newVaults(), nil, sync.Options{AutoSync: true}, events.Discard())
	require.NoError(t, s.Unlock(context.Background(), masterPassword))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if _, err := s.AddEntry(entry("x")); err != nil {
				assert.ErrorIs(t, err, models.ErrLocked)
				return
			}
		}
	}()

	time.Sleep(5 * time.Millisecond)
	s.Close()
	<-done
	assert.Equal(t, sync.StateLocked, s.State())

	task := s.SyncAsync(context.Background())
	select {
	case <-task.Done():
	default:
		t.Fatal("task on a locked session should already be done")
	}
	assert.ErrorIs(t, task.Wait(), models.ErrLocked)
}
