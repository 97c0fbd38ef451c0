package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TheMichaelB/zpass/internal/config"
	"github.com/TheMichaelB/zpass/internal/creds"
	"github.com/TheMichaelB/zpass/internal/crypto"
	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
	"github.com/TheMichaelB/zpass/internal/remote"
	"github.com/TheMichaelB/zpass/internal/services/auth"
	"github.com/TheMichaelB/zpass/internal/services/sync"
	"github.com/TheMichaelB/zpass/internal/services/vaults"
	"github.com/TheMichaelB/zpass/internal/state"
	"github.com/TheMichaelB/zpass/internal/transport"
)

// Client provides the high-level API for zpass operations.
type Client struct {
	Auth     *auth.Service
	Vaults   *vaults.Service
	Sync     *sync.Service
	State    StateManager
	Settings *config.Settings

	config        *config.Config
	logger        *events.Logger
	transport     transport.Transport
	remote        remote.Store
	cache         state.Store
	settingsStore *config.SettingsStore
	creds         *creds.Combined
	accountID     string
}

// StateManager provides access to the local blob cache.
type StateManager interface {
	ListStates() ([]*models.SyncState, error)
	LoadState(accountID string) (*models.SyncState, error)
	Reset(accountID string) error
}

// Option customizes client construction.
type Option func(*options)

type options struct {
	transport transport.Transport
	remote    remote.Store
}

// WithTransport replaces the HTTP transport.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithRemote replaces the remote store selected by configuration.
func WithRemote(r remote.Store) Option {
	return func(o *options) { o.remote = r }
}

// New creates a new zpass client.
func New(ctx context.Context, cfg *config.Config, logger *events.Logger, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Load user settings
	settingsStore := config.NewSettingsStore(expandHome(cfg.Storage.SettingsFile))
	settings, err := settingsStore.Load()
	if err != nil {
		logger.WithError(err).Warn("Failed to load settings, using defaults")
		settings = config.DefaultSettings()
	}
	if cfg.API.BaseURL == config.OfficialServer {
		if url, err := settings.ServerURL(); err == nil {
			cfg.API.BaseURL = url
		}
	}

	// Create transport
	transportClient := o.transport
	if transportClient == nil {
		dt := transport.NewTransport(&cfg.API, logger)
		if cfg.Dev.InsecureSkipVerify {
			logger.Warn("TLS verification disabled")
			dt.HTTP().SetInsecureSkipVerify(true)
		}
		transportClient = dt
	}

	// Create crypto provider
	cryptoProvider, err := newProvider(&cfg.Crypto)
	if err != nil {
		return nil, err
	}

	// Create state store
	cache, err := state.New(cfg.Storage.CacheBackend, expandHome(cfg.Storage.StateDir), logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	// Use configured token file path with tilde expansion
	tokenFile := cfg.Auth.TokenFile
	if tokenFile == "" {
		tokenFile = filepath.Join(cfg.Storage.StateDir, "auth", "token.json")
	}
	tokenFile = expandHome(tokenFile)

	authService := auth.NewService(transportClient, tokenFile, logger)

	combined, err := loadCredentials(ctx, &cfg.Auth)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	if combined != nil {
		authService.SetCredentials(combined)
	}

	// A saved token installs itself on the transport
	accountID := cfg.Remote.AccountID
	if id, err := authService.AccountID(); err == nil && accountID == "" {
		accountID = id
	}

	remoteCfg := cfg.Remote
	remoteCfg.AccountID = accountID
	store := o.remote
	if store == nil {
		store, err = remote.New(ctx, &remoteCfg, transportClient, logger)
		if err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("open remote store: %w", err)
		}
	}

	vaultsService := vaults.NewService(cryptoProvider, logger)
	syncService := sync.NewService(store, vaultsService, cache, sessionOptions(cfg, settings, accountID), logger)
	syncService.SetAccountAuth(authService)
	if cfg.Remote.Backend == "http" || cfg.Remote.Backend == "" {
		syncService.SetWatcher(transportClient)
	}

	client := &Client{
		Auth:          authService,
		Vaults:        vaultsService,
		Sync:          syncService,
		State:         &stateManager{store: cache},
		Settings:      settings,
		config:        cfg,
		logger:        logger,
		transport:     transportClient,
		remote:        store,
		cache:         cache,
		settingsStore: settingsStore,
		creds:         combined,
		accountID:     accountID,
	}

	return client, nil
}

// AccountID returns the account the session caches under, if known.
func (c *Client) AccountID() string {
	return c.accountID
}

// Config returns the active configuration.
func (c *Client) Config() *config.Config {
	return c.config
}

// Unlock opens the vault. An empty password falls back to the combined
// credentials, if any. The http backend needs a logged-in account.
func (c *Client) Unlock(ctx context.Context, masterPassword string) error {
	if c.usesAPI() {
		if _, err := c.Auth.GetToken(); err != nil {
			return err
		}
	}

	if masterPassword == "" && c.creds != nil {
		masterPassword = c.creds.MasterPassword(c.accountID)
	}
	if masterPassword == "" {
		return &models.AuthenticationError{Reason: "master password is required"}
	}

	return c.Sync.Unlock(ctx, masterPassword)
}

// HasStoredMasterPassword reports whether Unlock can run without a prompt.
func (c *Client) HasStoredMasterPassword() bool {
	return c.creds != nil && c.creds.MasterPassword(c.accountID) != ""
}

// SaveSettings validates and persists settings.
func (c *Client) SaveSettings(settings *config.Settings) error {
	if err := c.settingsStore.Save(settings); err != nil {
		return err
	}
	c.Settings = settings
	return nil
}

// SettingsPath returns the settings file location.
func (c *Client) SettingsPath() string {
	return c.settingsStore.Path()
}

// Close locks the session and releases resources.
func (c *Client) Close() error {
	res := c.Sync.Close()
	if res.DiscardedChanges > 0 {
		c.logger.WithField("discarded", res.DiscardedChanges).Warn("Closed with unsynced changes")
	}

	var errs []error
	if err := c.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.cache.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Client) usesAPI() bool {
	return c.config.Remote.Backend == "http" || c.config.Remote.Backend == ""
}

func newProvider(cfg *config.CryptoConfig) (*crypto.CryptoProvider, error) {
	scheme, err := crypto.ParseScheme(cfg.Scheme)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	opts := []crypto.Option{
		crypto.WithScheme(scheme),
		crypto.WithLegacyCBC(cfg.AllowLegacyCBC),
	}
	if cfg.Iterations > 0 {
		opts = append(opts, crypto.WithIterations(cfg.Iterations))
	}
	return crypto.NewProvider(opts...), nil
}

// sessionOptions merges configuration with user settings. Settings win for
// auto-lock and auto-sync.
func sessionOptions(cfg *config.Config, settings *config.Settings, accountID string) sync.Options {
	opts := sync.Options{
		AccountID:       accountID,
		AutoLockTimeout: cfg.Session.AutoLockTimeout,
		AutoSync:        cfg.Session.SyncOnChanges,
		WatchRemote:     cfg.Session.WatchRemote,
		WatchPath:       cfg.Session.WatchPath,
	}
	if settings != nil {
		opts.AutoLockTimeout = settings.EffectiveAutoLock()
		opts.AutoSync = settings.Sync.AutoSync && settings.Sync.OnChanges
	}
	return opts
}

func loadCredentials(ctx context.Context, cfg *config.AuthConfig) (*creds.Combined, error) {
	switch {
	case cfg.CredentialsFile != "":
		c, err := creds.LoadFromFile(expandHome(cfg.CredentialsFile))
		if err != nil {
			return nil, fmt.Errorf("load credentials: %w", err)
		}
		return c, nil
	case cfg.CredentialsSecret != "":
		c, err := creds.LoadFromSecret(ctx, cfg.CredentialsSecret)
		if err != nil {
			return nil, fmt.Errorf("load credentials secret: %w", err)
		}
		return c, nil
	case cfg.Username != "" && cfg.Password != "":
		c := &creds.Combined{}
		c.Auth.Username = cfg.Username
		c.Auth.Password = cfg.Password
		return c, nil
	}
	return nil, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}

// stateManager implements StateManager interface.
type stateManager struct {
	store state.Store
}

func (sm *stateManager) ListStates() ([]*models.SyncState, error) {
	accountIDs, err := sm.store.List()
	if err != nil {
		return nil, err
	}

	var states []*models.SyncState
	for _, accountID := range accountIDs {
		syncState, err := sm.store.Load(accountID)
		if err != nil {
			continue // Skip states that can't be loaded
		}
		states = append(states, syncState)
	}

	return states, nil
}

func (sm *stateManager) LoadState(accountID string) (*models.SyncState, error) {
	return sm.store.Load(accountID)
}

func (sm *stateManager) Reset(accountID string) error {
	return sm.store.Reset(accountID)
}
