package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// API configuration
	API APIConfig `mapstructure:"api" json:"api"`

	// Authentication configuration
	Auth AuthConfig `mapstructure:"auth" json:"auth"`

	// Storage paths
	Storage StorageConfig `mapstructure:"storage" json:"storage"`

	// Where the encrypted vault lives
	Remote RemoteConfig `mapstructure:"remote" json:"remote"`

	// Vault cipher
	Crypto CryptoConfig `mapstructure:"crypto" json:"crypto"`

	// Unlocked session behavior
	Session SessionConfig `mapstructure:"session" json:"session"`

	// Logging
	Log LogConfig `mapstructure:"log" json:"log"`

	// Development options
	Dev DevConfig `mapstructure:"dev" json:"dev,omitempty"`
}

// APIConfig for server communication.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url" json:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	UserAgent string        `mapstructure:"user_agent" json:"user_agent"`
}

// AuthConfig for account authentication.
type AuthConfig struct {
	Username string `mapstructure:"username" json:"username,omitempty"`

	// Account password for unattended login. The master password is never
	// read from configuration.
	Password string `mapstructure:"password" json:"password,omitempty"`

	// Token persistence
	TokenFile string `mapstructure:"token_file" json:"token_file"`

	// Combined credentials file or Secrets Manager secret
	CredentialsFile   string `mapstructure:"credentials_file" json:"credentials_file,omitempty"`
	CredentialsSecret string `mapstructure:"credentials_secret" json:"credentials_secret,omitempty"`
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir" json:"data_dir"`           // Base directory for all data
	StateDir     string `mapstructure:"state_dir" json:"state_dir"`         // Cached blob and sync metadata
	CacheBackend string `mapstructure:"cache_backend" json:"cache_backend"` // sqlite, json
	SettingsFile string `mapstructure:"settings_file" json:"settings_file"`
}

// RemoteConfig selects the vault store.
type RemoteConfig struct {
	Backend       string `mapstructure:"backend" json:"backend"` // http, s3, dynamodb, file, memory
	AccountID     string `mapstructure:"account_id" json:"account_id,omitempty"`
	S3Bucket      string `mapstructure:"s3_bucket" json:"s3_bucket,omitempty"`
	S3Prefix      string `mapstructure:"s3_prefix" json:"s3_prefix,omitempty"`
	DynamoDBTable string `mapstructure:"dynamodb_table" json:"dynamodb_table,omitempty"`
	FilePath      string `mapstructure:"file_path" json:"file_path,omitempty"`
}

// CryptoConfig for the vault cipher.
type CryptoConfig struct {
	Scheme         string `mapstructure:"scheme" json:"scheme"`
	AllowLegacyCBC bool   `mapstructure:"allow_legacy_cbc" json:"allow_legacy_cbc"`
	Iterations     int    `mapstructure:"iterations" json:"iterations"`
}

// SessionConfig for the unlocked session.
type SessionConfig struct {
	AutoLockTimeout time.Duration `mapstructure:"auto_lock_timeout" json:"auto_lock_timeout"` // 0 disables
	SyncOnChanges   bool          `mapstructure:"sync_on_changes" json:"sync_on_changes"`
	WatchRemote     bool          `mapstructure:"watch_remote" json:"watch_remote"`
	WatchPath       string        `mapstructure:"watch_path" json:"watch_path"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
	File   string `mapstructure:"file" json:"file"`     // Log file path (empty = stderr)
	Color  bool   `mapstructure:"color" json:"color"`   // Enable colored output
}

// DevConfig for development/debugging.
type DevConfig struct {
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// Minimum PBKDF2 iteration count accepted from configuration.
const MinIterations = 100000

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()

	return &Config{
		API: APIConfig{
			BaseURL:   OfficialServer,
			Timeout:   30 * time.Second,
			UserAgent: "zpass-cli/1.0",
		},
		Auth: AuthConfig{
			TokenFile: filepath.Join(dataDir, "auth", "token.json"),
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			StateDir:     filepath.Join(dataDir, "state"),
			CacheBackend: "sqlite",
			SettingsFile: filepath.Join(dataDir, "settings.json"),
		},
		Remote: RemoteConfig{
			Backend: "http",
		},
		Crypto: CryptoConfig{
			Scheme:         "aes-256-cbc",
			AllowLegacyCBC: true,
			Iterations:     MinIterations,
		},
		Session: SessionConfig{
			AutoLockTimeout: 15 * time.Minute,
			SyncOnChanges:   true,
			WatchPath:       "/api/vault/events",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".zpass")
	}
	return ".zpass"
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	switch c.Remote.Backend {
	case "http":
		if c.API.BaseURL == "" {
			return errors.New("api.base_url is required")
		}
	case "s3":
		if c.Remote.S3Bucket == "" {
			return errors.New("remote.s3_bucket is required for the s3 backend")
		}
	case "dynamodb":
		if c.Remote.DynamoDBTable == "" {
			return errors.New("remote.dynamodb_table is required for the dynamodb backend")
		}
	case "file":
		if c.Remote.FilePath == "" {
			return errors.New("remote.file_path is required for the file backend")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid remote backend: %s", c.Remote.Backend)
	}

	validSchemes := map[string]bool{"aes-256-cbc": true, "aes-256-gcm": true, "xchacha20-poly1305": true}
	if !validSchemes[c.Crypto.Scheme] {
		return fmt.Errorf("invalid crypto scheme: %s", c.Crypto.Scheme)
	}

	if c.Crypto.Iterations < MinIterations {
		return fmt.Errorf("crypto.iterations must be at least %d", MinIterations)
	}

	if c.Session.AutoLockTimeout < 0 {
		return errors.New("session.auto_lock_timeout must not be negative")
	}

	validBackends := map[string]bool{"sqlite": true, "json": true}
	if !validBackends[c.Storage.CacheBackend] {
		return fmt.Errorf("invalid cache backend: %s", c.Storage.CacheBackend)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		c.Storage.StateDir,
	}

	if c.Auth.TokenFile != "" {
		dirs = append(dirs, filepath.Dir(c.Auth.TokenFile))
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
