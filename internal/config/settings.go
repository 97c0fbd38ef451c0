package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/TheMichaelB/zpass/internal/strength"
)

// Known servers.
const (
	OfficialServer  = "https://api.zpass.app"
	LocalhostServer = "http://127.0.0.1:5000"
)

// Settings are user preferences. They are an explicit value with a
// load/save lifecycle owned by a SettingsStore.
type Settings struct {
	Servers             map[string]string `mapstructure:"servers"`
	CurrentServer       string            `mapstructure:"current_server"`
	RememberCredentials bool              `mapstructure:"remember_credentials"`
	Username            string            `mapstructure:"username"`
	Theme               string            `mapstructure:"theme"`

	Security  SecuritySettings          `mapstructure:"security"`
	Generator strength.GeneratorOptions `mapstructure:"generator"`
	Clipboard ClipboardSettings         `mapstructure:"clipboard"`
	Sync      SyncSettings              `mapstructure:"sync"`
}

// SecuritySettings control auto-lock.
type SecuritySettings struct {
	AutoLockEnabled bool          `mapstructure:"auto_lock_enabled"`
	AutoLockTimeout time.Duration `mapstructure:"auto_lock_timeout"`
}

// ClipboardSettings control how long copied secrets stay on the clipboard.
type ClipboardSettings struct {
	Clear   bool          `mapstructure:"clear"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SyncSettings control when the session uploads.
type SyncSettings struct {
	AutoSync  bool          `mapstructure:"auto_sync"`
	Interval  time.Duration `mapstructure:"interval"`
	OnStartup bool          `mapstructure:"on_startup"`
	OnChanges bool          `mapstructure:"on_changes"`
}

// DefaultSettings returns the preferences of a fresh install.
func DefaultSettings() *Settings {
	return &Settings{
		Servers: map[string]string{
			"official":  OfficialServer,
			"localhost": LocalhostServer,
			"custom":    "",
		},
		CurrentServer: "official",
		Theme:         "dark",
		Security: SecuritySettings{
			AutoLockEnabled: true,
			AutoLockTimeout: 15 * time.Minute,
		},
		Generator: strength.DefaultGeneratorOptions(),
		Clipboard: ClipboardSettings{
			Clear:   true,
			Timeout: 30 * time.Second,
		},
		Sync: SyncSettings{
			AutoSync:  true,
			Interval:  5 * time.Minute,
			OnStartup: true,
			OnChanges: true,
		},
	}
}

// ServerURL returns the URL of the selected server.
func (s *Settings) ServerURL() (string, error) {
	url, ok := s.Servers[s.CurrentServer]
	if !ok {
		return "", fmt.Errorf("%w: unknown server %q", errInvalidSettings, s.CurrentServer)
	}
	if url == "" {
		return "", fmt.Errorf("%w: server %q has no URL", errInvalidSettings, s.CurrentServer)
	}
	return url, nil
}

// SetCustomServer stores url as the custom server and selects it.
func (s *Settings) SetCustomServer(url string) {
	if s.Servers == nil {
		s.Servers = map[string]string{}
	}
	s.Servers["custom"] = url
	s.CurrentServer = "custom"
}

// EffectiveAutoLock returns the idle timeout, or 0 when auto-lock is off.
func (s *Settings) EffectiveAutoLock() time.Duration {
	if !s.Security.AutoLockEnabled {
		return 0
	}
	return s.Security.AutoLockTimeout
}

// Validate checks preference values.
func (s *Settings) Validate() error {
	if s.Security.AutoLockTimeout < 0 {
		return fmt.Errorf("%w: auto_lock_timeout must not be negative", errInvalidSettings)
	}
	if s.Clipboard.Timeout < 0 {
		return fmt.Errorf("%w: clipboard timeout must not be negative", errInvalidSettings)
	}
	if s.Generator.Length < 0 || s.Generator.Length > strength.MaxLength {
		return fmt.Errorf("%w: generator length out of range", errInvalidSettings)
	}
	if s.Sync.Interval < 0 {
		return fmt.Errorf("%w: sync interval must not be negative", errInvalidSettings)
	}
	return nil
}

var errInvalidSettings = errors.New("invalid settings")

// SettingsStore persists Settings to a file.
type SettingsStore struct {
	path string
}

// NewSettingsStore creates a store backed by path. The format follows the
// extension (json or yaml).
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Path returns the backing file.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads settings, falling back to defaults for a missing file or key.
func (s *SettingsStore) Load() (*Settings, error) {
	settings := DefaultSettings()

	v := viper.New()
	v.SetConfigFile(s.path)
	if _, err := os.Stat(s.path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat settings: %w", err)
	}

	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes settings atomically with owner-only permissions.
func (s *SettingsStore) Save(settings *Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	v := viper.New()
	v.Set("servers", settings.Servers)
	v.Set("current_server", settings.CurrentServer)
	v.Set("remember_credentials", settings.RememberCredentials)
	v.Set("username", settings.Username)
	v.Set("theme", settings.Theme)
	v.Set("security.auto_lock_enabled", settings.Security.AutoLockEnabled)
	v.Set("security.auto_lock_timeout", settings.Security.AutoLockTimeout.String())
	v.Set("generator.default_length", settings.Generator.Length)
	v.Set("generator.include_uppercase", settings.Generator.Uppercase)
	v.Set("generator.include_lowercase", settings.Generator.Lowercase)
	v.Set("generator.include_numbers", settings.Generator.Numbers)
	v.Set("generator.include_symbols", settings.Generator.Symbols)
	v.Set("clipboard.clear", settings.Clipboard.Clear)
	v.Set("clipboard.timeout", settings.Clipboard.Timeout.String())
	v.Set("sync.auto_sync", settings.Sync.AutoSync)
	v.Set("sync.interval", settings.Sync.Interval.String())
	v.Set("sync.on_startup", settings.Sync.OnStartup)
	v.Set("sync.on_changes", settings.Sync.OnChanges)

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp := s.path + ".tmp" + filepath.Ext(s.path)
	if err := v.WriteConfigAs(tmp); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Chmod(tmp, 0600); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}
