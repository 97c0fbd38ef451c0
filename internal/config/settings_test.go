package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/zpass/internal/config"
)

func TestDefaultSettings(t *testing.T) {
	s := config.DefaultSettings()

	url, err := s.ServerURL()
	require.NoError(t, err)
	assert.Equal(t, config.OfficialServer, url)
	assert.Equal(t, 15*time.Minute, s.EffectiveAutoLock())
	assert.Equal(t, 16, s.Generator.Length)
	assert.Equal(t, 30*time.Second, s.Clipboard.Timeout)
	assert.Equal(t, 5*time.Minute, s.Sync.Interval)
}

func TestSettings_ServerURL(t *testing.T) {
	s := config.DefaultSettings()

	s.CurrentServer = "custom"
	_, err := s.ServerURL()
	assert.Error(t, err, "custom server without URL")

	s.SetCustomServer("https://vault.example.org")
	url, err := s.ServerURL()
	require.NoError(t, err)
	assert.Equal(t, "https://vault.example.org", url)

	s.CurrentServer = "nowhere"
	_, err = s.ServerURL()
	assert.Error(t, err)
}

func TestSettings_AutoLockDisabled(t *testing.T) {
	s := config.DefaultSettings()
	s.Security.AutoLockEnabled = false
	assert.Zero(t, s.EffectiveAutoLock())
}

func TestSettingsStore_LoadMissing(t *testing.T) {
	store := config.NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), s)
}

func TestSettingsStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	store := config.NewSettingsStore(path)

	s := config.DefaultSettings()
	s.SetCustomServer("https://vault.example.org")
	s.Username = "alice"
	s.RememberCredentials = true
	s.Security.AutoLockTimeout = 2 * time.Minute
	s.Generator.Length = 24
	s.Generator.Symbols = false
	s.Sync.OnChanges = false

	require.NoError(t, store.Save(s))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "custom", loaded.CurrentServer)
	assert.Equal(t, "https://vault.example.org", loaded.Servers["custom"])
	assert.Equal(t, "alice", loaded.Username)
	assert.True(t, loaded.RememberCredentials)
	assert.Equal(t, 2*time.Minute, loaded.Security.AutoLockTimeout)
	assert.Equal(t, 24, loaded.Generator.Length)
	assert.False(t, loaded.Generator.Symbols)
	assert.True(t, loaded.Generator.Numbers)
	assert.False(t, loaded.Sync.OnChanges)
}

func TestSettingsStore_RejectsInvalid(t *testing.T) {
	store := config.NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))

	s := config.DefaultSettings()
	s.Generator.Length = 1000
	assert.Error(t, store.Save(s))
}
