package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix for environment overrides, e.g. ZPASS_LOG_LEVEL=debug.
const EnvPrefix = "ZPASS"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader creates a config loader. An empty path searches the default
// locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		v:          viper.New(),
	}
}

// Viper exposes the underlying instance so commands can bind flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// ConfigFile returns the file that was read, if any.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Load reads configuration from defaults, file and environment, in rising
// order of precedence.
func (l *Loader) Load() (*Config, error) {
	v := l.v
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := l.configPath
	if path == "" {
		for _, candidate := range l.defaultPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)
	cfg.Storage.StateDir = expandHome(cfg.Storage.StateDir)
	cfg.Storage.SettingsFile = expandHome(cfg.Storage.SettingsFile)
	cfg.Auth.TokenFile = expandHome(cfg.Auth.TokenFile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// defaultPaths returns default config file locations.
func (l *Loader) defaultPaths() []string {
	paths := []string{
		"zpass.json",
		"zpass.yaml",
		".zpass.json",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "zpass", "config.json"),
			filepath.Join(homeDir, ".config", "zpass", "config.yaml"),
			filepath.Join(homeDir, ".zpass", "config.json"),
		)
	}

	return paths
}

// setDefaults registers every key so environment overrides apply even when
// the file does not mention them.
func setDefaults(v *viper.Viper, cfg *Config) {
	defaults := map[string]any{
		"api.base_url":              cfg.API.BaseURL,
		"api.timeout":               cfg.API.Timeout,
		"api.user_agent":            cfg.API.UserAgent,
		"auth.username":             cfg.Auth.Username,
		"auth.password":             cfg.Auth.Password,
		"auth.token_file":           cfg.Auth.TokenFile,
		"auth.credentials_file":     cfg.Auth.CredentialsFile,
		"auth.credentials_secret":   cfg.Auth.CredentialsSecret,
		"storage.data_dir":          cfg.Storage.DataDir,
		"storage.state_dir":         cfg.Storage.StateDir,
		"storage.cache_backend":     cfg.Storage.CacheBackend,
		"storage.settings_file":     cfg.Storage.SettingsFile,
		"remote.backend":            cfg.Remote.Backend,
		"remote.account_id":         cfg.Remote.AccountID,
		"remote.s3_bucket":          cfg.Remote.S3Bucket,
		"remote.s3_prefix":          cfg.Remote.S3Prefix,
		"remote.dynamodb_table":     cfg.Remote.DynamoDBTable,
		"remote.file_path":          cfg.Remote.FilePath,
		"crypto.scheme":             cfg.Crypto.Scheme,
		"crypto.allow_legacy_cbc":   cfg.Crypto.AllowLegacyCBC,
		"crypto.iterations":         cfg.Crypto.Iterations,
		"session.auto_lock_timeout": cfg.Session.AutoLockTimeout,
		"session.sync_on_changes":   cfg.Session.SyncOnChanges,
		"session.watch_remote":      cfg.Session.WatchRemote,
		"session.watch_path":        cfg.Session.WatchPath,
		"log.level":                 cfg.Log.Level,
		"log.format":                cfg.Log.Format,
		"log.file":                  cfg.Log.File,
		"log.color":                 cfg.Log.Color,
		"dev.insecure_skip_verify":  cfg.Dev.InsecureSkipVerify,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// SaveExample writes an example config file.
func SaveExample(path string) error {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return os.Chmod(path, 0600)
}
