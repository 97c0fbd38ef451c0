package state

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// JSONStore implements file-based state storage, one checksummed file per
// account with a backup of the previous version.
type JSONStore struct {
	baseDir string
	logger  *events.Logger
	mu      sync.RWMutex
}

// NewJSONStore creates a JSON-based state store.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_state_store"),
	}, nil
}

// Load reads state from JSON file.
func (s *JSONStore) Load(accountID string) (*models.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.statePath(accountID)

	s.logger.WithField("account_id", accountID).Debug("Loading state")

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	state, err := decodeState(data)
	if err != nil {
		s.logger.WithError(err).Warn("State file unreadable, trying backup")
		if backup, berr := s.loadBackup(accountID); berr == nil {
			return backup, nil
		}
		return nil, ErrStateCorrupt
	}

	return state, nil
}

// Save writes state to JSON file.
func (s *JSONStore) Save(accountID string, state *models.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.statePath(accountID)

	s.logger.WithFields(map[string]interface{}{
		"account_id": accountID,
		"uploads":    state.Uploads,
	}).Debug("Saving state")

	wrapper := SyncState{
		SyncState:     state,
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     time.Now().UTC(),
	}

	checksum, err := checksumOf(wrapper)
	if err != nil {
		return err
	}
	wrapper.Checksum = checksum

	jsonData, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state with checksum: %w", err)
	}

	// Keep the previous version as a backup
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".backup"); err != nil {
			s.logger.WithError(err).Warn("Failed to create backup")
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// Reset removes state for an account.
func (s *JSONStore) Reset(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("account_id", accountID).Info("Resetting state")

	path := s.statePath(accountID)
	for _, p := range []string{path, path + ".backup"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove state file: %w", err)
		}
	}

	return nil
}

// List returns all account IDs with state.
func (s *JSONStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		ids = append(ids, string(id))
	}

	return ids, nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// Helper methods

// statePath encodes the account ID so server URLs and email addresses are
// safe as file names.
func (s *JSONStore) statePath(accountID string) string {
	return filepath.Join(s.baseDir, base64.RawURLEncoding.EncodeToString([]byte(accountID))+".json")
}

func (s *JSONStore) loadBackup(accountID string) (*models.SyncState, error) {
	data, err := os.ReadFile(s.statePath(accountID) + ".backup")
	if err != nil {
		return nil, err
	}
	return decodeState(data)
}

func decodeState(data []byte) (*models.SyncState, error) {
	var wrapper SyncState
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	if wrapper.SyncState == nil {
		return nil, fmt.Errorf("%w: empty state", ErrStateCorrupt)
	}

	if wrapper.Checksum != "" {
		expected := wrapper.Checksum
		wrapper.Checksum = ""
		calculated, err := checksumOf(wrapper)
		if err != nil {
			return nil, err
		}
		if calculated != expected {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrStateCorrupt)
		}
	}

	return wrapper.SyncState, nil
}

// checksumOf hashes the wrapper with its Checksum field empty.
func checksumOf(wrapper SyncState) (string, error) {
	wrapper.Checksum = ""
	data, err := json.Marshal(wrapper)
	if err != nil {
		return "", fmt.Errorf("marshal state for checksum: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
