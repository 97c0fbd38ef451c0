package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// Store caches the last known encrypted vault and its sync metadata per
// account. Nothing in it is plaintext.
type Store interface {
	// Load retrieves the sync state for an account.
	Load(accountID string) (*models.SyncState, error)

	// Save persists the sync state for an account.
	Save(accountID string, state *models.SyncState) error

	// Reset removes all state for an account.
	Reset(accountID string) error

	// List returns all known account IDs.
	List() ([]string, error)

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrStateNotFound = errors.New("state not found")
	ErrStateCorrupt  = errors.New("state file is corrupt")
)

// SyncState extends the model with store metadata.
type SyncState struct {
	*models.SyncState

	// Store metadata
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	Checksum      string    `json:"checksum,omitempty"`
}

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 2

// New opens the cache backend named by backend ("sqlite" or "json") in dir.
func New(backend, dir string, logger *events.Logger) (Store, error) {
	switch backend {
	case "sqlite", "":
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(dir, "state.db"), logger)
	case "json":
		return NewJSONStore(dir, logger)
	default:
		return nil, fmt.Errorf("%w: cache backend %q", models.ErrInvalidConfig, backend)
	}
}
