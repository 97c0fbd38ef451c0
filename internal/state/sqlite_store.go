package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// SQLiteStore implements SQLite-based state storage.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore creates a SQLite state store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_state_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sync_states (
        account_id TEXT PRIMARY KEY,
        ciphertext BLOB,
        salt BLOB,
        scheme TEXT NOT NULL DEFAULT '',
        last_sync_time TIMESTAMP,
        last_fetch TIMESTAMP,
        last_error TEXT,
        uploads INTEGER NOT NULL DEFAULT 0,
        pending_ciphertext BLOB,
        pending_salt BLOB,
        pending_changes INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_info (version) VALUES (?)", CurrentSchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return nil
}

// migrate upgrades a database created by an older schema version.
func (s *SQLiteStore) migrate() error {
	var version sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_info").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if !version.Valid || version.Int64 >= 2 {
		return nil
	}

	s.logger.WithField("from", version.Int64).Info("Migrating state database")
	for _, stmt := range []string{
		"ALTER TABLE sync_states ADD COLUMN pending_ciphertext BLOB",
		"ALTER TABLE sync_states ADD COLUMN pending_salt BLOB",
		"ALTER TABLE sync_states ADD COLUMN pending_changes INTEGER NOT NULL DEFAULT 0",
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load retrieves state from database.
func (s *SQLiteStore) Load(accountID string) (*models.SyncState, error) {
	s.logger.WithField("account_id", accountID).Debug("Loading state from SQLite")

	var (
		ciphertext, salt    []byte
		pendingCT, pendingS []byte
		lastSync, lastFetch sql.NullTime
		lastError           sql.NullString
	)

	state := models.NewSyncState(accountID)
	err := s.db.QueryRow(`
        SELECT ciphertext, salt, scheme, last_sync_time, last_fetch, last_error, uploads,
               pending_ciphertext, pending_salt, pending_changes
        FROM sync_states
        WHERE account_id = ?
    `, accountID).Scan(&ciphertext, &salt, &state.Scheme, &lastSync, &lastFetch, &lastError, &state.Uploads,
		&pendingCT, &pendingS, &state.PendingChanges)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}

	if ciphertext != nil || salt != nil {
		state.Blob = &models.EncryptedBlob{Ciphertext: ciphertext, Salt: salt}
	}
	if pendingCT != nil {
		state.Pending = &models.EncryptedBlob{Ciphertext: pendingCT, Salt: pendingS}
	}
	if lastSync.Valid {
		state.LastSyncTime = lastSync.Time
	}
	if lastFetch.Valid {
		state.LastFetch = lastFetch.Time
	}
	if lastError.Valid {
		state.LastError = lastError.String
	}

	return state, nil
}

// Save persists state to database.
func (s *SQLiteStore) Save(accountID string, state *models.SyncState) error {
	s.logger.WithFields(map[string]interface{}{
		"account_id": accountID,
		"uploads":    state.Uploads,
		"has_blob":   state.Blob != nil,
	}).Debug("Saving state to SQLite")

	var ciphertext, salt []byte
	if state.Blob != nil {
		ciphertext, salt = state.Blob.Ciphertext, state.Blob.Salt
	}
	var pendingCT, pendingS []byte
	if state.Pending != nil {
		pendingCT, pendingS = state.Pending.Ciphertext, state.Pending.Salt
	}

	_, err := s.db.Exec(`
        INSERT INTO sync_states (account_id, ciphertext, salt, scheme, last_sync_time, last_fetch, last_error, uploads,
            pending_ciphertext, pending_salt, pending_changes, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(account_id) DO UPDATE SET
            ciphertext = excluded.ciphertext,
            salt = excluded.salt,
            scheme = excluded.scheme,
            last_sync_time = excluded.last_sync_time,
            last_fetch = excluded.last_fetch,
            last_error = excluded.last_error,
            uploads = excluded.uploads,
            pending_ciphertext = excluded.pending_ciphertext,
            pending_salt = excluded.pending_salt,
            pending_changes = excluded.pending_changes,
            updated_at = CURRENT_TIMESTAMP
    `, accountID, ciphertext, salt, state.Scheme, nullTime(state.LastSyncTime), nullTime(state.LastFetch),
		state.LastError, state.Uploads, pendingCT, pendingS, state.PendingChanges)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	return nil
}

// Reset removes state for an account.
func (s *SQLiteStore) Reset(accountID string) error {
	s.logger.WithField("account_id", accountID).Info("Resetting state in SQLite")

	if _, err := s.db.Exec("DELETE FROM sync_states WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}

	return nil
}

// List returns all account IDs.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query("SELECT account_id FROM sync_states ORDER BY account_id")
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account ID: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
