package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// FileStore keeps the blob record in a single JSON file, e.g. on a synced
// folder or removable drive.
type FileStore struct {
	path   string
	logger *events.Logger
	mu     sync.Mutex
}

// NewFileStore creates a file-backed store.
func NewFileStore(path string, logger *events.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.WithField("component", "file_store"),
	}
}

// Fetch reads the record. A missing file means no vault yet.
func (s *FileStore) Fetch(ctx context.Context) (*models.EncryptedBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vault file: %w", err)
	}

	var record models.BlobRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decode vault file: %v", models.ErrMalformedBlob, err)
	}
	return record.Blob()
}

// Put replaces the file atomically.
func (s *FileStore) Put(ctx context.Context, blob *models.EncryptedBlob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(blob.Record(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true

	s.logger.WithFields(map[string]interface{}{
		"path": s.path,
		"size": len(data),
	}).Debug("Wrote vault file")
	return nil
}
