// Package remote holds the encrypted vault record on the other side of the
// wire. Stores only ever see ciphertext and salt.
package remote

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/zpass/internal/config"
	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
	"github.com/TheMichaelB/zpass/internal/transport"
)

// Store reads and writes one account's encrypted vault blob.
type Store interface {
	// Fetch returns the current blob, or nil when none was ever written.
	Fetch(ctx context.Context) (*models.EncryptedBlob, error)

	// Put replaces the blob. Last writer wins.
	Put(ctx context.Context, blob *models.EncryptedBlob) error
}

// New builds the store selected by cfg.Backend. The transport is only used by
// the http backend.
func New(ctx context.Context, cfg *config.RemoteConfig, t transport.Transport, logger *events.Logger) (Store, error) {
	switch cfg.Backend {
	case "http", "":
		if t == nil {
			return nil, fmt.Errorf("http backend requires a transport")
		}
		return NewHTTPStore(t, logger), nil
	case "s3":
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.AccountID, logger)
	case "dynamodb":
		return NewDynamoDBStore(ctx, cfg.DynamoDBTable, cfg.AccountID, logger)
	case "file":
		return NewFileStore(cfg.FilePath, logger), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: remote backend %q", models.ErrInvalidConfig, cfg.Backend)
	}
}
