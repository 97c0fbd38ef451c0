package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
	"github.com/TheMichaelB/zpass/internal/transport"
)

// VaultPath is the vault endpoint of the account API.
const VaultPath = "/api/vault"

// HTTPStore talks to the vault API over the shared transport. The transport
// carries the bearer token.
type HTTPStore struct {
	transport transport.Transport
	logger    *events.Logger
}

// NewHTTPStore creates an HTTP-backed store.
func NewHTTPStore(t transport.Transport, logger *events.Logger) *HTTPStore {
	return &HTTPStore{
		transport: t,
		logger:    logger.WithField("component", "http_store"),
	}
}

// vaultEnvelope is the server response shape. Older deployments return the
// record at the top level.
type vaultEnvelope struct {
	Message string             `json:"message,omitempty"`
	Vault   *models.BlobRecord `json:"vault"`
	models.BlobRecord
}

// Fetch downloads the blob.
func (s *HTTPStore) Fetch(ctx context.Context) (*models.EncryptedBlob, error) {
	var raw json.RawMessage
	if err := s.transport.GetJSON(ctx, VaultPath, &raw); err != nil {
		return nil, fmt.Errorf("fetch vault: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var env vaultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode vault response: %v", models.ErrMalformedBlob, err)
	}

	record := env.BlobRecord
	if env.Vault != nil {
		record = *env.Vault
	}

	blob, err := record.Blob()
	if err != nil {
		return nil, err
	}

	s.logger.WithField("present", blob != nil).Debug("Fetched vault")
	return blob, nil
}

// Put uploads the blob.
func (s *HTTPStore) Put(ctx context.Context, blob *models.EncryptedBlob) error {
	if err := s.transport.PutJSON(ctx, VaultPath, blob.Record(), nil); err != nil {
		return fmt.Errorf("put vault: %w", err)
	}

	s.logger.WithField("size", len(blob.Ciphertext)).Debug("Uploaded vault")
	return nil
}
