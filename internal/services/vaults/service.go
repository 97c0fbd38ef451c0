package vaults

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheMichaelB/zpass/internal/codec"
	"github.com/TheMichaelB/zpass/internal/crypto"
	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// Service turns a vault into an encrypted blob and back.
type Service struct {
	crypto crypto.Provider
	logger *events.Logger
}

// NewService creates a vault service.
func NewService(p crypto.Provider, logger *events.Logger) *Service {
	return &Service{
		crypto: p,
		logger: logger.WithField("service", "vaults"),
	}
}

// Scheme returns the cipher scheme used by Seal.
func (s *Service) Scheme() crypto.Scheme {
	return s.crypto.Scheme()
}

// Seal serializes the vault and encrypts it under a key derived from the
// master password and a fresh salt.
func (s *Service) Seal(ctx context.Context, vault *models.Vault, password *crypto.Secret) (*models.EncryptedBlob, error) {
	plaintext, err := codec.Serialize(vault)
	if err != nil {
		return nil, fmt.Errorf("serialize vault: %w", err)
	}
	defer crypto.Zero(plaintext)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	salt, err := s.crypto.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key, err := s.deriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(key)

	ciphertext, err := s.crypto.Encrypt(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt vault: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"scheme":  string(s.crypto.Scheme()),
		"entries": len(vault.Passwords),
		"size":    len(ciphertext),
	}).Debug("Sealed vault")

	return &models.EncryptedBlob{Ciphertext: ciphertext, Salt: salt}, nil
}

// Open decrypts and deserializes a blob. A wrong master password surfaces as
// ErrDecryptionFailed or, when CBC padding happens to verify, ErrMalformedVault.
func (s *Service) Open(ctx context.Context, blob *models.EncryptedBlob, password *crypto.Secret) (*models.Vault, error) {
	if blob == nil {
		return nil, fmt.Errorf("%w: nil blob", models.ErrMalformedBlob)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := s.deriveKey(password, blob.Salt)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(key)

	plaintext, err := s.crypto.Decrypt(blob.Ciphertext, key)
	if err != nil {
		return nil, fmt.Errorf("decrypt vault: %w", err)
	}
	defer crypto.Zero(plaintext)

	vault, err := codec.Deserialize(plaintext)
	if err != nil {
		return nil, fmt.Errorf("decode vault: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"scheme":  string(crypto.DetectScheme(blob.Ciphertext)),
		"entries": len(vault.Passwords),
	}).Debug("Opened vault")

	return vault, nil
}

func (s *Service) deriveKey(password *crypto.Secret, salt []byte) ([]byte, error) {
	var key []byte
	err := password.Use(func(pw []byte) error {
		var err error
		key, err = s.crypto.DeriveKey(pw, salt)
		return err
	})
	if err != nil {
		if errors.Is(err, crypto.ErrSecretDestroyed) {
			return nil, models.ErrLocked
		}
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
