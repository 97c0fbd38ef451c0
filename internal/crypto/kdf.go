package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveKey runs PBKDF2-HMAC-SHA256 with DefaultIterations over the master
// password and returns a KeySize key. The same inputs always give the same key.
func DeriveKey(password, salt []byte) ([]byte, error) {
	return deriveKey(password, salt, DefaultIterations)
}

func deriveKey(password, salt []byte, iterations int) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSalt, SaltSize, len(salt))
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrKeyDerivation, ErrEmptyPassword)
	}

	key := pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: short key", ErrKeyDerivation)
	}
	return key, nil
}

// GenerateSalt returns SaltSize bytes from the system CSPRNG.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
