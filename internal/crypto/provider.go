package crypto

import (
	"errors"
	"fmt"

	"github.com/TheMichaelB/zpass/internal/models"
)

const (
	// Key sizes
	KeySize = 32 // AES-256
	IVSize  = 16 // AES block
	TagSize = 16 // AEAD tag

	// PBKDF2 parameters
	DefaultIterations = 100000
	SaltSize          = 32
)

// Errors
var (
	ErrInvalidSalt      = models.ErrInvalidSalt
	ErrKeyDerivation    = models.ErrKeyDerivation
	ErrDecryptionFailed = models.ErrDecryptionFailed
	ErrInvalidKey       = errors.New("invalid key size")
	ErrEmptyPassword    = errors.New("empty master password")
	ErrUnknownScheme    = errors.New("unknown cipher scheme")
	ErrSecretDestroyed  = errors.New("secret has been destroyed")
)

// CryptoProvider handles all cryptographic operations on the vault blob.
type CryptoProvider struct {
	iterations  int
	scheme      Scheme
	allowLegacy bool
}

// Option configures a CryptoProvider.
type Option func(*CryptoProvider)

// WithScheme sets the scheme used for new ciphertexts.
func WithScheme(s Scheme) Option {
	return func(p *CryptoProvider) { p.scheme = s }
}

// WithLegacyCBC controls whether unauthenticated CBC blobs are still readable.
func WithLegacyCBC(allow bool) Option {
	return func(p *CryptoProvider) { p.allowLegacy = allow }
}

// WithIterations overrides the PBKDF2 iteration count. Only tests go below
// DefaultIterations.
func WithIterations(n int) Option {
	return func(p *CryptoProvider) {
		if n > 0 {
			p.iterations = n
		}
	}
}

// NewProvider creates a crypto provider. By default it writes the
// IV || AES-256-CBC blob every client can read; authenticated schemes are
// opt-in through WithScheme.
func NewProvider(opts ...Option) *CryptoProvider {
	p := &CryptoProvider{
		iterations:  DefaultIterations,
		scheme:      SchemeCBC,
		allowLegacy: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Scheme returns the scheme used for new ciphertexts.
func (p *CryptoProvider) Scheme() Scheme {
	return p.scheme
}

// GenerateSalt returns a fresh random salt.
func (p *CryptoProvider) GenerateSalt() ([]byte, error) {
	return GenerateSalt()
}

// DeriveKey derives the vault key from the master password.
func (p *CryptoProvider) DeriveKey(password, salt []byte) ([]byte, error) {
	return deriveKey(password, salt, p.iterations)
}

// Encrypt seals plaintext with the configured scheme.
func (p *CryptoProvider) Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	switch p.scheme {
	case SchemeCBC:
		return EncryptCBC(plaintext, key)
	case SchemeAESGCM, SchemeXChaCha:
		return sealAEAD(p.scheme, plaintext, key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, p.scheme)
	}
}

// Decrypt opens a blob written by any supported scheme. Every failure is
// reported as ErrDecryptionFailed: a wrong key and a tampered blob look the same.
func (p *CryptoProvider) Decrypt(blob, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	if scheme, ok := taggedScheme(blob); ok {
		if scheme == "" {
			return nil, ErrDecryptionFailed
		}
		return openAEAD(scheme, blob, key)
	}
	if !p.allowLegacy {
		return nil, ErrDecryptionFailed
	}
	return DecryptCBC(blob, key)
}

// DetectScheme reports which scheme most likely produced blob.
func DetectScheme(blob []byte) Scheme {
	if s, ok := taggedScheme(blob); ok && s != "" {
		return s
	}
	return SchemeCBC
}
