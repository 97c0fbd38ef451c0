package crypto

// Provider defines the interface for cryptographic operations.
type Provider interface {
	// DeriveKey derives a vault key from the master password and a 32-byte salt.
	DeriveKey(password, salt []byte) ([]byte, error)

	// GenerateSalt returns SaltSize fresh random bytes.
	GenerateSalt() ([]byte, error)

	// Encrypt seals plaintext with the provider's write scheme.
	Encrypt(plaintext, key []byte) ([]byte, error)

	// Decrypt opens a blob written by any readable scheme.
	Decrypt(blob, key []byte) ([]byte, error)

	// Scheme returns the write scheme.
	Scheme() Scheme
}
