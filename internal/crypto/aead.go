package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Scheme names a vault cipher.
type Scheme string

const (
	// SchemeCBC is the unauthenticated format of the first vault generation.
	SchemeCBC     Scheme = "aes-256-cbc"
	SchemeAESGCM  Scheme = "aes-256-gcm"
	SchemeXChaCha Scheme = "xchacha20-poly1305"
)

// An authenticated blob starts with magic followed by a scheme byte. A legacy
// blob starts with a random IV, which matches the header about once in 2^32.
var aeadMagic = [3]byte{'Z', 'P', 'V'}

const (
	tagAESGCM  byte = 0x02
	tagXChaCha byte = 0x03

	aeadHeaderSize = len(aeadMagic) + 1
)

// ParseScheme validates a scheme name from configuration.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeCBC, SchemeAESGCM, SchemeXChaCha:
		return Scheme(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
}

// Authenticated reports whether the scheme detects tampering.
func (s Scheme) Authenticated() bool {
	return s == SchemeAESGCM || s == SchemeXChaCha
}

func (s Scheme) tag() byte {
	if s == SchemeXChaCha {
		return tagXChaCha
	}
	return tagAESGCM
}

func newAEAD(s Scheme, key []byte) (cipher.AEAD, error) {
	switch s {
	case SchemeAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("create cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("create GCM: %w", err)
		}
		return aead, nil
	case SchemeXChaCha:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("create XChaCha20-Poly1305: %w", err)
		}
		return aead, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, s)
}

// sealAEAD returns magic || scheme || nonce || ciphertext+tag. Magic and
// scheme byte are bound as associated data.
func sealAEAD(s Scheme, plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(s, key)
	if err != nil {
		return nil, err
	}

	header := make([]byte, aeadHeaderSize+aead.NonceSize())
	copy(header, aeadMagic[:])
	header[len(aeadMagic)] = s.tag()
	nonce := header[aeadHeaderSize:]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(header)+len(plaintext)+aead.Overhead())
	out = append(out, header...)
	return aead.Seal(out, nonce, plaintext, header[:aeadHeaderSize]), nil
}

func openAEAD(s Scheme, blob, key []byte) ([]byte, error) {
	aead, err := newAEAD(s, key)
	if err != nil {
		return nil, err
	}

	headerLen := aeadHeaderSize + aead.NonceSize()
	if len(blob) < headerLen+aead.Overhead() {
		return nil, ErrDecryptionFailed
	}

	nonce := blob[aeadHeaderSize:headerLen]
	plaintext, err := aead.Open(nil, nonce, blob[headerLen:], blob[:aeadHeaderSize])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// taggedScheme reports the scheme named by an authenticated header. ok is true
// whenever the magic matches, even for an unknown scheme byte.
func taggedScheme(blob []byte) (scheme Scheme, ok bool) {
	if len(blob) < aeadHeaderSize || !bytes.Equal(blob[:len(aeadMagic)], aeadMagic[:]) {
		return "", false
	}
	switch blob[len(aeadMagic)] {
	case tagAESGCM:
		return SchemeAESGCM, true
	case tagXChaCha:
		return SchemeXChaCha, true
	}
	return "", true
}
