package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/zpass/internal/crypto"
	"github.com/TheMichaelB/zpass/internal/models"
)

func TestSecurityRequirements(t *testing.T) {
	t.Run("key derivation uses sufficient iterations", func(t *testing.T) {
		assert.GreaterOrEqual(t, crypto.DefaultIterations, 100000)
	})

	t.Run("key size is 256 bits", func(t *testing.T) {
		assert.Equal(t, 32, crypto.KeySize)
	})

	t.Run("salt is fresh for each call", func(t *testing.T) {
		a, err := crypto.GenerateSalt()
		require.NoError(t, err)
		b, err := crypto.GenerateSalt()
		require.NoError(t, err)

		assert.Len(t, a, crypto.SaltSize)
		assert.NotEqual(t, a, b)
	})

	t.Run("IV and nonce are random for each encryption", func(t *testing.T) {
		key := randomKey(t)
		plaintext := []byte("test message")

		for _, scheme := range []crypto.Scheme{crypto.SchemeCBC, crypto.SchemeAESGCM, crypto.SchemeXChaCha} {
			provider := crypto.NewProvider(crypto.WithScheme(scheme))

			c1, err := provider.Encrypt(plaintext, key)
			require.NoError(t, err)
			c2, err := provider.Encrypt(plaintext, key)
			require.NoError(t, err)

			assert.NotEqual(t, c1, c2, scheme)
		}
	})

	t.Run("authentication tag prevents tampering", func(t *testing.T) {
		key := randomKey(t)

		for _, scheme := range []crypto.Scheme{crypto.SchemeAESGCM, crypto.SchemeXChaCha} {
			provider := crypto.NewProvider(crypto.WithScheme(scheme), crypto.WithLegacyCBC(false))

			blob, err := provider.Encrypt([]byte("sensitive data"), key)
			require.NoError(t, err)

			blob[len(blob)-1] ^= 0x01
			_, err = provider.Decrypt(blob, key)
			assert.ErrorIs(t, err, models.ErrDecryptionFailed, scheme)
		}
	})

	t.Run("scheme byte is authenticated", func(t *testing.T) {
		key := randomKey(t)
		provider := crypto.NewProvider(crypto.WithScheme(crypto.SchemeAESGCM), crypto.WithLegacyCBC(false))

		blob, err := provider.Encrypt([]byte("sensitive data"), key)
		require.NoError(t, err)

		blob[3] = 0x03
		_, err = provider.Decrypt(blob, key)
		assert.ErrorIs(t, err, models.ErrDecryptionFailed)
	})
}

func TestSecret(t *testing.T) {
	raw := []byte("master password")
	secret := crypto.NewSecret(raw)
	crypto.Zero(raw)

	assert.Equal(t, make([]byte, len(raw)), raw)
	assert.Equal(t, 15, secret.Len())

	var seen string
	require.NoError(t, secret.Use(func(b []byte) error {
		seen = string(b)
		return nil
	}))
	assert.Equal(t, "master password", seen)

	secret.Destroy()
	assert.True(t, secret.Destroyed())
	assert.Equal(t, 0, secret.Len())

	err := secret.Use(func([]byte) error { return nil })
	assert.ErrorIs(t, err, crypto.ErrSecretDestroyed)

	// Second destroy is a no-op.
	secret.Destroy()
}

func TestSecretString(t *testing.T) {
	secret := crypto.NewSecretString("hunter2")
	defer secret.Destroy()

	err := secret.Use(func(b []byte) error {
		assert.Equal(t, []byte("hunter2"), b)
		return nil
	})
	require.NoError(t, err)
}
