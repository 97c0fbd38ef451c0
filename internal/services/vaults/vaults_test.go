package vaults_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/zpass/internal/codec"
	"github.com/TheMichaelB/zpass/internal/crypto"
	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
	"github.com/TheMichaelB/zpass/internal/services/vaults"
)

const testIterations = 1000

func newService(scheme crypto.Scheme) *vaults.Service {
	p := crypto.NewProvider(crypto.WithScheme(scheme), crypto.WithIterations(testIterations))
	return vaults.NewService(p, events.Discard())
}

func sampleVault(t *testing.T) *models.Vault {
	t.Helper()
	v := models.NewVault()
	_, err := v.AddEntry(models.PasswordEntry{
		Title:    "GitHub",
		Username: "alice",
		Password: "Tr0ub4dor&3Zz",
		Website:  "https://github.com",
		Category: "Work",
		Tags:     models.Tags{"code"},
	})
	require.NoError(t, err)
	return v
}

func TestSealOpenRoundTrip(t *testing.T) {
	for _, scheme := range []crypto.Scheme{crypto.SchemeAESGCM, crypto.SchemeXChaCha, crypto.SchemeCBC} {
		t.Run(string(scheme), func(t *testing.T) {
			service := newService(scheme)
			password := crypto.NewSecretString("correct horse")
			defer password.Destroy()

			vault := sampleVault(t)
			blob, err := service.Seal(context.Background(), vault, password)
			require.NoError(t, err)
			assert.Len(t, blob.Salt, crypto.SaltSize)
			if scheme.Authenticated() {
				assert.Equal(t, scheme, crypto.DetectScheme(blob.Ciphertext))
			}

			opened, err := service.Open(context.Background(), blob, password)
			require.NoError(t, err)

			want, err := codec.Serialize(vault)
			require.NoError(t, err)
			got, err := codec.Serialize(opened)
			require.NoError(t, err)
			assert.Equal(t, string(want), string(got))
		})
	}
}

func TestSealFreshSaltAndNonce(t *testing.T) {
	service := newService(crypto.SchemeAESGCM)
	password := crypto.NewSecretString("pw")
	vault := sampleVault(t)

	a, err := service.Seal(context.Background(), vault, password)
	require.NoError(t, err)
	b, err := service.Seal(context.Background(), vault, password)
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestOpenWrongPassword(t *testing.T) {
	service := newService(crypto.SchemeAESGCM)

	blob, err := service.Seal(context.Background(), sampleVault(t), crypto.NewSecretString("right"))
	require.NoError(t, err)

	_, err = service.Open(context.Background(), blob, crypto.NewSecretString("wrong"))
	assert.ErrorIs(t, err, models.ErrDecryptionFailed)
}

func TestOpenLegacyCBCBlob(t *testing.T) {
	p := crypto.NewProvider(crypto.WithIterations(testIterations))
	service := vaults.NewService(p, events.Discard())

	// Document as written by the first desktop client
	doc := []byte(`{"passwords": [{"title": "Mail", "password": "hunter2", "category": "Personal"}], "notes": [], "categories": []}`)
	salt := bytes.Repeat([]byte{0x42}, crypto.SaltSize)
	key, err := p.DeriveKey([]byte("master"), salt)
	require.NoError(t, err)
	ciphertext, err := crypto.EncryptCBC(doc, key)
	require.NoError(t, err)

	vault, err := service.Open(context.Background(), &models.EncryptedBlob{Ciphertext: ciphertext, Salt: salt},
		crypto.NewSecretString("master"))
	require.NoError(t, err)

	require.Len(t, vault.Passwords, 1)
	assert.Equal(t, "Mail", vault.Passwords[0].Title)
	assert.NotEmpty(t, vault.Passwords[0].ID)
	assert.Equal(t, []string{"Personal"}, vault.Categories)
}

func TestOpenInvalidInput(t *testing.T) {
	service := newService(crypto.SchemeAESGCM)
	ctx := context.Background()

	_, err := service.Open(ctx, nil, crypto.NewSecretString("pw"))
	assert.ErrorIs(t, err, models.ErrMalformedBlob)

	_, err = service.Open(ctx, &models.EncryptedBlob{Ciphertext: []byte("x"), Salt: []byte("short")}, crypto.NewSecretString("pw"))
	assert.ErrorIs(t, err, models.ErrInvalidSalt)
}

func TestSealDestroyedSecret(t *testing.T) {
	service := newService(crypto.SchemeAESGCM)
	password := crypto.NewSecretString("pw")
	password.Destroy()

	_, err := service.Seal(context.Background(), sampleVault(t), password)
	assert.ErrorIs(t, err, models.ErrLocked)
}

func TestSealEmptyPassword(t *testing.T) {
	service := newService(crypto.SchemeAESGCM)

	_, err := service.Seal(context.Background(), sampleVault(t), crypto.NewSecretString(""))
	assert.ErrorIs(t, err, models.ErrKeyDerivation)
}

func TestSealCancelledContext(t *testing.T) {
	service := newService(crypto.SchemeAESGCM)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Seal(ctx, sampleVault(t), crypto.NewSecretString("pw"))
	assert.ErrorIs(t, err, context.Canceled)
}
