package creds_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/zpass/internal/creds"
)

const nestedDoc = `{
  "auth": {"username": "alice", "password": "account-pw"},
  "vaults": {"alice": {"master_password": "master-pw"}}
}`

func TestParseCombined(t *testing.T) {
	c, err := creds.ParseCombined([]byte(nestedDoc))
	require.NoError(t, err)

	assert.Equal(t, "alice", c.Auth.Username)
	assert.Equal(t, "account-pw", c.Auth.Password)
	assert.Equal(t, "master-pw", c.MasterPassword("alice"))
	assert.Empty(t, c.MasterPassword("bob"))

	_, err = creds.ParseCombined([]byte("{"))
	assert.Error(t, err)
}

func TestMasterPasswordFlat(t *testing.T) {
	c, err := creds.ParseCombined([]byte(`{"auth":{},"vaults":{"alice":"flat-pw"}}`))
	require.NoError(t, err)
	assert.Equal(t, "flat-pw", c.MasterPassword("alice"))

	empty, err := creds.ParseCombined([]byte(`{"auth":{}}`))
	require.NoError(t, err)
	assert.Empty(t, empty.MasterPassword("alice"))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(nestedDoc), 0600))

	c, err := creds.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Auth.Username)

	_, err = creds.LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

type fakeSecrets struct {
	value *string
	err   error
	asked string
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestLoadFromSecret(t *testing.T) {
	ctx := context.Background()

	sm := &fakeSecrets{value: aws.String(nestedDoc)}
	c, err := creds.LoadFromSecretWithClient(ctx, sm, "zpass/alice")
	require.NoError(t, err)
	assert.Equal(t, "zpass/alice", sm.asked)
	assert.Equal(t, "master-pw", c.MasterPassword("alice"))

	_, err = creds.LoadFromSecretWithClient(ctx, &fakeSecrets{}, "zpass/alice")
	assert.Error(t, err)

	_, err = creds.LoadFromSecretWithClient(ctx, &fakeSecrets{err: assert.AnError}, "zpass/alice")
	assert.ErrorIs(t, err, assert.AnError)
}
