package creds

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Combined is the credentials document for unattended use:
//
//	{"auth": {"username": "...", "password": "..."},
//	 "vaults": {"<account>": {"master_password": "..."}}}
type Combined struct {
	Auth struct {
		Username string `json:"username"`
		Email    string `json:"email,omitempty"`
		Password string `json:"password"`
	} `json:"auth"`
	Vaults json.RawMessage `json:"vaults,omitempty"`
}

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ParseCombined parses JSON bytes into Combined.
func ParseCombined(data []byte) (*Combined, error) {
	var c Combined
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &c, nil
}

// LoadFromFile loads Combined from a local file path.
func LoadFromFile(path string) (*Combined, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return ParseCombined(b)
}

// LoadFromSecret loads Combined from Secrets Manager by name or ARN.
func LoadFromSecret(ctx context.Context, secretID string) (*Combined, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return LoadFromSecretWithClient(ctx, secretsmanager.NewFromConfig(cfg), secretID)
}

// LoadFromSecretWithClient loads Combined using an existing client.
func LoadFromSecretWithClient(ctx context.Context, sm SecretsAPI, secretID string) (*Combined, error) {
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &secretID})
	if err != nil {
		return nil, fmt.Errorf("get secret value: %w", err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret has no string payload")
	}
	return ParseCombined([]byte(*out.SecretString))
}

// MasterPassword returns the master password stored for an account. Both
// {"acct": {"master_password": "..."}} and {"acct": "..."} are accepted.
func (c *Combined) MasterPassword(accountID string) string {
	if len(c.Vaults) == 0 {
		return ""
	}

	var nested map[string]struct {
		MasterPassword string `json:"master_password"`
	}
	if err := json.Unmarshal(c.Vaults, &nested); err == nil {
		if v, ok := nested[accountID]; ok {
			return v.MasterPassword
		}
	}

	var flat map[string]string
	if err := json.Unmarshal(c.Vaults, &flat); err == nil {
		if pw, ok := flat[accountID]; ok {
			return pw
		}
	}
	return ""
}
