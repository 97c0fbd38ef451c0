package testutil

import (
	"bytes"
	"time"

	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
)

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// NewCapturingLogger returns a JSON debug logger writing into out.
func NewCapturingLogger(out *LogOutput) *events.Logger {
	return events.NewTestLogger(events.DebugLevel, "json", out)
}

var fixtureTime = models.Timestamp{Time: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)}

// SampleVault provides a small vault with entries, a note and categories.
func SampleVault() *models.Vault {
	return &models.Vault{
		SchemaVersion: models.CurrentSchemaVersion,
		Passwords: []models.PasswordEntry{
			{
				ID:         "0b7c2a52-5a57-4c1e-9a0e-1f1f6c1f0001",
				Title:      "GitHub",
				Username:   "alice",
				Email:      "alice@example.com",
				Password:   "gh-Secret-2024!",
				Website:    "https://github.com",
				Category:   "Work",
				Tags:       models.Tags{"code", "2fa"},
				Favorite:   true,
				CreatedAt:  fixtureTime,
				ModifiedAt: fixtureTime,
			},
			{
				ID:              "0b7c2a52-5a57-4c1e-9a0e-1f1f6c1f0002",
				Title:           "Bank",
				Username:        "alice.smith",
				Password:        "correct horse battery staple",
				Website:         "https://bank.example.com",
				Category:        "Finance",
				RequireReprompt: true,
				CreatedAt:       fixtureTime,
				ModifiedAt:      fixtureTime,
			},
		},
		Notes: []models.Note{
			{
				ID:         "0b7c2a52-5a57-4c1e-9a0e-1f1f6c1f0003",
				Title:      "Wi-Fi",
				Content:    "home network: hunter2",
				CreatedAt:  fixtureTime,
				ModifiedAt: fixtureTime,
			},
		},
		Categories: []string{"Work", "Finance", "Personal"},
	}
}

// SampleSyncState provides a cached state for the sample account.
func SampleSyncState() *models.SyncState {
	return &models.SyncState{
		AccountID:    "alice@http://127.0.0.1:5000",
		Blob:         &models.EncryptedBlob{Ciphertext: bytes.Repeat([]byte{0x02}, 48), Salt: bytes.Repeat([]byte{0x01}, 16)},
		Scheme:       "aes-256-cbc",
		LastSyncTime: time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC),
		Uploads:      3,
	}
}
