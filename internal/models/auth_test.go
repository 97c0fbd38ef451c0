package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/zpass/internal/models"
)

func TestTokenInfo_IsExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "not expired",
			expiresAt: now.Add(time.Hour),
			want:      false,
		},
		{
			name:      "expired",
			expiresAt: now.Add(-time.Hour),
			want:      true,
		},
		{
			name: "no expiry",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &models.TokenInfo{
				Token:     "test-token",
				Username:  "alice",
				ExpiresAt: tt.expiresAt,
			}
			assert.Equal(t, tt.want, token.IsExpired())
		})
	}
}
