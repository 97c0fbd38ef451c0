package models

import "time"

// LoginRequest for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest for POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse from the account service.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Message     string `json:"message,omitempty"`
	User        *User  `json:"user,omitempty"`
}

// User is the account profile returned by the account service.
type User struct {
	ID       int    `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// TokenInfo stores authentication details.
type TokenInfo struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Server    string    `json:"server"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IsExpired checks if the token has expired. Tokens without an expiry never do.
func (t *TokenInfo) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(t.ExpiresAt)
}
