package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeAuth           = "AUTH_ERROR"
	ErrCodeInvalidSalt    = "INVALID_SALT"
	ErrCodeKeyDerivation  = "KEY_DERIVATION_ERROR"
	ErrCodeDecryption     = "DECRYPTION_ERROR"
	ErrCodeMalformedVault = "MALFORMED_VAULT"
	ErrCodeNetwork        = "NETWORK_ERROR"
	ErrCodeState          = "STATE_ERROR"
	ErrCodeConfig         = "CONFIG_ERROR"
	ErrCodeServerError    = "SERVER_ERROR"
	ErrCodeUnknown        = "UNKNOWN_ERROR"
)

// Sentinel errors
var (
	ErrInvalidSalt      = errors.New("invalid salt")
	ErrKeyDerivation    = errors.New("key derivation failed")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrMalformedVault   = errors.New("malformed vault")
	ErrMalformedBlob    = errors.New("malformed encrypted blob")
	ErrNetwork          = errors.New("network error")
	ErrAuthentication   = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrLocked           = errors.New("vault is locked")
	ErrSyncInProgress   = errors.New("sync already in progress")
	ErrInvalidEntry     = errors.New("invalid entry")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrNoteNotFound     = errors.New("note not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// APIError represents an error body returned by the vault API.
type APIError struct {
	Code       string `json:"code,omitempty"`
	Message    string `json:"error"`
	StatusCode int    `json:"status_code"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// NetworkError is a transport-level failure talking to the remote store.
// It is always reported as retryable; callers decide whether to retry.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports NetworkError as ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Retryable reports whether the operation may be retried.
func (e *NetworkError) Retryable() bool {
	return true
}

// AuthenticationError means the master password or the bearer token was rejected.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is reports AuthenticationError as ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// SyncError provides detailed sync failure information.
type SyncError struct {
	Code  string
	Phase string
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s [%s]: %v", e.Phase, e.Code, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient failure worth retrying.
// Cryptographic and format failures never are.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Retryable()
	}
	return false
}

// ErrorCode maps an error to its structured code.
func ErrorCode(err error) string {
	var syncErr *SyncError
	if errors.As(err, &syncErr) && syncErr.Code != "" {
		return syncErr.Code
	}

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSalt):
		return ErrCodeInvalidSalt
	case errors.Is(err, ErrKeyDerivation):
		return ErrCodeKeyDerivation
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrNotAuthenticated):
		return ErrCodeAuth
	case errors.Is(err, ErrDecryptionFailed):
		return ErrCodeDecryption
	case errors.Is(err, ErrMalformedVault), errors.Is(err, ErrMalformedBlob):
		return ErrCodeMalformedVault
	case errors.Is(err, ErrNetwork):
		return ErrCodeNetwork
	case errors.Is(err, ErrLocked), errors.Is(err, ErrSyncInProgress):
		return ErrCodeState
	case errors.Is(err, ErrInvalidConfig):
		return ErrCodeConfig
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return ErrCodeServerError
	}
	return ErrCodeUnknown
}
