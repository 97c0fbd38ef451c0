package models

import (
	"time"
)

// SyncState is what the client remembers locally about an account's vault.
// It never holds plaintext: only the last encrypted blob seen or written.
type SyncState struct {
	AccountID    string         `json:"account_id"`
	Blob         *EncryptedBlob `json:"blob,omitempty"`
	Scheme       string         `json:"scheme,omitempty"`
	LastSyncTime time.Time      `json:"last_sync_time"`
	LastFetch    time.Time      `json:"last_fetch"`
	LastError    string         `json:"last_error,omitempty"`
	Uploads      int            `json:"uploads"`

	// Pending is a sealed vault with changes the remote store has not seen.
	Pending        *EncryptedBlob `json:"pending,omitempty"`
	PendingChanges int            `json:"pending_changes,omitempty"`
}

// NewSyncState creates an empty sync state.
func NewSyncState(accountID string) *SyncState {
	return &SyncState{AccountID: accountID}
}

// RecordFetch stores a blob obtained from the remote store.
func (s *SyncState) RecordFetch(blob *EncryptedBlob) {
	s.Blob = blob
	s.LastFetch = time.Now()
	s.LastError = ""
}

// RecordUpload stores a blob that was just written to the remote store.
func (s *SyncState) RecordUpload(blob *EncryptedBlob, scheme string) {
	s.Blob = blob
	s.Scheme = scheme
	s.LastSyncTime = time.Now()
	s.LastError = ""
	s.Uploads++
	s.ClearPending()
}

// RecordPending keeps a sealed vault carrying changes that failed to upload.
func (s *SyncState) RecordPending(blob *EncryptedBlob, changes int) {
	s.Pending = blob
	s.PendingChanges = changes
}

// ClearPending drops the stashed vault.
func (s *SyncState) ClearPending() {
	s.Pending = nil
	s.PendingChanges = 0
}

// SetError sets the last error message.
func (s *SyncState) SetError(err error) {
	if err != nil {
		s.LastError = err.Error()
	} else {
		s.LastError = ""
	}
}
