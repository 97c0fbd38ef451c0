package models_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/zpass/internal/models"
)

func TestSyncState(t *testing.T) {
	state := models.NewSyncState("alice")
	assert.Equal(t, "alice", state.AccountID)
	assert.Nil(t, state.Blob)
	assert.True(t, state.LastSyncTime.IsZero())

	state.SetError(errors.New("offline"))
	assert.Equal(t, "offline", state.LastError)

	fetched := &models.EncryptedBlob{Ciphertext: []byte{1}, Salt: []byte{2}}
	state.RecordFetch(fetched)
	assert.Same(t, fetched, state.Blob)
	assert.False(t, state.LastFetch.IsZero())
	assert.Empty(t, state.LastError)
	assert.Zero(t, state.Uploads)

	state.SetError(errors.New("offline"))
	uploaded := &models.EncryptedBlob{Ciphertext: []byte{3}, Salt: []byte{4}}
	state.RecordUpload(uploaded, "aes-gcm")
	assert.Same(t, uploaded, state.Blob)
	assert.Equal(t, "aes-gcm", state.Scheme)
	assert.False(t, state.LastSyncTime.IsZero())
	assert.Empty(t, state.LastError)
	assert.Equal(t, 1, state.Uploads)

	state.SetError(nil)
	assert.Empty(t, state.LastError)
}

func TestSyncStatePending(t *testing.T) {
	state := models.NewSyncState("alice")
	fetched := &models.EncryptedBlob{Ciphertext: []byte{1}, Salt: []byte{2}}
	state.RecordFetch(fetched)

	pending := &models.EncryptedBlob{Ciphertext: []byte{5}, Salt: []byte{6}}
	state.RecordPending(pending, 3)
	assert.Same(t, pending, state.Pending)
	assert.Equal(t, 3, state.PendingChanges)
	assert.Same(t, fetched, state.Blob)

	// A fetch leaves the stash alone; only an upload clears it.
	state.RecordFetch(fetched)
	assert.NotNil(t, state.Pending)

	state.RecordUpload(pending, "aes-256-cbc")
	assert.Nil(t, state.Pending)
	assert.Zero(t, state.PendingChanges)
}
