package sync

import (
	"strings"
	"time"
)

// State is the lifecycle state of an unlocked-or-not vault session.
type State int

const (
	StateLocked State = iota
	StateClean
	StateDirty
	StateSyncing
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "Locked"
	case StateClean:
		return "Clean"
	case StateDirty:
		return "Dirty"
	case StateSyncing:
		return "Syncing"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the state as its lowercase name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// Status is a point-in-time view of the session.
type Status struct {
	AccountID      string    `json:"account_id,omitempty"`
	State          State     `json:"state"`
	Entries        int       `json:"entries"`
	Notes          int       `json:"notes"`
	Categories     int       `json:"categories"`
	PendingChanges int       `json:"pending_changes"`
	LastSync       time.Time `json:"last_sync,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	Scheme         string    `json:"scheme"`
}

// LockResult reports what a Lock threw away.
type LockResult struct {
	DiscardedChanges int `json:"discarded_changes"`
}

// Event represents a session event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	State     State
	Error     error
}

// EventType defines session event types.
type EventType string

const (
	EventUnlocked      EventType = "unlocked"
	EventLocked        EventType = "locked"
	EventChanged       EventType = "changed"
	EventSyncStarted   EventType = "sync_started"
	EventSyncCompleted EventType = "sync_completed"
	EventSyncFailed    EventType = "sync_failed"
	EventRefreshed     EventType = "refreshed"
	EventRemoteChanged EventType = "remote_changed"
)
