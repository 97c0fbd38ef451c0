package models

import (
	"encoding/json"
	"time"
)

// WSMessageType defines vault event message types.
type WSMessageType string

const (
	// Server to Client
	WSTypeVaultUpdated WSMessageType = "vault_updated"
	WSTypeVaultDeleted WSMessageType = "vault_deleted"
	WSTypeError        WSMessageType = "error"
	WSTypePong         WSMessageType = "pong"
)

// WSMessage is a notification pushed by the vault event stream.
type WSMessage struct {
	Type      WSMessageType   `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrorMessage carries a server-side error on the event stream.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
