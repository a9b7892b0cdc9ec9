package models

import "time"

// EventAction classifies an audit-log entry.
type EventAction string

const (
	EventLogin     EventAction = "login"
	EventLogout    EventAction = "logout"
	EventCreate    EventAction = "create"
	EventEdit      EventAction = "edit"
	EventDelete    EventAction = "delete"
	EventSyncError EventAction = "sync-error"
)

// Event is one entry in the bounded, append-only audit log. The log is
// diagnostic only; nothing reads it back for correctness.
type Event struct {
	ID     string         `json:"id"`
	At     time.Time      `json:"at"`
	Action EventAction    `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}
