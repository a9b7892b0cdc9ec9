package models

import (
	"encoding/json"
	"time"
)

// MutationOp tags a queued outbound mutation.
type MutationOp string

const (
	OpCreate MutationOp = "create"
	OpUpdate MutationOp = "update"
	OpDelete MutationOp = "delete"
)

// Mutation is one element of the outbound sync queue. Payload holds the
// record snapshot taken at enqueue time; it is empty for deletes.
type Mutation struct {
	Op         MutationOp      `json:"op"`
	Collection Collection      `json:"collection"`
	EntityID   string          `json:"entityId"`
	Version    int64           `json:"version"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempts   int             `json:"attempts"`
	QueuedAt   time.Time       `json:"queuedAt"`
}

// Key identifies the entity a mutation targets; later mutations for the same
// key supersede earlier queued ones.
func (m Mutation) Key() string {
	return string(m.Collection) + "/" + m.EntityID
}
