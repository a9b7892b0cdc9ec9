package models

import (
	"encoding/json"
	"time"
)

// Account is an operator login tied to one tenant.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	TenantID     string
	CreatedAt    time.Time
}

// RefreshToken is one issued (possibly rotated-out) refresh token.
type RefreshToken struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// StoredRecord is one synced record in the store of record. Payload is the
// client's JSON snapshot; the server treats it as opaque apart from version
// ordering.
type StoredRecord struct {
	TenantID   string
	Collection string
	ID         string
	Payload    json.RawMessage
	Version    int64
	UpdatedAt  time.Time
}
