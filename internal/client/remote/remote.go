// Package remote defines the device's view of the store of record and its
// HTTP implementation. The rest of the engine only sees this interface;
// network failures surface as the single common.ErrUnreachable condition.
package remote

import (
	"context"
	"encoding/json"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
)

// Client is the remote store of record.
type Client interface {
	// Login authenticates an operator and returns the tenant they belong to.
	Login(ctx context.Context, email string, password string) (string, error)

	// Ping checks reachability.
	Ping(ctx context.Context) error

	// FetchTenant returns the tenant's Profile, or (nil, nil) when the
	// tenant is unknown to the remote.
	FetchTenant(ctx context.Context, tenantID string) (*models.Profile, error)

	// FetchIDSet returns the ids of every record in the collection.
	FetchIDSet(ctx context.Context, tenantID string, c models.Collection) ([]string, error)

	// FetchRecord returns one record as raw JSON, or (nil, nil) when absent.
	FetchRecord(ctx context.Context, tenantID string, c models.Collection, id string) (json.RawMessage, error)

	// PushRecord upserts one record. A push staler than the remote copy
	// returns common.ErrVersionConflict.
	PushRecord(ctx context.Context, tenantID string, c models.Collection, id string, record json.RawMessage) error

	// DeleteRecord removes one record. Deleting an absent record succeeds.
	DeleteRecord(ctx context.Context, tenantID string, c models.Collection, id string) error

	Close() error
}
