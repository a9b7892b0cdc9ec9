// Package records declares the store-of-record contract: every synced
// record of every tenant, keyed by (tenant, collection, id) and ordered by
// client version.
package records

import (
	"context"

	"github.com/spcopeland72-crypto/canny-carrot/internal/server/models"
)

type Repository interface {
	// Upsert writes a record unless a strictly newer version is already
	// stored, in which case it returns common.ErrVersionConflict.
	Upsert(ctx context.Context, rec *models.StoredRecord) error

	// Get returns one record, or common.ErrNotFound.
	Get(ctx context.Context, tenantID, collection, id string) (*models.StoredRecord, error)

	// ListIDs returns the ids of every record in the collection.
	ListIDs(ctx context.Context, tenantID, collection string) ([]string, error)

	// Delete removes one record. Deleting an absent record is not an error.
	Delete(ctx context.Context, tenantID, collection, id string) error
}
