package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/dbx"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/models"
)

// PostgresRepository implements record storage over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or replaces the record. A stored version newer than the
// incoming one is kept untouched and the call fails with ErrVersionConflict;
// equal versions are overwritten (last push of the same version wins).
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.StoredRecord) error {
	query := `
		INSERT INTO records (tenant_id, collection, id, payload, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, collection, id) DO UPDATE
		SET payload = EXCLUDED.payload, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
		WHERE records.version <= EXCLUDED.version
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.TenantID, rec.Collection, rec.ID, []byte(rec.Payload), rec.Version, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrVersionConflict
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID, collection, id string) (*models.StoredRecord, error) {
	query := `
		SELECT payload, version, updated_at
		FROM records
		WHERE tenant_id = $1 AND collection = $2 AND id = $3
	`
	rec := &models.StoredRecord{TenantID: tenantID, Collection: collection, ID: id}
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, tenantID, collection, id).Scan(
		&payload, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	rec.Payload = payload
	return rec, nil
}

func (r *PostgresRepository) ListIDs(ctx context.Context, tenantID, collection string) ([]string, error) {
	query := `
		SELECT id
		FROM records
		WHERE tenant_id = $1 AND collection = $2
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, collection)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, tenantID, collection, id string) error {
	query := `
		DELETE FROM records
		WHERE tenant_id = $1 AND collection = $2 AND id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, tenantID, collection, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
