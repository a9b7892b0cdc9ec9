// Package archive snapshots and restores whole primary repositories under
// tenant-scoped namespaces, letting one device hold many tenants' data with
// one active at a time. It works at the key level: records are moved as
// opaque values, never decoded.
package archive

import (
	"context"
	"fmt"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
)

type Manager struct {
	kv  kvstore.Store
	log logging.Logger
}

func NewManager(kv kvstore.Store, log logging.Logger) *Manager {
	return &Manager{kv: kv, log: log}
}

// Archive snapshots the primary repository under tenantID's archive
// namespace and then clears every primary key in one batch. Archiving is a
// move, not a copy: the primary is always left empty. A prior archive for
// the same tenant is overwritten. Without a resident Profile this is a
// logged no-op.
func (m *Manager) Archive(ctx context.Context, tenantID string) error {
	profileRaw, err := m.kv.Get(ctx, kvstore.PrimaryKey(string(models.CollectionProfile)))
	if err != nil {
		return err
	}
	if profileRaw == nil {
		m.log.Info(ctx, "archive skipped, no resident profile", "tenant", tenantID)
		return nil
	}

	// overwrite semantics: purge whatever the tenant had archived before
	if err := m.purgeArchive(ctx, tenantID); err != nil {
		return err
	}

	for _, suffix := range kvstore.ArchivedSuffixes {
		raw, err := m.kv.Get(ctx, kvstore.PrimaryKey(suffix))
		if err != nil {
			return err
		}
		if raw == nil {
			continue
		}
		if err := m.kv.Set(ctx, kvstore.ArchiveKey(tenantID, suffix), raw); err != nil {
			return err
		}
	}

	if err := m.kv.DeleteMany(ctx, primaryKeys()); err != nil {
		return err
	}

	m.log.Info(ctx, "tenant archived", "tenant", tenantID)
	return nil
}

// ArchivedExists reports whether tenantID has an archived snapshot. Presence
// of the archived Profile is the authoritative signal.
func (m *Manager) ArchivedExists(ctx context.Context, tenantID string) (bool, error) {
	raw, err := m.kv.Get(ctx, kvstore.ArchiveKey(tenantID, string(models.CollectionProfile)))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// Restore copies tenantID's archived keys back into the primary namespace,
// skipping sub-collections that were never archived, and sets the tenant
// pointer last so it can never name a tenant without a Profile. Returns
// common.ErrArchiveNotFound when no snapshot exists.
func (m *Manager) Restore(ctx context.Context, tenantID string) error {
	exists, err := m.ArchivedExists(ctx, tenantID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: tenant %q", common.ErrArchiveNotFound, tenantID)
	}

	// fully overwrite the primary before repopulating it
	if err := m.kv.DeleteMany(ctx, primaryKeys()); err != nil {
		return err
	}

	prefix := kvstore.ArchiveTenantPrefix(tenantID)
	archived, err := m.kv.List(ctx, prefix)
	if err != nil {
		return err
	}
	for key, raw := range archived {
		suffix := key[len(prefix):]
		if err := m.kv.Set(ctx, kvstore.PrimaryKey(suffix), raw); err != nil {
			return err
		}
	}

	if err := m.kv.Set(ctx, kvstore.KeyCurrentTenant, []byte(tenantID)); err != nil {
		return err
	}

	m.log.Info(ctx, "tenant restored", "tenant", tenantID)
	return nil
}

// DeleteArchive purges the tenant's archive namespace. Maintenance-only:
// neither the reconciliation engine nor the sync engine calls this.
func (m *Manager) DeleteArchive(ctx context.Context, tenantID string) error {
	return m.purgeArchive(ctx, tenantID)
}

func (m *Manager) purgeArchive(ctx context.Context, tenantID string) error {
	archived, err := m.kv.List(ctx, kvstore.ArchiveTenantPrefix(tenantID))
	if err != nil {
		return err
	}
	if len(archived) == 0 {
		return nil
	}
	keys := make([]string, 0, len(archived))
	for key := range archived {
		keys = append(keys, key)
	}
	return m.kv.DeleteMany(ctx, keys)
}

func primaryKeys() []string {
	keys := make([]string, 0, len(kvstore.ArchivedSuffixes)+1)
	for _, suffix := range kvstore.ArchivedSuffixes {
		keys = append(keys, kvstore.PrimaryKey(suffix))
	}
	return append(keys, kvstore.KeyCurrentTenant)
}
