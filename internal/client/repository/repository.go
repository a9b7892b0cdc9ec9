// Package repository implements the typed local repository layered over the
// key-value store. It owns dirty-tracking: every UI-driven write stamps the
// record, bumps the sync metadata, tallies the manifest, and enqueues an
// outbound mutation. The clean Put*/Remove* variants used by restore,
// download, and pull bypass all of that.
//
// All collections are whole-value JSON under one key each; every mutation is
// serialized through a single in-process mutex, which is the one mutation
// point the sync engine and the UI share.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
)

// Tally receives manifest tallies and audit events for UI-driven writes.
// Implemented by journal.Journal.
type Tally interface {
	TallyCreate(ctx context.Context, c models.Collection) error
	TallyDelete(ctx context.Context, c models.Collection) error
	RecordEvent(ctx context.Context, action models.EventAction, data map[string]any) error
}

// Outbox receives one mutation per UI-driven write. Implemented by
// outbox.Outbox.
type Outbox interface {
	Enqueue(ctx context.Context, m models.Mutation) error
}

type Repository struct {
	kv      kvstore.Store
	journal Tally
	outbox  Outbox
	log     logging.Logger
	now     func() time.Time

	// mu is the single-writer mutation point shared by UI writes, the sync
	// engine, and the reconciliation engine.
	mu sync.Mutex
}

func New(kv kvstore.Store, journal Tally, outbox Outbox, log logging.Logger) *Repository {
	return &Repository{kv: kv, journal: journal, outbox: outbox, log: log, now: time.Now}
}

// ---- reads ----

// Profile returns the resident tenant's profile, or nil when the repository
// is empty.
func (r *Repository) Profile(ctx context.Context) (*models.Profile, error) {
	raw, err := r.kv.Get(ctx, kvstore.PrimaryKey(string(models.CollectionProfile)))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}

func (r *Repository) Rewards(ctx context.Context) ([]models.Reward, error) {
	return loadList[models.Reward](ctx, r.kv, kvstore.PrimaryKey(string(models.CollectionRewards)))
}

func (r *Repository) Campaigns(ctx context.Context) ([]models.Campaign, error) {
	return loadList[models.Campaign](ctx, r.kv, kvstore.PrimaryKey(string(models.CollectionCampaigns)))
}

func (r *Repository) Customers(ctx context.Context) ([]models.Customer, error) {
	return loadList[models.Customer](ctx, r.kv, kvstore.PrimaryKey(string(models.CollectionCustomers)))
}

// Exists reports whether a primary repository is resident, i.e. a Profile is
// present.
func (r *Repository) Exists(ctx context.Context) (bool, error) {
	p, err := r.Profile(ctx)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// MatchesTenant reports whether the resident Profile belongs to tenantID.
// An empty repository matches nothing.
func (r *Repository) MatchesTenant(ctx context.Context, tenantID string) (bool, error) {
	p, err := r.Profile(ctx)
	if err != nil {
		return false, err
	}
	return p != nil && p.ID == tenantID, nil
}

// CurrentTenantID returns the primary tenant pointer, or "" when unset.
func (r *Repository) CurrentTenantID(ctx context.Context) (string, error) {
	raw, err := r.kv.Get(ctx, kvstore.KeyCurrentTenant)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Metadata returns the sync metadata, zero-valued when none was written yet.
func (r *Repository) Metadata(ctx context.Context) (*models.SyncMetadata, error) {
	raw, err := r.kv.Get(ctx, kvstore.KeySyncMetadata)
	if err != nil {
		return nil, err
	}
	meta := &models.SyncMetadata{}
	if raw == nil {
		return meta, nil
	}
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, fmt.Errorf("failed to decode sync metadata: %w", err)
	}
	return meta, nil
}

// Counts returns the current record count of every manifest-tracked
// collection.
func (r *Repository) Counts(ctx context.Context) (map[models.Collection]int, error) {
	rewards, err := r.Rewards(ctx)
	if err != nil {
		return nil, err
	}
	campaigns, err := r.Campaigns(ctx)
	if err != nil {
		return nil, err
	}
	return map[models.Collection]int{
		models.CollectionRewards:   len(rewards),
		models.CollectionCampaigns: len(campaigns),
	}, nil
}

// ---- UI-driven writes (dirty path) ----

// SaveProfile upserts the resident profile and keeps the tenant pointer in
// step with it.
func (r *Repository) SaveProfile(ctx context.Context, p *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, err := r.Profile(ctx)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	if prev != nil {
		if !prev.CreatedAt.IsZero() {
			p.CreatedAt = prev.CreatedAt
		}
		p.UpdatedAt = laterOf(now, prev.UpdatedAt)
		p.Version = prev.Version + 1
	} else {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = laterOf(now, p.UpdatedAt)
		p.Version++
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := r.kv.Set(ctx, kvstore.PrimaryKey(string(models.CollectionProfile)), raw); err != nil {
		return err
	}
	if err := r.kv.Set(ctx, kvstore.KeyCurrentTenant, []byte(p.ID)); err != nil {
		return err
	}

	return r.afterWrite(ctx, models.CollectionProfile, p.ID, p.Version, raw, prev == nil)
}

func (r *Repository) SaveReward(ctx context.Context, reward *models.Reward) error {
	return saveRecord(ctx, r, models.CollectionRewards, reward)
}

func (r *Repository) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	return saveRecord(ctx, r, models.CollectionCampaigns, campaign)
}

func (r *Repository) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	return saveRecord(ctx, r, models.CollectionCustomers, customer)
}

func (r *Repository) DeleteReward(ctx context.Context, id string) error {
	return deleteRecord[models.Reward](ctx, r, models.CollectionRewards, id)
}

func (r *Repository) DeleteCampaign(ctx context.Context, id string) error {
	return deleteRecord[models.Campaign](ctx, r, models.CollectionCampaigns, id)
}

func (r *Repository) DeleteCustomer(ctx context.Context, id string) error {
	return deleteRecord[models.Customer](ctx, r, models.CollectionCustomers, id)
}

func saveRecord[T any, PT interface {
	record
	*T
}](ctx context.Context, r *Repository, c models.Collection, item PT) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := kvstore.PrimaryKey(string(c))
	list, err := loadList[T](ctx, r.kv, key)
	if err != nil {
		return err
	}

	list, created := upsert[T, PT](list, item, r.now().UTC())
	if err := saveList(ctx, r.kv, key, list); err != nil {
		return err
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", c, err)
	}
	return r.afterWrite(ctx, c, item.RecordID(), item.Meta().Version, raw, created)
}

func deleteRecord[T any, PT interface {
	record
	*T
}](ctx context.Context, r *Repository, c models.Collection, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := kvstore.PrimaryKey(string(c))
	list, err := loadList[T](ctx, r.kv, key)
	if err != nil {
		return err
	}

	list, found := remove[T, PT](list, id)
	if !found {
		return fmt.Errorf("%w: %s %q", common.ErrNotFound, c, id)
	}
	if err := saveList(ctx, r.kv, key, list); err != nil {
		return err
	}

	if err := r.markDirty(ctx); err != nil {
		return err
	}
	if err := r.journal.TallyDelete(ctx, c); err != nil {
		return err
	}
	if err := r.outbox.Enqueue(ctx, models.Mutation{
		Op:         models.OpDelete,
		Collection: c,
		EntityID:   id,
	}); err != nil {
		return err
	}
	return r.journal.RecordEvent(ctx, models.EventDelete, map[string]any{
		"collection": string(c), "id": id,
	})
}

// afterWrite performs the dirty-path bookkeeping shared by every save:
// metadata bump, manifest tally, outbox mutation, audit event.
// Caller holds r.mu.
func (r *Repository) afterWrite(ctx context.Context, c models.Collection, id string, version int64, payload []byte, created bool) error {
	if err := r.markDirty(ctx); err != nil {
		return err
	}

	op := models.OpUpdate
	action := models.EventEdit
	if created {
		op = models.OpCreate
		action = models.EventCreate
		if err := r.journal.TallyCreate(ctx, c); err != nil {
			return err
		}
	}

	if err := r.outbox.Enqueue(ctx, models.Mutation{
		Op:         op,
		Collection: c,
		EntityID:   id,
		Version:    version,
		Payload:    payload,
	}); err != nil {
		return err
	}

	return r.journal.RecordEvent(ctx, action, map[string]any{
		"collection": string(c), "id": id,
	})
}

func (r *Repository) markDirty(ctx context.Context) error {
	meta, err := r.Metadata(ctx)
	if err != nil {
		return err
	}
	meta.HasUnsyncedChanges = true
	meta.Version++
	return r.putMetadata(ctx, meta)
}

// ---- clean writes (restore / download / pull) ----

// PutProfile overwrites the resident profile without dirty-tracking and
// aligns the tenant pointer. Records first, pointer last: the pointer is
// never set without a profile to match it.
func (r *Repository) PutProfile(ctx context.Context, p models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := r.kv.Set(ctx, kvstore.PrimaryKey(string(models.CollectionProfile)), raw); err != nil {
		return err
	}
	return r.kv.Set(ctx, kvstore.KeyCurrentTenant, []byte(p.ID))
}

func (r *Repository) PutRewards(ctx context.Context, list []models.Reward) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return saveList(ctx, r.kv, kvstore.PrimaryKey(string(models.CollectionRewards)), list)
}

func (r *Repository) PutCampaigns(ctx context.Context, list []models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return saveList(ctx, r.kv, kvstore.PrimaryKey(string(models.CollectionCampaigns)), list)
}

func (r *Repository) PutCustomers(ctx context.Context, list []models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return saveList(ctx, r.kv, kvstore.PrimaryKey(string(models.CollectionCustomers)), list)
}

// PutReward overwrites a single reward verbatim (conflict-resolved pull
// write; no stamping).
func (r *Repository) PutReward(ctx context.Context, reward models.Reward) error {
	return putRecord(ctx, r, models.CollectionRewards, &reward)
}

func (r *Repository) PutCampaign(ctx context.Context, campaign models.Campaign) error {
	return putRecord(ctx, r, models.CollectionCampaigns, &campaign)
}

func (r *Repository) PutCustomer(ctx context.Context, customer models.Customer) error {
	return putRecord(ctx, r, models.CollectionCustomers, &customer)
}

// RemoveReward removes a reward without dirty-tracking (the deletion came
// from the remote; there is nothing to push back).
func (r *Repository) RemoveReward(ctx context.Context, id string) error {
	return removeRecord[models.Reward](ctx, r, models.CollectionRewards, id)
}

func (r *Repository) RemoveCampaign(ctx context.Context, id string) error {
	return removeRecord[models.Campaign](ctx, r, models.CollectionCampaigns, id)
}

func (r *Repository) RemoveCustomer(ctx context.Context, id string) error {
	return removeRecord[models.Customer](ctx, r, models.CollectionCustomers, id)
}

func putRecord[T any, PT interface {
	record
	*T
}](ctx context.Context, r *Repository, c models.Collection, item PT) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := kvstore.PrimaryKey(string(c))
	list, err := loadList[T](ctx, r.kv, key)
	if err != nil {
		return err
	}
	list = replace[T, PT](list, item)
	return saveList(ctx, r.kv, key, list)
}

func removeRecord[T any, PT interface {
	record
	*T
}](ctx context.Context, r *Repository, c models.Collection, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := kvstore.PrimaryKey(string(c))
	list, err := loadList[T](ctx, r.kv, key)
	if err != nil {
		return err
	}
	list, found := remove[T, PT](list, id)
	if !found {
		return nil
	}
	return saveList(ctx, r.kv, key, list)
}

// PutMetadata overwrites the sync metadata (clean path).
func (r *Repository) PutMetadata(ctx context.Context, meta *models.SyncMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putMetadata(ctx, meta)
}

func (r *Repository) putMetadata(ctx context.Context, meta *models.SyncMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode sync metadata: %w", err)
	}
	return r.kv.Set(ctx, kvstore.KeySyncMetadata, raw)
}
