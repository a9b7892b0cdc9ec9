// Package syncer implements the synchronization engine: an outbound push
// that drains the mutation outbox, an inbound pull with per-entity conflict
// resolution, and the full refresh used by login reconciliation. Offline is
// a steady state here, not a failure: when the remote is unreachable both
// operations report zero progress and no error.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/journal"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/outbox"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/remote"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/repository"
	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
)

const (
	// maxAttempts is the per-mutation retry ceiling across push cycles.
	maxAttempts = 3

	// inCycleRetries is how often one push cycle retries a single item
	// before counting a failed attempt.
	inCycleRetries = 2

	pullWorkers = 4

	retryBase = 200 * time.Millisecond
)

type Engine struct {
	repo    *repository.Repository
	outbox  *outbox.Outbox
	journal *journal.Journal
	remote  remote.Client
	log     logging.Logger
	now     func() time.Time
}

func New(repo *repository.Repository, ob *outbox.Outbox, j *journal.Journal, rc remote.Client, log logging.Logger) *Engine {
	return &Engine{repo: repo, outbox: ob, journal: j, remote: rc, log: log, now: time.Now}
}

// Push drains the outbox to the remote store. Each item is retried with
// backoff within the cycle; an item that keeps failing is requeued with its
// attempt counter bumped, and dropped with a sync-error event once it hits
// the retry ceiling. When the whole queue drains, the manifest gate runs and
// only then is the metadata marked synced. Returns the number of mutations
// pushed.
func (e *Engine) Push(ctx context.Context) (int, error) {
	if err := e.remote.Ping(ctx); err != nil {
		e.log.Debug(ctx, "push skipped, remote unreachable")
		return 0, nil
	}

	tenantID, err := e.repo.CurrentTenantID(ctx)
	if err != nil {
		return 0, err
	}
	if tenantID == "" {
		return 0, nil
	}

	queue, err := e.outbox.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	meta, err := e.repo.Metadata(ctx)
	if err != nil {
		return 0, err
	}
	if len(queue) == 0 && !meta.HasUnsyncedChanges {
		return 0, nil
	}

	pushed := 0
	for _, m := range queue {
		if err := ctx.Err(); err != nil {
			return pushed, err
		}

		err := e.pushOne(ctx, tenantID, m)
		switch {
		case err == nil:
			if err := e.outbox.Remove(ctx, m.Key()); err != nil {
				return pushed, err
			}
			pushed++

		case errors.Is(err, common.ErrVersionConflict):
			// the remote copy is newer; the next pull reconciles it
			e.log.Warn(ctx, "stale push dropped", "key", m.Key(), "version", m.Version)
			if err := e.outbox.Remove(ctx, m.Key()); err != nil {
				return pushed, err
			}

		default:
			m.Attempts++
			if m.Attempts >= maxAttempts {
				e.log.Error(ctx, "mutation dropped after retries", "key", m.Key(), "error", err)
				if err := e.outbox.Remove(ctx, m.Key()); err != nil {
					return pushed, err
				}
				if err := e.journal.RecordEvent(ctx, models.EventSyncError, map[string]any{
					"key": m.Key(), "attempts": m.Attempts, "error": err.Error(),
				}); err != nil {
					return pushed, err
				}
			} else {
				if err := e.outbox.Update(ctx, m); err != nil {
					return pushed, err
				}
			}
		}
	}

	remaining, err := e.outbox.Len(ctx)
	if err != nil {
		return pushed, err
	}
	if remaining > 0 {
		// not fully drained; finalization waits for the next cycle
		return pushed, nil
	}

	actual, err := e.repo.Counts(ctx)
	if err != nil {
		return pushed, err
	}
	if err := e.journal.ValidateDump(ctx, actual); err != nil {
		return pushed, err
	}

	meta, err = e.repo.Metadata(ctx)
	if err != nil {
		return pushed, err
	}
	meta.LastSyncedAt = e.now().UTC()
	meta.HasUnsyncedChanges = false
	if err := e.repo.PutMetadata(ctx, meta); err != nil {
		return pushed, err
	}

	e.log.Info(ctx, "push complete", "tenant", tenantID, "pushed", pushed)
	return pushed, nil
}

func (e *Engine) pushOne(ctx context.Context, tenantID string, m models.Mutation) error {
	backoff := retry.WithMaxRetries(inCycleRetries, retry.NewFibonacci(retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		if m.Op == models.OpDelete {
			err = e.remote.DeleteRecord(ctx, tenantID, m.Collection, m.EntityID)
		} else {
			err = e.remote.PushRecord(ctx, tenantID, m.Collection, m.EntityID, m.Payload)
		}
		if err == nil || errors.Is(err, common.ErrVersionConflict) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// Pull fetches the tenant's remote state and reconciles it entity by entity.
// The remote winner overwrites the local copy; a local winner with a queued
// (un-pushed) mutation is pushed instead, so a pull never silently discards
// local work. Records deleted remotely are removed locally unless a pending
// local mutation still references them. Returns the number of records moved
// in either direction.
func (e *Engine) Pull(ctx context.Context, tenantID string) (int, error) {
	if err := e.remote.Ping(ctx); err != nil {
		e.log.Debug(ctx, "pull skipped, remote unreachable")
		return 0, nil
	}

	applied, err := e.pull(ctx, tenantID)
	if errors.Is(err, common.ErrUnreachable) {
		// went offline mid-pull; whatever was applied is consistent
		e.log.Debug(ctx, "pull interrupted, remote unreachable", "applied", applied)
		return applied, nil
	}
	return applied, err
}

func (e *Engine) pull(ctx context.Context, tenantID string) (int, error) {
	applied := 0

	remoteProfile, err := e.remote.FetchTenant(ctx, tenantID)
	if err != nil {
		return applied, err
	}
	if remoteProfile == nil {
		e.log.Warn(ctx, "pull: tenant unknown to remote", "tenant", tenantID)
		return 0, nil
	}

	localProfile, err := e.repo.Profile(ctx)
	if err != nil {
		return applied, err
	}
	profileKey := string(models.CollectionProfile) + "/" + tenantID
	switch {
	case localProfile == nil:
		if err := e.repo.PutProfile(ctx, *remoteProfile); err != nil {
			return applied, err
		}
		applied++
	case Resolve(localProfile.Version, localProfile.UpdatedAt, remoteProfile.Version, remoteProfile.UpdatedAt) == WinnerRemote:
		if err := e.repo.PutProfile(ctx, *remoteProfile); err != nil {
			return applied, err
		}
		applied++
	default:
		n, err := e.pushLocalWinner(ctx, tenantID, models.CollectionProfile, profileKey, localProfile)
		if err != nil {
			return applied, err
		}
		applied += n
	}

	n, err := pullCollection[models.Reward](ctx, e, tenantID, models.CollectionRewards,
		e.repo.Rewards, e.repo.PutReward, e.repo.RemoveReward)
	applied += n
	if err != nil {
		return applied, err
	}

	n, err = pullCollection[models.Campaign](ctx, e, tenantID, models.CollectionCampaigns,
		e.repo.Campaigns, e.repo.PutCampaign, e.repo.RemoveCampaign)
	applied += n
	if err != nil {
		return applied, err
	}

	n, err = pullCollection[models.Customer](ctx, e, tenantID, models.CollectionCustomers,
		e.repo.Customers, e.repo.PutCustomer, e.repo.RemoveCustomer)
	applied += n
	if err != nil {
		return applied, err
	}

	e.log.Info(ctx, "pull complete", "tenant", tenantID, "applied", applied)
	return applied, nil
}

// pushLocalWinner pushes a record the local side won, but only when a queued
// mutation marks it dirty.
func (e *Engine) pushLocalWinner(ctx context.Context, tenantID string, col models.Collection, key string, rec any) (int, error) {
	dirty, err := e.outbox.Contains(ctx, key)
	if err != nil {
		return 0, err
	}
	if !dirty {
		return 0, nil
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s record: %w", col, err)
	}
	id := key[len(string(col))+1:]
	if err := e.remote.PushRecord(ctx, tenantID, col, id, raw); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return 0, nil
		}
		return 0, err
	}
	if err := e.outbox.Remove(ctx, key); err != nil {
		return 0, err
	}
	return 1, nil
}

func pullCollection[T any, PT interface {
	*T
	RecordID() string
	Meta() *models.RecordMeta
}](ctx context.Context, e *Engine, tenantID string, col models.Collection,
	list func(context.Context) ([]T, error),
	put func(context.Context, T) error,
	removeLocal func(context.Context, string) error,
) (int, error) {
	applied := 0

	ids, err := e.remote.FetchIDSet(ctx, tenantID, col)
	if err != nil {
		return applied, err
	}

	remotes, err := fetchAll[T](ctx, e.remote, tenantID, col, ids)
	if err != nil {
		return applied, err
	}

	locals, err := list(ctx)
	if err != nil {
		return applied, err
	}
	localByID := make(map[string]*T, len(locals))
	for i := range locals {
		localByID[PT(&locals[i]).RecordID()] = &locals[i]
	}

	remoteIDs := make(map[string]struct{}, len(remotes))
	for i := range remotes {
		// one entity at a time; cancellation honored between entities
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		rec := &remotes[i]
		id := PT(rec).RecordID()
		remoteIDs[id] = struct{}{}

		local, ok := localByID[id]
		if !ok {
			if err := put(ctx, *rec); err != nil {
				return applied, err
			}
			applied++
			continue
		}

		lm, rm := PT(local).Meta(), PT(rec).Meta()
		if Resolve(lm.Version, lm.UpdatedAt, rm.Version, rm.UpdatedAt) == WinnerRemote {
			if err := put(ctx, *rec); err != nil {
				return applied, err
			}
			applied++
			continue
		}

		n, err := e.pushLocalWinner(ctx, tenantID, col, string(col)+"/"+id, local)
		if err != nil {
			return applied, err
		}
		applied += n
	}

	for id := range localByID {
		if _, ok := remoteIDs[id]; ok {
			continue
		}
		pending, err := e.outbox.Contains(ctx, string(col)+"/"+id)
		if err != nil {
			return applied, err
		}
		if pending {
			// a queued local create/update; the push path owns it
			continue
		}
		if err := removeLocal(ctx, id); err != nil {
			return applied, err
		}
		applied++
	}

	return applied, nil
}

// fetchAll fetches and decodes the given records with bounded concurrency.
// Ids deleted remotely between the id-set fetch and the record fetch are
// skipped.
func fetchAll[T any](ctx context.Context, rc remote.Client, tenantID string, col models.Collection, ids []string) ([]T, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pullWorkers)

	slots := make([]*T, len(ids))
	for i, id := range ids {
		g.Go(func() error {
			raw, err := rc.FetchRecord(gctx, tenantID, col, id)
			if err != nil {
				return err
			}
			if raw == nil {
				return nil
			}
			var rec T
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("failed to decode %s record %q: %w", col, id, err)
			}
			slots[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for _, rec := range slots {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Refresh performs the full download used by login reconciliation: it
// overwrites every primary collection with the remote state, with the
// profile and tenant pointer written last so a cancelled refresh can never
// leave the pointer naming a tenant without a Profile. Mutations still
// queued at this point describe state the refresh replaces; each one is
// recorded as a sync-error event before the outbox is cleared. Callers that
// can still reach the remote should drain the queue with Push first. The
// manifest is rebased to the downloaded counts.
func (e *Engine) Refresh(ctx context.Context, tenantID string) error {
	profile, err := e.remote.FetchTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("%w: tenant %q not in remote store", common.ErrNotFound, tenantID)
	}

	rewards, err := fetchCollection[models.Reward](ctx, e.remote, tenantID, models.CollectionRewards)
	if err != nil {
		return err
	}
	campaigns, err := fetchCollection[models.Campaign](ctx, e.remote, tenantID, models.CollectionCampaigns)
	if err != nil {
		return err
	}
	customers, err := fetchCollection[models.Customer](ctx, e.remote, tenantID, models.CollectionCustomers)
	if err != nil {
		return err
	}

	if err := e.repo.PutRewards(ctx, rewards); err != nil {
		return err
	}
	if err := e.repo.PutCampaigns(ctx, campaigns); err != nil {
		return err
	}
	if err := e.repo.PutCustomers(ctx, customers); err != nil {
		return err
	}
	if err := e.repo.PutProfile(ctx, *profile); err != nil {
		return err
	}

	queued, err := e.outbox.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, m := range queued {
		e.log.Warn(ctx, "queued mutation discarded by refresh", "key", m.Key())
		if err := e.journal.RecordEvent(ctx, models.EventSyncError, map[string]any{
			"key":    m.Key(),
			"op":     string(m.Op),
			"reason": "discarded by refresh",
		}); err != nil {
			return err
		}
	}
	if err := e.outbox.Clear(ctx); err != nil {
		return err
	}

	meta, err := e.repo.Metadata(ctx)
	if err != nil {
		return err
	}
	meta.LastDownloadedAt = e.now().UTC()
	meta.HasUnsyncedChanges = false
	if err := e.repo.PutMetadata(ctx, meta); err != nil {
		return err
	}

	counts, err := e.repo.Counts(ctx)
	if err != nil {
		return err
	}
	if err := e.journal.SetBaseline(ctx, counts); err != nil {
		return err
	}

	e.log.Info(ctx, "full refresh complete", "tenant", tenantID,
		"rewards", len(rewards), "campaigns", len(campaigns), "customers", len(customers))
	return nil
}

func fetchCollection[T any](ctx context.Context, rc remote.Client, tenantID string, col models.Collection) ([]T, error) {
	ids, err := rc.FetchIDSet(ctx, tenantID, col)
	if err != nil {
		return nil, err
	}
	return fetchAll[T](ctx, rc, tenantID, col, ids)
}
