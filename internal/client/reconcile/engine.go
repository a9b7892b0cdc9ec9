// Package reconcile decides, once per successful login, how the device's
// single primary repository slot is brought in line with the tenant that
// just authenticated: keep it, refresh it, restore it from the on-device
// archive, or evict the resident tenant and download from the remote.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
)

// Action names how the primary slot was brought in line with the login
// tenant.
type Action int

const (
	// ActionUnchanged means the tenant was already resident and not stale.
	ActionUnchanged Action = iota

	// ActionRefreshed means the resident copy was stale and fully
	// re-downloaded.
	ActionRefreshed

	// ActionRestored means the tenant was restored from the on-device
	// archive.
	ActionRestored

	// ActionDownloaded means the tenant was downloaded from the remote into
	// an empty primary slot.
	ActionDownloaded
)

func (a Action) String() string {
	switch a {
	case ActionRefreshed:
		return "refreshed"
	case ActionRestored:
		return "restored"
	case ActionDownloaded:
		return "downloaded"
	default:
		return "unchanged"
	}
}

// Outcome reports what reconciliation did. Switched is set when a different
// tenant was resident and had to be archived first.
type Outcome struct {
	Action   Action
	Switched bool
}

// Repository is the slice of the local repository the engine decides over.
type Repository interface {
	Exists(ctx context.Context) (bool, error)
	MatchesTenant(ctx context.Context, tenantID string) (bool, error)
	Profile(ctx context.Context) (*models.Profile, error)
	Counts(ctx context.Context) (map[models.Collection]int, error)
}

// Archiver moves tenants between the primary slot and the archive namespace.
// Implemented by archive.Manager.
type Archiver interface {
	Archive(ctx context.Context, tenantID string) error
	ArchivedExists(ctx context.Context, tenantID string) (bool, error)
	Restore(ctx context.Context, tenantID string) error
}

// Syncer is the slice of the sync engine reconciliation drives: the outbox
// drain that must precede a refresh when offline edits are queued, and the
// full download that overwrites the primary slot. Implemented by
// syncer.Engine.
type Syncer interface {
	Push(ctx context.Context) (int, error)
	Refresh(ctx context.Context, tenantID string) error
}

// TenantFetcher is the one remote call the staleness check needs.
type TenantFetcher interface {
	FetchTenant(ctx context.Context, tenantID string) (*models.Profile, error)
}

// Journal receives the login event and the post-restore baseline.
type Journal interface {
	RecordEvent(ctx context.Context, action models.EventAction, data map[string]any) error
	SetBaseline(ctx context.Context, counts map[models.Collection]int) error
}

type Engine struct {
	repo    Repository
	archive Archiver
	syncer  Syncer
	remote  TenantFetcher
	journal Journal
	log     logging.Logger
}

func New(repo Repository, archive Archiver, syncer Syncer, remote TenantFetcher, journal Journal, log logging.Logger) *Engine {
	return &Engine{repo: repo, archive: archive, syncer: syncer, remote: remote, journal: journal, log: log}
}

// Reconcile runs the post-login decision procedure for tenantID. It is
// idempotent: on a device already resident and fresh for the tenant it does
// nothing beyond the staleness comparison. The tenant pointer is never left
// naming a tenant without a Profile; every state-changing path writes
// records first and the pointer last.
func (e *Engine) Reconcile(ctx context.Context, tenantID string) (Outcome, error) {
	var out Outcome

	exists, err := e.repo.Exists(ctx)
	if err != nil {
		return out, err
	}

	if exists {
		matched, err := e.repo.MatchesTenant(ctx, tenantID)
		if err != nil {
			return out, err
		}

		if matched {
			stale, err := e.isStale(ctx, tenantID)
			if err != nil {
				return out, err
			}
			if stale {
				if err := e.drainAndRefresh(ctx, tenantID); err != nil {
					return out, err
				}
				out.Action = ActionRefreshed
			}
			return out, e.recordLogin(ctx, tenantID, out)
		}

		// a different tenant is resident; evict it to its archive
		resident, err := e.repo.Profile(ctx)
		if err != nil {
			return out, err
		}
		if resident != nil {
			if err := e.archive.Archive(ctx, resident.ID); err != nil {
				return out, err
			}
			e.log.Info(ctx, "resident tenant evicted to archive", "evicted", resident.ID, "incoming", tenantID)
		}
		out.Switched = true
	}

	// primary slot is empty now
	archived, err := e.archive.ArchivedExists(ctx, tenantID)
	if err != nil {
		return out, err
	}

	if archived {
		if err := e.archive.Restore(ctx, tenantID); err != nil {
			return out, err
		}
		out.Action = ActionRestored

		counts, err := e.repo.Counts(ctx)
		if err != nil {
			return out, err
		}
		if err := e.journal.SetBaseline(ctx, counts); err != nil {
			return out, err
		}

		stale, err := e.isStale(ctx, tenantID)
		if err != nil {
			return out, err
		}
		if stale {
			if err := e.drainAndRefresh(ctx, tenantID); err != nil {
				return out, err
			}
		}
		return out, e.recordLogin(ctx, tenantID, out)
	}

	// nothing local anywhere; Refresh rebases the manifest itself
	if err := e.syncer.Refresh(ctx, tenantID); err != nil {
		return out, err
	}
	out.Action = ActionDownloaded
	return out, e.recordLogin(ctx, tenantID, out)
}

// drainAndRefresh pushes queued offline edits before the full download
// wipes the outbox, so a stale login never destroys un-pushed local writes.
// A manifest mismatch does not block the refresh: the queue itself drained,
// and Refresh rebases the baseline from the downloaded state.
func (e *Engine) drainAndRefresh(ctx context.Context, tenantID string) error {
	if _, err := e.syncer.Push(ctx); err != nil {
		if !errors.Is(err, common.ErrSyncValidation) {
			return err
		}
		e.log.Warn(ctx, "manifest mismatch before refresh", "tenant", tenantID)
	}
	return e.syncer.Refresh(ctx, tenantID)
}

// isStale compares the resident Profile's updatedAt with the remote one.
// A missing timestamp on either side counts as stale. An unreachable remote
// does not: offline is a steady state, and the resident copy stays usable.
func (e *Engine) isStale(ctx context.Context, tenantID string) (bool, error) {
	remoteProfile, err := e.remote.FetchTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, common.ErrUnreachable) {
			e.log.Debug(ctx, "staleness check skipped, remote unreachable", "tenant", tenantID)
			return false, nil
		}
		return false, err
	}

	localProfile, err := e.repo.Profile(ctx)
	if err != nil {
		return false, err
	}

	var local, remote time.Time
	if localProfile != nil {
		local = localProfile.UpdatedAt
	}
	if remoteProfile != nil {
		remote = remoteProfile.UpdatedAt
	}
	if local.IsZero() || remote.IsZero() {
		return true, nil
	}
	return local.Before(remote), nil
}

func (e *Engine) recordLogin(ctx context.Context, tenantID string, out Outcome) error {
	return e.journal.RecordEvent(ctx, models.EventLogin, map[string]any{
		"tenant":   tenantID,
		"action":   out.Action.String(),
		"switched": out.Switched,
	})
}
