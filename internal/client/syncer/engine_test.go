package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/journal"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/outbox"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/remote"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/repository"
	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
)

// fakeRemote is an in-memory remote.Client. Records live in a
// tenant/collection/id map as raw JSON. Error hooks let tests force
// unreachable and conflict conditions.
type fakeRemote struct {
	mu      sync.Mutex
	tenants map[string]models.Profile
	records map[string]json.RawMessage // tenant|collection|id

	offline   bool
	pushErr   error
	pushFail  int // fail the first N pushes with pushErr
	pushes    int
	deletes   int
	fetchHook func(id string) // runs at the top of every FetchRecord
}

var _ remote.Client = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tenants: map[string]models.Profile{},
		records: map[string]json.RawMessage{},
	}
}

func rkey(tenantID string, c models.Collection, id string) string {
	return tenantID + "|" + string(c) + "|" + id
}

func (f *fakeRemote) put(t *testing.T, tenantID string, c models.Collection, rec any, id string) {
	t.Helper()
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rkey(tenantID, c, id)] = raw
}

func (f *fakeRemote) Login(ctx context.Context, email, password string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return common.ErrUnreachable
	}
	return nil
}

func (f *fakeRemote) FetchTenant(ctx context.Context, tenantID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, common.ErrUnreachable
	}
	p, ok := f.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeRemote) FetchIDSet(ctx context.Context, tenantID string, c models.Collection) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, common.ErrUnreachable
	}
	prefix := tenantID + "|" + string(c) + "|"
	var ids []string
	for k := range f.records {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			ids = append(ids, k[len(prefix):])
		}
	}
	return ids, nil
}

func (f *fakeRemote) FetchRecord(ctx context.Context, tenantID string, c models.Collection, id string) (json.RawMessage, error) {
	if f.fetchHook != nil {
		f.fetchHook(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, common.ErrUnreachable
	}
	raw, ok := f.records[rkey(tenantID, c, id)]
	if !ok {
		return nil, nil
	}
	return raw, nil
}

func (f *fakeRemote) PushRecord(ctx context.Context, tenantID string, c models.Collection, id string, record json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	if f.offline {
		return common.ErrUnreachable
	}
	if f.pushFail > 0 {
		f.pushFail--
		return f.pushErr
	}
	if f.pushErr != nil {
		return f.pushErr
	}
	if c == models.CollectionProfile {
		var p models.Profile
		if err := json.Unmarshal(record, &p); err != nil {
			return err
		}
		f.tenants[tenantID] = p
		return nil
	}
	f.records[rkey(tenantID, c, id)] = record
	return nil
}

func (f *fakeRemote) DeleteRecord(ctx context.Context, tenantID string, c models.Collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.offline {
		return common.ErrUnreachable
	}
	delete(f.records, rkey(tenantID, c, id))
	return nil
}

func (f *fakeRemote) Close() error { return nil }

type fixture struct {
	repo    *repository.Repository
	outbox  *outbox.Outbox
	journal *journal.Journal
	remote  *fakeRemote
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	log := logging.NewNopLogger()
	j := journal.New(kv, log)
	ob := outbox.New(kv, log)
	repo := repository.New(kv, j, ob, log)
	fr := newFakeRemote()
	return &fixture{
		repo:    repo,
		outbox:  ob,
		journal: j,
		remote:  fr,
		engine:  New(repo, ob, j, fr, log),
	}
}

// seedTenant puts a clean resident tenant in place, then rebases the
// manifest so dirty writes tally against a consistent baseline.
func (f *fixture) seedTenant(t *testing.T, ctx context.Context, tenantID string) {
	t.Helper()
	require.NoError(t, f.repo.PutProfile(ctx, models.Profile{ID: tenantID, BusinessName: "Canny Carrot"}))
	counts, err := f.repo.Counts(ctx)
	require.NoError(t, err)
	require.NoError(t, f.journal.SetBaseline(ctx, counts))
	f.remote.tenants[tenantID] = models.Profile{ID: tenantID, BusinessName: "Canny Carrot"}
}

func TestPushDrainsOutbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")

	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "r1", Title: "Free coffee", PointsCost: 50}))
	require.NoError(t, f.repo.SaveCustomer(ctx, &models.Customer{ID: "c1", Name: "Ada", Points: 10}))

	pushed, err := f.engine.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pushed)

	n, err := f.outbox.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Contains(t, f.remote.records, rkey("t1", models.CollectionRewards, "r1"))
	assert.Contains(t, f.remote.records, rkey("t1", models.CollectionCustomers, "c1"))

	meta, err := f.repo.Metadata(ctx)
	require.NoError(t, err)
	assert.False(t, meta.HasUnsyncedChanges)
	assert.False(t, meta.LastSyncedAt.IsZero())
}

func TestPushOfflineIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "r1", Title: "Free coffee"}))

	f.remote.offline = true
	pushed, err := f.engine.Push(ctx)
	require.NoError(t, err)
	assert.Zero(t, pushed)

	n, err := f.outbox.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	meta, err := f.repo.Metadata(ctx)
	require.NoError(t, err)
	assert.True(t, meta.HasUnsyncedChanges)
}

func TestPushDropsStaleOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "r1", Title: "Free coffee"}))

	f.remote.pushErr = common.ErrVersionConflict
	pushed, err := f.engine.Push(ctx)
	require.NoError(t, err)
	assert.Zero(t, pushed)

	// conflict is not retried and the mutation leaves the queue
	n, err := f.outbox.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, f.remote.pushes)
}

func TestPushRequeuesOnTransientFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "r1", Title: "Free coffee"}))

	f.remote.pushErr = errors.New("boom")
	pushed, err := f.engine.Push(ctx)
	require.NoError(t, err)
	assert.Zero(t, pushed)

	queue, err := f.outbox.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 1, queue[0].Attempts)

	// metadata stays dirty while the queue is non-empty
	meta, err := f.repo.Metadata(ctx)
	require.NoError(t, err)
	assert.True(t, meta.HasUnsyncedChanges)
}

func TestPushRecoversOnLaterCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "r1", Title: "Free coffee"}))

	// the whole first cycle fails, the second succeeds
	f.remote.pushErr = errors.New("boom")
	f.remote.pushFail = inCycleRetries + 1
	pushed, err := f.engine.Push(ctx)
	require.NoError(t, err)
	assert.Zero(t, pushed)

	f.remote.pushErr = nil
	pushed, err = f.engine.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pushed)
	assert.Contains(t, f.remote.records, rkey("t1", models.CollectionRewards, "r1"))
}

func TestPushDropsAfterRetryCeiling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "r1", Title: "Free coffee"}))

	f.remote.pushErr = errors.New("boom")
	for range maxAttempts {
		_, err := f.engine.Push(ctx)
		require.NoError(t, err)
	}

	n, err := f.outbox.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	events, err := f.journal.Events(ctx)
	require.NoError(t, err)
	var found bool
	for _, ev := range events {
		if ev.Action == models.EventSyncError {
			found = true
		}
	}
	assert.True(t, found, "expected a sync-error event for the dropped mutation")
}

func TestPushBlockedByManifestMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "r1", Title: "Free coffee"}))

	// skew the manifest so the dump check fails
	require.NoError(t, f.journal.TallyCreate(ctx, models.CollectionRewards))

	pushed, err := f.engine.Push(ctx)
	assert.ErrorIs(t, err, common.ErrSyncValidation)
	assert.Equal(t, 1, pushed)

	// the push itself happened, only mark-synced is blocked
	assert.Contains(t, f.remote.records, rkey("t1", models.CollectionRewards, "r1"))
	meta, err := f.repo.Metadata(ctx)
	require.NoError(t, err)
	assert.True(t, meta.HasUnsyncedChanges)
	assert.True(t, meta.LastSyncedAt.IsZero())
}

func TestPullAppliesRemoteOnlyRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	f.remote.put(t, "t1", models.CollectionRewards, models.Reward{ID: "r9", Title: "Remote reward"}, "r9")

	applied, err := f.engine.Pull(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	rewards, err := f.repo.Rewards(ctx)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, "Remote reward", rewards[0].Title)
}

func TestPullRemoteWinnerOverwritesLocal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	local := models.Reward{ID: "r1", Title: "Old title"}
	local.Version = 1
	local.UpdatedAt = at
	require.NoError(t, f.repo.PutReward(ctx, local))

	rem := models.Reward{ID: "r1", Title: "New title"}
	rem.Version = 3
	rem.UpdatedAt = at.Add(time.Minute)
	f.remote.put(t, "t1", models.CollectionRewards, rem, "r1")

	applied, err := f.engine.Pull(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	rewards, err := f.repo.Rewards(ctx)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, "New title", rewards[0].Title)
	assert.EqualValues(t, 3, rewards[0].Version)
}

func TestPullLocalWinnerWithPendingMutationPushes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := models.Reward{ID: "r1", Title: "Stale remote"}
	rem.Version = 1
	rem.UpdatedAt = at
	f.remote.put(t, "t1", models.CollectionRewards, rem, "r1")

	// dirty save bumps past the remote version and queues a mutation
	require.NoError(t, f.repo.PutReward(ctx, rem))
	edited := rem
	edited.Title = "Local edit"
	require.NoError(t, f.repo.SaveReward(ctx, &edited))

	applied, err := f.engine.Pull(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// the local copy survived and reached the remote
	var got models.Reward
	require.NoError(t, json.Unmarshal(f.remote.records[rkey("t1", models.CollectionRewards, "r1")], &got))
	assert.Equal(t, "Local edit", got.Title)

	pending, err := f.outbox.Contains(ctx, "rewards/r1")
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestPullRemovesRemotelyDeletedRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	require.NoError(t, f.repo.PutReward(ctx, models.Reward{ID: "r1", Title: "Gone upstream"}))

	applied, err := f.engine.Pull(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	rewards, err := f.repo.Rewards(ctx)
	require.NoError(t, err)
	assert.Empty(t, rewards)
}

func TestPullKeepsLocalRecordWithPendingCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "r1", Title: "Not yet pushed"}))

	applied, err := f.engine.Pull(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, applied)

	rewards, err := f.repo.Rewards(ctx)
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
}

func TestPullOfflineIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")
	f.remote.offline = true

	applied, err := f.engine.Pull(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestRefreshOverwritesLocalState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")

	// pending local work that the refresh discards
	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "stale", Title: "Discarded"}))

	f.remote.tenants["t1"] = models.Profile{ID: "t1", BusinessName: "Refreshed Carrot"}
	f.remote.put(t, "t1", models.CollectionRewards, models.Reward{ID: "r1", Title: "Server reward"}, "r1")
	f.remote.put(t, "t1", models.CollectionCampaigns, models.Campaign{ID: "k1", Title: "Spring"}, "k1")
	f.remote.put(t, "t1", models.CollectionCustomers, models.Customer{ID: "c1", Name: "Ada"}, "c1")

	require.NoError(t, f.engine.Refresh(ctx, "t1"))

	profile, err := f.repo.Profile(ctx)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Refreshed Carrot", profile.BusinessName)

	rewards, err := f.repo.Rewards(ctx)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, "r1", rewards[0].ID)

	n, err := f.outbox.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	meta, err := f.repo.Metadata(ctx)
	require.NoError(t, err)
	assert.False(t, meta.HasUnsyncedChanges)
	assert.False(t, meta.LastDownloadedAt.IsZero())

	// manifest rebased to downloaded counts, so a clean push validates
	expected, err := f.journal.Expected(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expected[models.CollectionRewards])
	assert.Equal(t, 1, expected[models.CollectionCampaigns])
}

func TestRefreshRecordsDiscardedMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")

	require.NoError(t, f.repo.SaveReward(ctx, &models.Reward{ID: "stale", Title: "Discarded"}))

	require.NoError(t, f.engine.Refresh(ctx, "t1"))

	n, err := f.outbox.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// the wiped mutation leaves an audit trail
	events, err := f.journal.Events(ctx)
	require.NoError(t, err)
	var dropped []models.Event
	for _, ev := range events {
		if ev.Action == models.EventSyncError {
			dropped = append(dropped, ev)
		}
	}
	require.Len(t, dropped, 1)
	assert.Equal(t, "rewards/stale", dropped[0].Data["key"])
	assert.Equal(t, "discarded by refresh", dropped[0].Data["reason"])
}

func TestPullCancelledMidCollectionFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	f.seedTenant(t, ctx, "t1")

	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		f.remote.put(t, "t1", models.CollectionRewards, models.Reward{ID: id, Title: "Reward " + id}, id)
	}

	f.remote.fetchHook = func(string) { cancel() }

	_, err := f.engine.Pull(ctx, "t1")
	require.ErrorIs(t, err, context.Canceled)

	// the slot stays self-consistent: the tenant pointer still names a
	// resident Profile
	bg := context.Background()
	tenantID, err := f.repo.CurrentTenantID(bg)
	require.NoError(t, err)
	assert.Equal(t, "t1", tenantID)

	profile, err := f.repo.Profile(bg)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "t1", profile.ID)

	// the interrupted collection was not partially applied
	rewards, err := f.repo.Rewards(bg)
	require.NoError(t, err)
	assert.Empty(t, rewards)
}

func TestRefreshUnknownTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.engine.Refresh(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
