// Package journal owns the device's append-only event log and the sync
// manifest. The event log is diagnostic only. The manifest is the one hard
// integrity gate in the system: it tallies expected record counts so a bulk
// sync that silently dropped records cannot be marked complete.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
)

// DefaultCapacity bounds the event log; the oldest entries are evicted.
const DefaultCapacity = 200

type Journal struct {
	kv       kvstore.Store
	log      logging.Logger
	capacity int
	now      func() time.Time

	mu sync.Mutex
}

func New(kv kvstore.Store, log logging.Logger) *Journal {
	return &Journal{kv: kv, log: log, capacity: DefaultCapacity, now: time.Now}
}

// RecordEvent appends an entry to the bounded log, evicting the oldest
// entries on overflow.
func (j *Journal) RecordEvent(ctx context.Context, action models.EventAction, data map[string]any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	events, err := j.loadEvents(ctx)
	if err != nil {
		return err
	}

	events = append(events, models.Event{
		ID:     uuid.NewString(),
		At:     j.now().UTC(),
		Action: action,
		Data:   data,
	})
	if len(events) > j.capacity {
		events = events[len(events)-j.capacity:]
	}

	return j.saveEvents(ctx, events)
}

// Events returns the log in append order, oldest first.
func (j *Journal) Events(ctx context.Context) ([]models.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.loadEvents(ctx)
}

// SetBaseline captures the given per-collection counts as the manifest
// baseline and clears the running tallies. Called immediately after a
// download or restore.
func (j *Journal) SetBaseline(ctx context.Context, counts map[models.Collection]int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	m, err := j.loadManifest(ctx)
	if err != nil {
		return err
	}
	m.Rebase(counts)
	return j.saveManifest(ctx, m)
}

// TallyCreate increments the create tally for a tracked collection. Calls
// for untracked collections are ignored.
func (j *Journal) TallyCreate(ctx context.Context, c models.Collection) error {
	return j.tally(ctx, c, func(m *models.Manifest) { m.Creates[c]++ })
}

// TallyDelete increments the delete tally for a tracked collection.
func (j *Journal) TallyDelete(ctx context.Context, c models.Collection) error {
	return j.tally(ctx, c, func(m *models.Manifest) { m.Deletes[c]++ })
}

func (j *Journal) tally(ctx context.Context, c models.Collection, apply func(*models.Manifest)) error {
	if !c.Tracked() {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	m, err := j.loadManifest(ctx)
	if err != nil {
		return err
	}
	apply(m)
	return j.saveManifest(ctx, m)
}

// Expected returns the record count each tracked collection must hold for a
// bulk sync to be considered complete.
func (j *Journal) Expected(ctx context.Context) (map[models.Collection]int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	m, err := j.loadManifest(ctx)
	if err != nil {
		return nil, err
	}

	expected := make(map[models.Collection]int, len(models.TrackedCollections))
	for _, c := range models.TrackedCollections {
		expected[c] = m.Expected(c)
	}
	return expected, nil
}

// ValidateDump compares actual per-collection counts against the manifest's
// expectation. A mismatch appends a sync-error event and returns
// common.ErrSyncValidation; the caller must not mark the sync as complete.
func (j *Journal) ValidateDump(ctx context.Context, actual map[models.Collection]int) error {
	expected, err := j.Expected(ctx)
	if err != nil {
		return err
	}

	for _, c := range models.TrackedCollections {
		if actual[c] == expected[c] {
			continue
		}

		j.log.Error(ctx, "manifest mismatch",
			"collection", string(c), "expected", expected[c], "actual", actual[c])

		if err := j.RecordEvent(ctx, models.EventSyncError, map[string]any{
			"collection": string(c),
			"expected":   expected[c],
			"actual":     actual[c],
		}); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s: expected %d records, have %d",
			common.ErrSyncValidation, c, expected[c], actual[c])
	}
	return nil
}

func (j *Journal) loadEvents(ctx context.Context) ([]models.Event, error) {
	raw, err := j.kv.Get(ctx, kvstore.KeyEventLog)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var events []models.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("failed to decode event log: %w", err)
	}
	return events, nil
}

func (j *Journal) saveEvents(ctx context.Context, events []models.Event) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode event log: %w", err)
	}
	return j.kv.Set(ctx, kvstore.KeyEventLog, raw)
}

func (j *Journal) loadManifest(ctx context.Context) (*models.Manifest, error) {
	raw, err := j.kv.Get(ctx, kvstore.KeyManifest)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return models.NewManifest(), nil
	}
	var m models.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Baselines == nil {
		m.Baselines = make(map[models.Collection]int)
	}
	if m.Creates == nil {
		m.Creates = make(map[models.Collection]int)
	}
	if m.Deletes == nil {
		m.Deletes = make(map[models.Collection]int)
	}
	return &m, nil
}

func (j *Journal) saveManifest(ctx context.Context, m *models.Manifest) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return j.kv.Set(ctx, kvstore.KeyManifest, raw)
}
