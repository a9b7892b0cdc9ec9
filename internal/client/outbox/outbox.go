// Package outbox holds the persistent queue of pending outbound mutations.
// Every local write lands here before the sync engine pushes it; the queue
// survives restarts and travels with archive/restore so pending pushes stay
// with their tenant.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
)

type Outbox struct {
	kv  kvstore.Store
	log logging.Logger
	now func() time.Time

	mu sync.Mutex
}

func New(kv kvstore.Store, log logging.Logger) *Outbox {
	return &Outbox{kv: kv, log: log, now: time.Now}
}

// Enqueue adds a mutation, coalescing with any queued mutation for the same
// entity: the later write replaces the earlier one in place, and a delete of
// a record whose create was never pushed cancels both out.
func (o *Outbox) Enqueue(ctx context.Context, m models.Mutation) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	queue, err := o.load(ctx)
	if err != nil {
		return err
	}

	for i, queued := range queue {
		if queued.Key() != m.Key() {
			continue
		}

		if queued.Op == models.OpCreate && m.Op == models.OpDelete {
			// the remote never saw this record
			queue = append(queue[:i], queue[i+1:]...)
			return o.save(ctx, queue)
		}

		op := m.Op
		if queued.Op == models.OpCreate && m.Op == models.OpUpdate {
			op = models.OpCreate
		}
		queue[i] = models.Mutation{
			Op:         op,
			Collection: m.Collection,
			EntityID:   m.EntityID,
			Version:    m.Version,
			Payload:    m.Payload,
			QueuedAt:   queued.QueuedAt,
		}
		return o.save(ctx, queue)
	}

	m.QueuedAt = o.now().UTC()
	m.Attempts = 0
	queue = append(queue, m)
	return o.save(ctx, queue)
}

// Snapshot returns the queue in FIFO order.
func (o *Outbox) Snapshot(ctx context.Context) ([]models.Mutation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load(ctx)
}

// Remove drops the queued mutation for the given entity key, if any.
func (o *Outbox) Remove(ctx context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	queue, err := o.load(ctx)
	if err != nil {
		return err
	}
	for i, queued := range queue {
		if queued.Key() == key {
			queue = append(queue[:i], queue[i+1:]...)
			return o.save(ctx, queue)
		}
	}
	return nil
}

// Update replaces the queued mutation with the same entity key verbatim,
// attempts counter included. Used by the sync engine to bump retry counts.
func (o *Outbox) Update(ctx context.Context, m models.Mutation) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	queue, err := o.load(ctx)
	if err != nil {
		return err
	}
	for i, queued := range queue {
		if queued.Key() == m.Key() {
			queue[i] = m
			return o.save(ctx, queue)
		}
	}
	return nil
}

// Contains reports whether a mutation for the entity key is queued.
func (o *Outbox) Contains(ctx context.Context, key string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	queue, err := o.load(ctx)
	if err != nil {
		return false, err
	}
	for _, queued := range queue {
		if queued.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func (o *Outbox) Len(ctx context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	queue, err := o.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(queue), nil
}

// Clear empties the queue. Used when a full refresh overwrites the primary:
// the queued mutations described state the refresh just replaced.
func (o *Outbox) Clear(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.kv.Delete(ctx, kvstore.KeyOutbox)
}

func (o *Outbox) load(ctx context.Context) ([]models.Mutation, error) {
	raw, err := o.kv.Get(ctx, kvstore.KeyOutbox)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var queue []models.Mutation
	if err := json.Unmarshal(raw, &queue); err != nil {
		return nil, fmt.Errorf("failed to decode outbox: %w", err)
	}
	return queue, nil
}

func (o *Outbox) save(ctx context.Context, queue []models.Mutation) error {
	raw, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to encode outbox: %w", err)
	}
	return o.kv.Set(ctx, kvstore.KeyOutbox, raw)
}
