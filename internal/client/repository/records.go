package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
)

// record is the surface the generic list helpers need from a record pointer.
type record interface {
	RecordID() string
	Meta() *models.RecordMeta
}

func loadList[T any](ctx context.Context, kv kvstore.Store, key string) ([]T, error) {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return list, nil
}

func saveList[T any](ctx context.Context, kv kvstore.Store, key string, list []T) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}

// upsert replaces the record with item's id or appends it, stamping the
// lifecycle fields: UpdatedAt moves to now (never backwards), CreatedAt of a
// prior value is preserved, Version bumps on every save. Reports whether the
// record is new to the collection.
func upsert[T any, PT interface {
	record
	*T
}](list []T, item PT, now time.Time) ([]T, bool) {
	meta := item.Meta()

	for i := range list {
		existing := PT(&list[i])
		if existing.RecordID() != item.RecordID() {
			continue
		}

		prev := existing.Meta()
		if !prev.CreatedAt.IsZero() {
			meta.CreatedAt = prev.CreatedAt
		}
		meta.UpdatedAt = laterOf(now, prev.UpdatedAt)
		meta.Version = prev.Version + 1

		list[i] = *item
		return list, false
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = laterOf(now, meta.UpdatedAt)
	meta.Version++

	return append(list, *item), true
}

// remove drops the record with the given id. Reports whether it was present.
func remove[T any, PT interface {
	record
	*T
}](list []T, id string) ([]T, bool) {
	for i := range list {
		if PT(&list[i]).RecordID() == id {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

// replace swaps the record with item's id in place, or appends it, without
// touching any lifecycle field. Used by the clean (pull/restore) write path.
func replace[T any, PT interface {
	record
	*T
}](list []T, item PT) []T {
	for i := range list {
		if PT(&list[i]).RecordID() == item.RecordID() {
			list[i] = *item
			return list
		}
	}
	return append(list, *item)
}

// laterOf keeps per-record UpdatedAt monotonically non-decreasing even when
// the wall clock steps backwards.
func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
