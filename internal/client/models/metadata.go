package models

import "time"

// SyncMetadata is the per-device sync bookkeeping record. It is scoped to
// the primary repository and travels with archive/restore.
type SyncMetadata struct {
	// LastSyncedAt is when the outbox was last fully drained and validated.
	LastSyncedAt time.Time `json:"lastSyncedAt"`

	// LastDownloadedAt is when a full download last overwrote the primary.
	LastDownloadedAt time.Time `json:"lastDownloadedAt"`

	// HasUnsyncedChanges is the repository-level dirty flag.
	HasUnsyncedChanges bool `json:"hasUnsyncedChanges"`

	// Version counts local writes since the repository was created.
	Version int64 `json:"version"`
}

// Manifest tallies expected record counts for the collections subject to
// full-dump validation. Invariant: Expected = baseline + creates - deletes,
// never negative.
type Manifest struct {
	Baselines map[Collection]int `json:"baselines"`
	Creates   map[Collection]int `json:"creates"`
	Deletes   map[Collection]int `json:"deletes"`
}

func NewManifest() *Manifest {
	return &Manifest{
		Baselines: make(map[Collection]int),
		Creates:   make(map[Collection]int),
		Deletes:   make(map[Collection]int),
	}
}

// Expected returns the record count the collection must hold for a bulk sync
// to be considered complete.
func (m *Manifest) Expected(c Collection) int {
	n := m.Baselines[c] + m.Creates[c] - m.Deletes[c]
	if n < 0 {
		n = 0
	}
	return n
}

// Rebase captures the given counts as the new baseline and clears the
// running tallies. Called after every login download or restore.
func (m *Manifest) Rebase(counts map[Collection]int) {
	m.Baselines = make(map[Collection]int, len(counts))
	for c, n := range counts {
		m.Baselines[c] = n
	}
	m.Creates = make(map[Collection]int)
	m.Deletes = make(map[Collection]int)
}
