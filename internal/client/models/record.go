// Package models defines the typed records held in the device cache and the
// bookkeeping values (sync metadata, manifest, events, mutations) that travel
// with them. Raw JSON is decoded into these types at the repository boundary;
// nothing above the key-value store works with bytes.
package models

import "time"

// Collection names one of the tenant's record collections.
type Collection string

const (
	CollectionProfile   Collection = "profile"
	CollectionRewards   Collection = "rewards"
	CollectionCampaigns Collection = "campaigns"
	CollectionCustomers Collection = "customers"
)

// TrackedCollections are the collections subject to full-dump validation by
// the sync manifest.
var TrackedCollections = []Collection{CollectionRewards, CollectionCampaigns}

// Collections lists every record collection, profile included.
var Collections = []Collection{
	CollectionProfile,
	CollectionRewards,
	CollectionCampaigns,
	CollectionCustomers,
}

func (c Collection) Valid() bool {
	switch c {
	case CollectionProfile, CollectionRewards, CollectionCampaigns, CollectionCustomers:
		return true
	}
	return false
}

// Tracked reports whether the collection participates in manifest tallies.
func (c Collection) Tracked() bool {
	for _, tc := range TrackedCollections {
		if c == tc {
			return true
		}
	}
	return false
}

// RecordMeta carries the lifecycle fields shared by every record. UpdatedAt
// is monotonically non-decreasing per record; Version is bumped on every
// local save so conflict resolution stays deterministic.
type RecordMeta struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
}

// Meta exposes the embedded lifecycle fields for generic record handling.
func (m *RecordMeta) Meta() *RecordMeta { return m }

// Profile is the tenant's own business record. Its ID is the tenant
// identifier, which is what ties a primary repository to a tenant.
type Profile struct {
	ID           string  `json:"id"`
	BusinessName string  `json:"businessName"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	LoyaltyRatio float64 `json:"loyaltyRatio"`
	RecordMeta
}

func (p Profile) RecordID() string { return p.ID }

// Reward is a redeemable reward definition.
type Reward struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	PointsCost int    `json:"pointsCost"`
	Active     bool   `json:"active"`
	RecordMeta
}

func (r Reward) RecordID() string { return r.ID }

// Campaign is a time-bounded promotion.
type Campaign struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Details  string    `json:"details"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	RecordMeta
}

func (c Campaign) RecordID() string { return c.ID }

// Customer is one entry in the tenant's customer roster.
type Customer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Points int    `json:"points"`
	RecordMeta
}

func (c Customer) RecordID() string { return c.ID }
