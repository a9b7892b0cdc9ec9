package kvstore

// Key layout of the device cache. The primary namespace holds the resident
// tenant's data; each archived tenant gets a mirrored namespace under
// archive/<tenantID>/. Journal and outbox keys are device-scoped and never
// archived.
const (
	PrimaryPrefix = "primary/"
	ArchivePrefix = "archive/"

	KeyCurrentTenant = PrimaryPrefix + "tenant"
	KeySyncMetadata  = PrimaryPrefix + "meta"

	KeyOutbox = PrimaryPrefix + "outbox"

	KeyEventLog = "journal/events"
	KeyManifest = "journal/manifest"
)

// ArchivedSuffixes are the primary slots a tenant snapshot carries. The
// outbox travels with the tenant so an evicted tenant's pending pushes can
// never leak into another tenant's session. The current-tenant pointer is
// deliberately absent: it is cleared on archive and re-set by restore.
var ArchivedSuffixes = []string{"profile", "rewards", "campaigns", "customers", "meta", "outbox"}

// PrimaryKey returns the primary-namespace key for a collection suffix.
func PrimaryKey(suffix string) string {
	return PrimaryPrefix + suffix
}

// ArchiveKey returns the archive-namespace key for a tenant and suffix.
func ArchiveKey(tenantID string, suffix string) string {
	return ArchivePrefix + tenantID + "/" + suffix
}

// ArchiveTenantPrefix returns the whole archive namespace of one tenant.
func ArchiveTenantPrefix(tenantID string) string {
	return ArchivePrefix + tenantID + "/"
}
