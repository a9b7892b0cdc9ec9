package syncer

import "time"

// Winner names the side a conflict resolved to.
type Winner int

const (
	WinnerLocal Winner = iota
	WinnerRemote
)

func (w Winner) String() string {
	if w == WinnerLocal {
		return "local"
	}
	return "remote"
}

// Resolve picks between the local and remote copy of one record. The higher
// version wins; on a version tie the later updatedAt wins; on a full tie the
// local copy is kept. Resolution is total: every input pair has a winner.
func Resolve(localVersion int64, localUpdated time.Time, remoteVersion int64, remoteUpdated time.Time) Winner {
	if localVersion != remoteVersion {
		if localVersion > remoteVersion {
			return WinnerLocal
		}
		return WinnerRemote
	}
	if remoteUpdated.After(localUpdated) {
		return WinnerRemote
	}
	return WinnerLocal
}
