package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(5 * time.Minute)

	tests := []struct {
		name          string
		localVersion  int64
		localUpdated  time.Time
		remoteVersion int64
		remoteUpdated time.Time
		want          Winner
	}{
		{"higher local version wins", 3, earlier, 2, later, WinnerLocal},
		{"higher remote version wins", 2, later, 3, earlier, WinnerRemote},
		{"version tie, later local timestamp wins", 2, later, 2, earlier, WinnerLocal},
		{"version tie, later remote timestamp wins", 2, earlier, 2, later, WinnerRemote},
		{"full tie keeps local", 2, earlier, 2, earlier, WinnerLocal},
		{"zero versions keep local", 0, earlier, 0, earlier, WinnerLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.localVersion, tt.localUpdated, tt.remoteVersion, tt.remoteUpdated)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	// same inputs always resolve the same way
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := Resolve(4, at, 4, at.Add(time.Second))
	for range 10 {
		assert.Equal(t, first, Resolve(4, at, 4, at.Add(time.Second)))
	}
}

func TestWinnerString(t *testing.T) {
	assert.Equal(t, "local", WinnerLocal.String())
	assert.Equal(t, "remote", WinnerRemote.String())
}
