package sync

import "time"

// Resolution is the outcome of comparing a local and a remote version of
// the same entity.
type Resolution int

const (
	// KeepLocal keeps the local fields; the remote copy is older.
	KeepLocal Resolution = iota
	// UseRemote overwrites local fields with the remote copy.
	UseRemote
)

// String returns a human-readable representation of the resolution.
func (r Resolution) String() string {
	if r == UseRemote {
		return "use_remote"
	}
	return "keep_local"
}

// Resolve implements last-write-wins between two update timestamps.
//
// The remote side wins on an exact tie: every replica comparing the same
// pair reaches the same outcome without a secondary tiebreaker, so the
// fleet converges. Remote tombstones are handled before this comparison
// is ever consulted - deletion always wins once observed.
func Resolve(localUpdatedAt, remoteUpdatedAt time.Time) Resolution {
	if remoteUpdatedAt.Before(localUpdatedAt) {
		return KeepLocal
	}
	return UseRemote
}
