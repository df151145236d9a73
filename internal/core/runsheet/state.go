package runsheet

import "time"

// State is the singleton run-state: which slot is on the clock and its
// timing bookkeeping. Constructed once at startup in its Idle zero value;
// there is no lazy get-or-create.
//
// Invariants:
//   - Paused implies Running; not Running implies not Paused.
//   - While running and not paused, StartedAt is the authoritative origin
//     for wall-clock elapsed computation.
//   - While paused, ElapsedSeconds is authoritative and StartedAt is stale
//     (it must not be read for timing until Resume re-anchors it).
type State struct {
	ActiveSlotID       int64
	StartedAt          *time.Time
	PausedAt           *time.Time
	ElapsedSeconds     int
	TotalPausedSeconds int
	Running            bool
	Paused             bool
}
