package schedule

import "time"

// MemberRef is the id/name pair embedded in slot views. The roster is
// serialized here by value so observers never need a second lookup.
type MemberRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SlotView is the wire representation of a slot, with responsible members
// resolved and drift precomputed.
type SlotView struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	PlannedMinutes int        `json:"planned_minutes"`
	Members        []string   `json:"members"`
	Member1        MemberRef  `json:"member1"`
	Member2        MemberRef  `json:"member2"`
	Member3        MemberRef  `json:"member3"`
	Order          int        `json:"order"`
	ActualSeconds  *int       `json:"actual_seconds"`
	DriftSeconds   int        `json:"drift_seconds"`
	DriftDisplay   string     `json:"drift_display"`
	CompletedAt    *time.Time `json:"completed_at"`
	IsCompleted    bool       `json:"is_completed"`
	CreatedAt      time.Time  `json:"created_at"`
}

// StateSnapshot is the full run-state view pushed to observers and returned
// by the runstate endpoint. Remaining time and cumulative drift are computed
// at snapshot time.
type StateSnapshot struct {
	ActiveSlot        *SlotView  `json:"active_slot"`
	NextSlot          *SlotView  `json:"next_slot"`
	StartedAt         *time.Time `json:"started_at"`
	PausedAt          *time.Time `json:"paused_at"`
	ElapsedSeconds    int        `json:"elapsed_seconds"`
	RemainingSeconds  int        `json:"remaining_seconds"`
	IsRunning         bool       `json:"is_running"`
	IsPaused          bool       `json:"is_paused"`
	TotalDriftSeconds int        `json:"total_drift_seconds"`
	TotalDriftDisplay string     `json:"total_drift_display"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
