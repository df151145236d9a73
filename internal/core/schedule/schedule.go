// Package schedule defines the run-sheet domain: ordered, timed slots each
// staffed by three responsible members.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a slot id does not resolve.
var ErrNotFound = errors.New("slot not found")

// MaxNameLength is the maximum number of runes allowed in a slot name.
const MaxNameLength = 50

// Slot is one scheduled, timed entry in the run-sheet sequence.
type Slot struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	PlannedMinutes int        `json:"planned_minutes"`
	Member1ID      int64      `json:"member1_id"`
	Member2ID      int64      `json:"member2_id"`
	Member3ID      int64      `json:"member3_id"`
	Order          int        `json:"order"`
	ActualSeconds  *int       `json:"actual_seconds"`
	CompletedAt    *time.Time `json:"completed_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// PlannedSeconds returns the planned duration in seconds.
func (s Slot) PlannedSeconds() int {
	return s.PlannedMinutes * 60
}

// IsCompleted reports whether the slot has finished. A set completion
// timestamp is the single source of truth.
func (s Slot) IsCompleted() bool {
	return s.CompletedAt != nil
}

// Drift returns actual minus planned duration in seconds. Zero until the
// slot completes.
func (s Slot) Drift() int {
	if s.ActualSeconds == nil {
		return 0
	}
	return *s.ActualSeconds - s.PlannedSeconds()
}

// DriftDisplay returns the slot's drift formatted as a signed M:SS string.
func (s Slot) DriftDisplay() string {
	return FormatDelta(s.Drift())
}

// MemberIDs returns the three responsible member ids in slot order.
func (s Slot) MemberIDs() []int64 {
	return []int64{s.Member1ID, s.Member2ID, s.Member3ID}
}

// FormatDelta renders a signed second count as ±M:SS. Zero renders as
// "±0:00" so the sign never suggests a direction that isn't there.
func FormatDelta(seconds int) string {
	if seconds == 0 {
		return "±0:00"
	}

	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%d:%02d", sign, seconds/60, seconds%60)
}

// FormatDeltaStatus renders a signed second count as ±M:SS with a pacing tag.
// Positive drift means the schedule is consuming more time than planned.
func FormatDeltaStatus(seconds int) string {
	sign := "+"
	abs := seconds
	if seconds < 0 {
		sign = "-"
		abs = -seconds
	}

	status := "on time"
	switch {
	case seconds > 0:
		status = "running late"
	case seconds < 0:
		status = "ahead"
	}

	return fmt.Sprintf("%s%d:%02d %s", sign, abs/60, abs%60, status)
}

// Store persists slots. Implementations must keep Order values unique and
// contiguous from 1 across mutations.
type Store interface {
	// Create inserts a slot with the given Order and returns it with its id set.
	Create(ctx context.Context, slot Slot) (Slot, error)
	// Get returns a slot by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, id int64) (Slot, error)
	// List returns all slots ordered by Order ascending.
	List(ctx context.Context) ([]Slot, error)
	// Update rewrites the mutable fields (name, minutes, members) of a slot.
	Update(ctx context.Context, slot Slot) error
	// Delete removes a slot and compacts the Order values after it by one.
	Delete(ctx context.Context, id int64) error
	// Reorder atomically assigns Order 1..n following the given id sequence.
	Reorder(ctx context.Context, ids []int64) error
	// NextPending returns the first incomplete slot with Order greater than
	// afterOrder (pass 0 for the first incomplete slot overall).
	// Returns ErrNotFound when none remain.
	NextPending(ctx context.Context, afterOrder int) (Slot, error)
	// MarkCompleted stamps a slot with its actual duration and completion time.
	MarkCompleted(ctx context.Context, id int64, actualSeconds int, at time.Time) error
	// DeleteAll removes every slot (and, in the same transaction, any
	// notification records keyed to them) and returns the number deleted.
	DeleteAll(ctx context.Context) (int64, error)
	// Count returns the total number of slots.
	Count(ctx context.Context) (int64, error)
	// CountIncomplete returns the number of slots not yet completed.
	CountIncomplete(ctx context.Context) (int64, error)
	// MaxOrder returns the highest Order in use, or 0 when empty.
	MaxOrder(ctx context.Context) (int, error)
}
