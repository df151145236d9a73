// Package milestone detects notable run-sheet events (five minutes before
// the next slot, schedule started, schedule finished) and hands them to the
// chat notifier exactly once each.
package milestone

import (
	"context"
	"errors"
	"time"
)

// Kind identifies a milestone type.
type Kind string

// All milestone kinds.
const (
	KindFiveMinWarning   Kind = "five_min_warning"
	KindScheduleStarted  Kind = "schedule_started"
	KindScheduleFinished Kind = "schedule_finished"
)

// ErrDuplicate is returned when a record for the same (slot, kind) pair
// already exists. The uniqueness constraint is the at-most-once-send
// guarantee.
var ErrDuplicate = errors.New("notification already recorded")

// Record is the persisted proof that a milestone notification was attempted.
// Global milestones (schedule started/finished) use SlotID 0.
type Record struct {
	ID         int64
	SlotID     int64
	Kind       Kind
	Recipients []string
	Message    string
	SentAt     time.Time
}

// Store persists notification records.
type Store interface {
	// Create inserts a record. Returns ErrDuplicate when a record for the
	// same (slot, kind) pair exists.
	Create(ctx context.Context, rec Record) error
	// Exists reports whether a record exists for the (slot, kind) pair.
	Exists(ctx context.Context, slotID int64, kind Kind) (bool, error)
	// List returns all records, newest first.
	List(ctx context.Context) ([]Record, error)
	// Clear deletes every record.
	Clear(ctx context.Context) error
}
