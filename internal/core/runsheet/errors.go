package runsheet

import "errors"

// State-conflict errors: the operation is legal in general but not in the
// current run-state. The loser of a concurrent race observes the updated
// state and receives one of these instead of corrupting fields.
var (
	ErrAlreadyRunning = errors.New("a slot is already running")
	ErrNotRunning     = errors.New("no slot is running")
	ErrAlreadyPaused  = errors.New("the slot is already paused")
	ErrNotPaused      = errors.New("the slot is not paused")
	ErrNoActiveSlot   = errors.New("no active slot")
	ErrNoSlots        = errors.New("no pending slots")

	// ErrSlotCompleted and ErrSlotActive guard edits and deletes: completed
	// slots are immutable, and the slot currently on the clock cannot be
	// changed underneath it.
	ErrSlotCompleted = errors.New("slot is completed")
	ErrSlotActive    = errors.New("slot is currently active")

	// ErrInvalidPermutation is returned when a reorder request's id set does
	// not exactly match the stored id set.
	ErrInvalidPermutation = errors.New("id sequence is not a permutation of the existing slots")

	// ErrIncompleteRemain is returned when delete-all is requested while
	// incomplete slots remain.
	ErrIncompleteRemain = errors.New("incomplete slots remain")
)

// ValidationError reports bad input shape or values.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// IsConflict reports whether err is one of the state-conflict sentinels.
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrAlreadyRunning, ErrNotRunning, ErrAlreadyPaused, ErrNotPaused,
		ErrNoActiveSlot, ErrNoSlots, ErrSlotCompleted, ErrSlotActive,
		ErrInvalidPermutation, ErrIncompleteRemain,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
