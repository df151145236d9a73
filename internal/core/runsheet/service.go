// Package runsheet coordinates the live run: one state machine over the
// ordered slot sequence, driven by explicit operator commands and the
// once-per-second tick.
package runsheet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cueline/internal/core/eventbus"
	"github.com/colonyops/cueline/internal/core/milestone"
	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/core/schedule"
)

// Service owns the run-state and mediates every mutation of the schedule.
// A single mutex serializes commands, ticks, and slot edits, so observers
// always see transitions whole.
type Service struct {
	mu    sync.Mutex
	state State

	slots    schedule.Store
	members  roster.Store
	detector *milestone.Detector
	bus      *eventbus.EventBus
	now      func() time.Time
	log      zerolog.Logger
}

// New creates the coordinator. The run-state starts idle; it lives in
// memory only and resets on process restart.
func New(slots schedule.Store, members roster.Store, detector *milestone.Detector, bus *eventbus.EventBus, log zerolog.Logger) *Service {
	return &Service{
		slots:    slots,
		members:  members,
		detector: detector,
		bus:      bus,
		now:      time.Now,
		log:      log,
	}
}

// Start begins timing. With slotID zero it picks the first incomplete slot;
// otherwise it starts the named slot. Starting while paused restarts fresh
// on the chosen slot.
func (s *Service) Start(ctx context.Context, slotID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Running && !s.state.Paused {
		return ErrAlreadyRunning
	}

	var (
		slot schedule.Slot
		err  error
	)
	if slotID != 0 {
		slot, err = s.slots.Get(ctx, slotID)
	} else {
		slot, err = s.slots.NextPending(ctx, 0)
		if errors.Is(err, schedule.ErrNotFound) {
			return ErrNoSlots
		}
	}
	if err != nil {
		return fmt.Errorf("resolve slot: %w", err)
	}

	now := s.now()
	s.state = State{ActiveSlotID: slot.ID, StartedAt: &now, Running: true}
	s.log.Info().Int64("slot_id", slot.ID).Str("slot", slot.Name).Msg("timer started")

	s.checkMilestonesLocked(ctx)
	s.broadcastStateLocked(ctx)
	return nil
}

// Pause freezes the countdown. The frozen elapsed value is derived from the
// display remaining so the number an operator saw when they hit pause is
// exactly the number they come back to.
func (s *Service) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Running {
		return ErrNotRunning
	}
	if s.state.Paused {
		return ErrAlreadyPaused
	}

	slot, err := s.slots.Get(ctx, s.state.ActiveSlotID)
	if err != nil {
		return fmt.Errorf("resolve active slot: %w", err)
	}

	now := s.now()
	remaining := float64(slot.PlannedSeconds()) - now.Sub(*s.state.StartedAt).Seconds()
	displayRemaining := int(math.Ceil(math.Max(0, remaining)))

	s.state.ElapsedSeconds = slot.PlannedSeconds() - displayRemaining
	s.state.PausedAt = &now
	s.state.Paused = true
	s.log.Info().Int64("slot_id", slot.ID).Int("elapsed", s.state.ElapsedSeconds).Msg("timer paused")

	s.broadcastStateLocked(ctx)
	return nil
}

// Resume continues the countdown from the frozen elapsed value and adds the
// pause interval to the running overtime total.
func (s *Service) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Running {
		return ErrNotRunning
	}
	if !s.state.Paused {
		return ErrNotPaused
	}

	now := s.now()
	s.state.TotalPausedSeconds += int(now.Sub(*s.state.PausedAt).Seconds())

	// Re-anchor the start so elapsed time continues from the frozen value.
	anchored := now.Add(-time.Duration(s.state.ElapsedSeconds) * time.Second)
	s.state.StartedAt = &anchored
	s.state.PausedAt = nil
	s.state.Paused = false
	s.log.Info().Int64("slot_id", s.state.ActiveSlotID).Int("total_paused", s.state.TotalPausedSeconds).Msg("timer resumed")

	s.broadcastStateLocked(ctx)
	return nil
}

// Skip completes the active slot immediately, recording its actual duration,
// and advances to the next incomplete slot. Works while paused.
func (s *Service) Skip(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Running || s.state.ActiveSlotID == 0 {
		return ErrNoActiveSlot
	}
	return s.advanceLocked(ctx)
}

// Tick is the once-per-second heartbeat. While the countdown runs it either
// auto-advances an expired slot or pushes a fresh state broadcast; milestone
// conditions are evaluated on every call.
func (s *Service) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Running && !s.state.Paused && s.state.ActiveSlotID != 0 {
		slot, err := s.slots.Get(ctx, s.state.ActiveSlotID)
		if err != nil {
			return fmt.Errorf("resolve active slot: %w", err)
		}
		if s.remainingExactLocked(slot) <= 0 {
			return s.advanceLocked(ctx)
		}
		s.broadcastStateLocked(ctx)
	}

	s.checkMilestonesLocked(ctx)
	return nil
}

// advanceLocked completes the active slot and moves to the next incomplete
// one, or goes idle when none remain. Actual duration is wall-clock time on
// the slot including every paused interval.
func (s *Service) advanceLocked(ctx context.Context) error {
	slot, err := s.slots.Get(ctx, s.state.ActiveSlotID)
	if err != nil {
		return fmt.Errorf("resolve active slot: %w", err)
	}

	now := s.now()
	var timerElapsed int
	if s.state.Paused {
		s.state.TotalPausedSeconds += int(now.Sub(*s.state.PausedAt).Seconds())
		timerElapsed = s.state.ElapsedSeconds
	} else {
		timerElapsed = int(now.Sub(*s.state.StartedAt).Seconds())
	}
	actual := timerElapsed + s.state.TotalPausedSeconds

	if err := s.slots.MarkCompleted(ctx, slot.ID, actual, now); err != nil {
		return fmt.Errorf("complete slot: %w", err)
	}
	s.log.Info().
		Int64("slot_id", slot.ID).
		Str("slot", slot.Name).
		Int("actual_seconds", actual).
		Int("drift_seconds", actual-slot.PlannedSeconds()).
		Msg("slot completed")

	next, err := s.slots.NextPending(ctx, slot.Order)
	switch {
	case err == nil:
		s.state = State{ActiveSlotID: next.ID, StartedAt: &now, Running: true}
		s.log.Info().Int64("slot_id", next.ID).Str("slot", next.Name).Msg("advanced to next slot")
	case errors.Is(err, schedule.ErrNotFound):
		s.state = State{}
		s.log.Info().Msg("schedule finished")
	default:
		return fmt.Errorf("find next slot: %w", err)
	}

	s.checkMilestonesLocked(ctx)
	s.broadcastStateLocked(ctx)
	s.broadcastListLocked(ctx)
	return nil
}

// remainingExactLocked returns the active slot's remaining time as an exact
// float. Used for expiry and for the warning window; display values round
// up from this.
func (s *Service) remainingExactLocked(slot schedule.Slot) float64 {
	switch {
	case !s.state.Running || s.state.ActiveSlotID == 0:
		return 0
	case s.state.Paused:
		return float64(slot.PlannedSeconds() - s.state.ElapsedSeconds)
	default:
		return float64(slot.PlannedSeconds()) - s.now().Sub(*s.state.StartedAt).Seconds()
	}
}

// cumulativeDriftLocked sums drift across completed slots plus the overtime
// accrued on the active slot: its paused total, and while paused the
// in-flight pause interval as well.
func (s *Service) cumulativeDriftLocked(ctx context.Context) (int, error) {
	slots, err := s.slots.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list slots: %w", err)
	}

	total := 0
	for _, sl := range slots {
		if sl.IsCompleted() {
			total += sl.Drift()
		}
	}

	if s.state.ActiveSlotID != 0 && s.state.Running {
		total += s.state.TotalPausedSeconds
		if s.state.Paused {
			total += int(s.now().Sub(*s.state.PausedAt).Seconds())
		}
	}
	return total, nil
}

// checkMilestonesLocked gathers facts and hands them to the detector.
// Failures here are logged, never surfaced: notifications are best-effort.
func (s *Service) checkMilestonesLocked(ctx context.Context) {
	total, err := s.slots.Count(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("count slots for milestone check")
		return
	}
	incomplete, err := s.slots.CountIncomplete(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("count incomplete slots for milestone check")
		return
	}
	drift, err := s.cumulativeDriftLocked(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("compute drift for milestone check")
		return
	}

	facts := milestone.Facts{
		Running:         s.state.Running,
		Paused:          s.state.Paused,
		Started:         s.state.StartedAt != nil,
		TotalSlots:      total,
		IncompleteSlots: incomplete,
		DriftSeconds:    drift,
	}

	if s.state.ActiveSlotID != 0 {
		slot, err := s.slots.Get(ctx, s.state.ActiveSlotID)
		if err != nil {
			s.log.Error().Err(err).Msg("resolve active slot for milestone check")
			return
		}
		facts.ActiveSlotOrder = slot.Order
		facts.RemainingSeconds = s.remainingExactLocked(slot)
	}

	s.detector.Check(ctx, facts)
}
