package runsheet

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/colonyops/cueline/internal/core/eventbus"
	"github.com/colonyops/cueline/internal/core/schedule"
)

// Snapshot returns the full run-state view observers render from.
func (s *Service) Snapshot(ctx context.Context) (schedule.StateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(ctx)
}

func (s *Service) snapshotLocked(ctx context.Context) (schedule.StateSnapshot, error) {
	snap := schedule.StateSnapshot{
		StartedAt: s.state.StartedAt,
		PausedAt:  s.state.PausedAt,
		IsRunning: s.state.Running,
		IsPaused:  s.state.Paused,
		UpdatedAt: s.now(),
	}

	drift, err := s.cumulativeDriftLocked(ctx)
	if err != nil {
		return schedule.StateSnapshot{}, err
	}
	snap.TotalDriftSeconds = drift
	snap.TotalDriftDisplay = schedule.FormatDelta(drift)

	if s.state.ActiveSlotID != 0 {
		slot, err := s.slots.Get(ctx, s.state.ActiveSlotID)
		if err != nil {
			return schedule.StateSnapshot{}, fmt.Errorf("resolve active slot: %w", err)
		}

		view, err := s.toSlotView(ctx, slot)
		if err != nil {
			return schedule.StateSnapshot{}, err
		}
		snap.ActiveSlot = &view

		// Remaining rounds up so the display never shows 0:00 early.
		remaining := int(math.Ceil(math.Max(0, s.remainingExactLocked(slot))))
		snap.RemainingSeconds = remaining
		snap.ElapsedSeconds = slot.PlannedSeconds() - remaining

		next, err := s.slots.NextPending(ctx, slot.Order)
		if err == nil {
			nextView, err := s.toSlotView(ctx, next)
			if err != nil {
				return schedule.StateSnapshot{}, err
			}
			snap.NextSlot = &nextView
		} else if !errors.Is(err, schedule.ErrNotFound) {
			return schedule.StateSnapshot{}, fmt.Errorf("find next slot: %w", err)
		}
	}

	return snap, nil
}

func (s *Service) listViewsLocked(ctx context.Context) ([]schedule.SlotView, error) {
	slots, err := s.slots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	views := make([]schedule.SlotView, 0, len(slots))
	for _, slot := range slots {
		view, err := s.toSlotView(ctx, slot)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// toSlotView resolves the three responsible members and precomputes drift.
func (s *Service) toSlotView(ctx context.Context, slot schedule.Slot) (schedule.SlotView, error) {
	refs := make([]schedule.MemberRef, 0, 3)
	names := make([]string, 0, 3)
	for _, id := range slot.MemberIDs() {
		m, err := s.members.Get(ctx, id)
		if err != nil {
			return schedule.SlotView{}, fmt.Errorf("resolve member %d: %w", id, err)
		}
		refs = append(refs, schedule.MemberRef{ID: m.ID, Name: m.Name})
		names = append(names, m.Name)
	}

	return schedule.SlotView{
		ID:             slot.ID,
		Name:           slot.Name,
		PlannedMinutes: slot.PlannedMinutes,
		Members:        names,
		Member1:        refs[0],
		Member2:        refs[1],
		Member3:        refs[2],
		Order:          slot.Order,
		ActualSeconds:  slot.ActualSeconds,
		DriftSeconds:   slot.Drift(),
		DriftDisplay:   slot.DriftDisplay(),
		CompletedAt:    slot.CompletedAt,
		IsCompleted:    slot.IsCompleted(),
		CreatedAt:      slot.CreatedAt,
	}, nil
}

// broadcastStateLocked publishes a state snapshot to the bus. Broadcast
// failures are logged and swallowed: a bad push must not fail the command
// that triggered it.
func (s *Service) broadcastStateLocked(ctx context.Context) {
	snap, err := s.snapshotLocked(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("build state snapshot for broadcast")
		return
	}
	s.bus.PublishStateUpdated(eventbus.StateUpdatedPayload{State: snap})
}

func (s *Service) broadcastListLocked(ctx context.Context) {
	views, err := s.listViewsLocked(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("build slot list for broadcast")
		return
	}
	s.bus.PublishListUpdated(eventbus.ListUpdatedPayload{Slots: views})
}
