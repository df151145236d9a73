package runsheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/core/schedule"
)

// SlotInput carries the operator-editable fields of a slot.
type SlotInput struct {
	Name           string `json:"name"`
	PlannedMinutes int    `json:"planned_minutes"`
	Member1ID      int64  `json:"member1_id"`
	Member2ID      int64  `json:"member2_id"`
	Member3ID      int64  `json:"member3_id"`
}

// CreateSlot appends a validated slot at the end of the sequence.
func (s *Service) CreateSlot(ctx context.Context, in SlotInput) (schedule.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.validateInput(ctx, in)
	if err != nil {
		return schedule.Slot{}, err
	}

	maxOrder, err := s.slots.MaxOrder(ctx)
	if err != nil {
		return schedule.Slot{}, fmt.Errorf("max order: %w", err)
	}

	slot, err := s.slots.Create(ctx, schedule.Slot{
		Name:           name,
		PlannedMinutes: in.PlannedMinutes,
		Member1ID:      in.Member1ID,
		Member2ID:      in.Member2ID,
		Member3ID:      in.Member3ID,
		Order:          maxOrder + 1,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return schedule.Slot{}, fmt.Errorf("create slot: %w", err)
	}
	s.log.Info().Int64("slot_id", slot.ID).Str("slot", slot.Name).Int("order", slot.Order).Msg("slot created")

	s.broadcastListLocked(ctx)
	return slot, nil
}

// UpdateSlot rewrites a slot's editable fields. Completed slots are frozen
// and the active slot cannot be edited mid-run.
func (s *Service) UpdateSlot(ctx context.Context, id int64, in SlotInput) (schedule.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.slots.Get(ctx, id)
	if err != nil {
		return schedule.Slot{}, err
	}
	if slot.IsCompleted() {
		return schedule.Slot{}, ErrSlotCompleted
	}
	if s.state.Running && s.state.ActiveSlotID == id {
		return schedule.Slot{}, ErrSlotActive
	}

	name, err := s.validateInput(ctx, in)
	if err != nil {
		return schedule.Slot{}, err
	}

	slot.Name = name
	slot.PlannedMinutes = in.PlannedMinutes
	slot.Member1ID = in.Member1ID
	slot.Member2ID = in.Member2ID
	slot.Member3ID = in.Member3ID

	if err := s.slots.Update(ctx, slot); err != nil {
		return schedule.Slot{}, fmt.Errorf("update slot: %w", err)
	}
	s.log.Info().Int64("slot_id", slot.ID).Str("slot", slot.Name).Msg("slot updated")

	s.broadcastListLocked(ctx)
	return slot, nil
}

// DeleteSlot removes a slot and compacts the order sequence. The active slot
// and completed slots cannot be deleted.
func (s *Service) DeleteSlot(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.slots.Get(ctx, id)
	if err != nil {
		return err
	}
	if slot.IsCompleted() {
		return ErrSlotCompleted
	}
	if s.state.Running && s.state.ActiveSlotID == id {
		return ErrSlotActive
	}

	if err := s.slots.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	s.log.Info().Int64("slot_id", id).Str("slot", slot.Name).Msg("slot deleted")

	s.broadcastListLocked(ctx)
	return nil
}

// Reorder applies a new slot ordering. The id list must be exactly the
// current slot set, once each.
func (s *Service) Reorder(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.slots.List(ctx)
	if err != nil {
		return fmt.Errorf("list slots: %w", err)
	}

	if len(ids) != len(current) {
		return ErrInvalidPermutation
	}
	existing := make(map[int64]bool, len(current))
	for _, sl := range current {
		existing[sl.ID] = true
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !existing[id] || seen[id] {
			return ErrInvalidPermutation
		}
		seen[id] = true
	}

	if err := s.slots.Reorder(ctx, ids); err != nil {
		return fmt.Errorf("reorder slots: %w", err)
	}
	s.log.Info().Int("count", len(ids)).Msg("slots reordered")

	s.broadcastListLocked(ctx)
	return nil
}

// DeleteAll wipes the schedule and resets the run-state. Refused while any
// slot is incomplete so a live run-sheet cannot be destroyed by accident.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incomplete, err := s.slots.CountIncomplete(ctx)
	if err != nil {
		return 0, fmt.Errorf("count incomplete slots: %w", err)
	}
	if incomplete > 0 {
		return 0, ErrIncompleteRemain
	}

	deleted, err := s.slots.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete all slots: %w", err)
	}

	s.state = State{}
	s.log.Info().Int64("deleted", deleted).Msg("schedule cleared")

	s.broadcastStateLocked(ctx)
	s.broadcastListLocked(ctx)
	return deleted, nil
}

// ListSlots returns the full slot list as views, ordered by position.
func (s *Service) ListSlots(ctx context.Context) ([]schedule.SlotView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listViewsLocked(ctx)
}

// validateInput checks a slot input and returns the trimmed name.
func (s *Service) validateInput(ctx context.Context, in SlotInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", ValidationError("slot name is required")
	}
	if utf8.RuneCountInString(name) > schedule.MaxNameLength {
		return "", ValidationError(fmt.Sprintf("slot name exceeds %d characters", schedule.MaxNameLength))
	}
	if in.PlannedMinutes <= 0 {
		return "", ValidationError("planned minutes must be a positive integer")
	}

	ids := []int64{in.Member1ID, in.Member2ID, in.Member3ID}
	if ids[0] == ids[1] || ids[0] == ids[2] || ids[1] == ids[2] {
		return "", ValidationError("responsible members must be three distinct members")
	}
	for _, id := range ids {
		m, err := s.members.Get(ctx, id)
		if errors.Is(err, roster.ErrNotFound) {
			return "", ValidationError(fmt.Sprintf("member %d does not exist", id))
		}
		if err != nil {
			return "", fmt.Errorf("resolve member %d: %w", id, err)
		}
		if !m.Active {
			return "", ValidationError(fmt.Sprintf("member %q is inactive", m.Name))
		}
	}

	return name, nil
}
