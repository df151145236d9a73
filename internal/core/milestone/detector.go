package milestone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/core/schedule"
)

// Target window for the five-minute warning. The ticker samples once per
// second, so the window is wider than one cadence to guarantee a hit; the
// record store keeps repeated hits from double-sending.
const (
	fiveMinTarget    = 300.0
	fiveMinTolerance = 3.0
)

// Notifier delivers chat messages. Implementations never return an error:
// delivery is best-effort and reported as per-recipient counts.
type Notifier interface {
	SendBulk(ctx context.Context, userIDs []string, text string) (sent, failed int)
}

// NopNotifier silently accepts everything. Used when no chat channel is
// configured.
type NopNotifier struct{}

// SendBulk reports every message as sent without delivering anything.
func (NopNotifier) SendBulk(_ context.Context, userIDs []string, _ string) (int, int) {
	return len(userIDs), 0
}

// Facts is the run-state evidence the coordinator hands the detector on
// every tick and at transition points. The detector never reads run-state
// directly; the caller snapshots it under its own lock.
type Facts struct {
	Running          bool
	Paused           bool
	Started          bool
	ActiveSlotOrder  int
	RemainingSeconds float64
	TotalSlots       int64
	IncompleteSlots  int64
	DriftSeconds     int
}

// Detector evaluates milestone conditions and performs the
// check + record + dispatch sequence for each, at most once per milestone.
type Detector struct {
	slots    schedule.Store
	members  roster.Store
	records  Store
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger
}

// NewDetector creates a detector. The notifier send itself runs off the
// caller's critical path; record reads and writes run inline.
func NewDetector(slots schedule.Store, members roster.Store, records Store, notifier Notifier, now func() time.Time, log zerolog.Logger) *Detector {
	return &Detector{
		slots:    slots,
		members:  members,
		records:  records,
		notifier: notifier,
		now:      now,
		log:      log,
	}
}

// Check runs all milestone checks against the given facts. Failures are
// logged, never returned: one bad check must not break a tick or a
// transition.
func (d *Detector) Check(ctx context.Context, f Facts) {
	if err := d.checkFiveMin(ctx, f); err != nil {
		d.log.Error().Err(err).Msg("five-minute warning check failed")
	}
	if err := d.checkStarted(ctx, f); err != nil {
		d.log.Error().Err(err).Msg("schedule-started check failed")
	}
	if err := d.checkFinished(ctx, f); err != nil {
		d.log.Error().Err(err).Msg("schedule-finished check failed")
	}
}

// checkFiveMin warns the next slot's responsible members when the active
// slot's remaining time enters the five-minute window.
func (d *Detector) checkFiveMin(ctx context.Context, f Facts) error {
	if !f.Running || f.Paused || f.ActiveSlotOrder == 0 {
		return nil
	}
	if f.RemainingSeconds < fiveMinTarget-fiveMinTolerance || f.RemainingSeconds > fiveMinTarget+fiveMinTolerance {
		return nil
	}

	next, err := d.slots.NextPending(ctx, f.ActiveSlotOrder)
	if errors.Is(err, schedule.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find next slot: %w", err)
	}

	exists, err := d.records.Exists(ctx, next.ID, KindFiveMinWarning)
	if err != nil {
		return fmt.Errorf("check record: %w", err)
	}
	if exists {
		return nil
	}

	var names, userIDs []string
	for _, id := range next.MemberIDs() {
		m, err := d.members.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("resolve member %d: %w", id, err)
		}
		names = append(names, m.Name)
		if m.Linked() {
			userIDs = append(userIDs, m.LineUserID)
		}
	}

	if len(userIDs) == 0 {
		d.log.Warn().Str("slot", next.Name).Msg("no linked members for five-minute warning")
		return nil
	}

	text := fmt.Sprintf(
		"[cueline]\nUp next: %q.\nYour slot starts in about 5 minutes.\n\nResponsible: %s",
		next.Name, strings.Join(names, ", "),
	)

	return d.record(ctx, Record{SlotID: next.ID, Kind: KindFiveMinWarning, Recipients: userIDs, Message: text})
}

// checkStarted fires once, the first time the schedule is observed running.
func (d *Detector) checkStarted(ctx context.Context, f Facts) error {
	if !f.Running || !f.Started {
		return nil
	}

	exists, err := d.records.Exists(ctx, 0, KindScheduleStarted)
	if err != nil {
		return fmt.Errorf("check record: %w", err)
	}
	if exists {
		return nil
	}

	userIDs, err := d.linkedAddresses(ctx)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		d.log.Warn().Msg("no linked members for schedule-started notification")
		return nil
	}

	text := "[cueline]\nThe rehearsal has started!\nGood luck everyone."

	return d.record(ctx, Record{SlotID: 0, Kind: KindScheduleStarted, Recipients: userIDs, Message: text})
}

// checkFinished fires once, when every slot is completed.
func (d *Detector) checkFinished(ctx context.Context, f Facts) error {
	if f.TotalSlots == 0 || f.IncompleteSlots > 0 {
		return nil
	}

	exists, err := d.records.Exists(ctx, 0, KindScheduleFinished)
	if err != nil {
		return fmt.Errorf("check record: %w", err)
	}
	if exists {
		return nil
	}

	userIDs, err := d.linkedAddresses(ctx)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		d.log.Warn().Msg("no linked members for schedule-finished notification")
		return nil
	}

	text := fmt.Sprintf(
		"[cueline]\nThe rehearsal is finished. Great work!\nOverall pacing: %s",
		schedule.FormatDeltaStatus(f.DriftSeconds),
	)

	return d.record(ctx, Record{SlotID: 0, Kind: KindScheduleFinished, Recipients: userIDs, Message: text})
}

// record persists the milestone record, then dispatches the send in its own
// goroutine so a slow chat channel never blocks the tick cadence. The
// record is written regardless of delivery outcome: at-most-once intent.
func (d *Detector) record(ctx context.Context, rec Record) error {
	rec.SentAt = d.now()

	err := d.records.Create(ctx, rec)
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with another trigger point; the send already happened.
		return nil
	}
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}

	go func() {
		sent, failed := d.notifier.SendBulk(context.Background(), rec.Recipients, rec.Message)
		d.log.Info().
			Str("kind", string(rec.Kind)).
			Int64("slot_id", rec.SlotID).
			Int("sent", sent).
			Int("failed", failed).
			Msg("milestone notification dispatched")
	}()

	return nil
}

func (d *Detector) linkedAddresses(ctx context.Context) ([]string, error) {
	members, err := d.members.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	var userIDs []string
	for _, m := range members {
		if m.Linked() {
			userIDs = append(userIDs, m.LineUserID)
		}
	}
	return userIDs, nil
}
