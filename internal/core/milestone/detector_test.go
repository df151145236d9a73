package milestone_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cueline/internal/core/milestone"
	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/core/schedule"
	"github.com/colonyops/cueline/internal/data/db"
	"github.com/colonyops/cueline/internal/data/stores"
)

type captureNotifier struct {
	mu    sync.Mutex
	calls [][]string
}

func (n *captureNotifier) SendBulk(_ context.Context, userIDs []string, _ string) (int, int) {
	n.mu.Lock()
	n.calls = append(n.calls, userIDs)
	n.mu.Unlock()
	return len(userIDs), 0
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type detectorEnv struct {
	detector *milestone.Detector
	notifier *captureNotifier
	slots    *stores.SlotStore
	members  *stores.MemberStore
	records  *stores.NotifyStore
	roster   []roster.Member
}

func newDetectorEnv(t *testing.T, linked bool) *detectorEnv {
	t.Helper()

	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	slotStore := stores.NewSlotStore(database)
	memberStore := stores.NewMemberStore(database)
	notifyStore := stores.NewNotifyStore(database)
	notifier := &captureNotifier{}

	ctx := context.Background()
	var members []roster.Member
	for i := 1; i <= 3; i++ {
		m, err := memberStore.Create(ctx, roster.Member{
			Name:      fmt.Sprintf("member%d", i),
			Active:    true,
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
		if linked {
			require.NoError(t, memberStore.SetLineUserID(ctx, m.ID, fmt.Sprintf("U%d", i)))
		}
		members = append(members, m)
	}

	detector := milestone.NewDetector(slotStore, memberStore, notifyStore, notifier, time.Now, zerolog.Nop())

	return &detectorEnv{
		detector: detector,
		notifier: notifier,
		slots:    slotStore,
		members:  memberStore,
		records:  notifyStore,
		roster:   members,
	}
}

func (env *detectorEnv) addSlot(t *testing.T, name string, order int) schedule.Slot {
	t.Helper()
	slot, err := env.slots.Create(context.Background(), schedule.Slot{
		Name:           name,
		PlannedMinutes: 10,
		Member1ID:      env.roster[0].ID,
		Member2ID:      env.roster[1].ID,
		Member3ID:      env.roster[2].ID,
		Order:          order,
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)
	return slot
}

func runningFacts(remaining float64) milestone.Facts {
	return milestone.Facts{
		Running:          true,
		Started:          true,
		ActiveSlotOrder:  1,
		RemainingSeconds: remaining,
		TotalSlots:       2,
		IncompleteSlots:  2,
	}
}

func TestDetector_FiveMinWindow(t *testing.T) {
	tests := []struct {
		name      string
		remaining float64
		want      bool
	}{
		{name: "below window", remaining: 296.9, want: false},
		{name: "window floor", remaining: 297, want: true},
		{name: "center", remaining: 300, want: true},
		{name: "window ceiling", remaining: 303, want: true},
		{name: "above window", remaining: 303.1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newDetectorEnv(t, true)
			env.addSlot(t, "Opening", 1)
			next := env.addSlot(t, "Act One", 2)

			env.detector.Check(context.Background(), runningFacts(tt.remaining))

			exists, err := env.records.Exists(context.Background(), next.ID, milestone.KindFiveMinWarning)
			require.NoError(t, err)
			assert.Equal(t, tt.want, exists)
		})
	}
}

func TestDetector_FiveMin_SkipsWhilePaused(t *testing.T) {
	env := newDetectorEnv(t, true)
	env.addSlot(t, "Opening", 1)
	next := env.addSlot(t, "Act One", 2)

	facts := runningFacts(300)
	facts.Paused = true
	env.detector.Check(context.Background(), facts)

	exists, err := env.records.Exists(context.Background(), next.ID, milestone.KindFiveMinWarning)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDetector_FiveMin_NoNextSlot(t *testing.T) {
	env := newDetectorEnv(t, true)
	env.addSlot(t, "Opening", 1)

	facts := runningFacts(300)
	facts.TotalSlots = 1
	facts.IncompleteSlots = 1
	env.detector.Check(context.Background(), facts)

	records, err := env.records.List(context.Background())
	require.NoError(t, err)
	for _, rec := range records {
		assert.NotEqual(t, milestone.KindFiveMinWarning, rec.Kind)
	}
}

func TestDetector_FiveMin_NoLinkedRecipients(t *testing.T) {
	env := newDetectorEnv(t, false)
	env.addSlot(t, "Opening", 1)
	next := env.addSlot(t, "Act One", 2)

	env.detector.Check(context.Background(), runningFacts(300))

	// Without a reachable recipient nothing is recorded, and nothing is sent.
	exists, err := env.records.Exists(context.Background(), next.ID, milestone.KindFiveMinWarning)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Zero(t, env.notifier.count())
}

func TestDetector_ScheduleStarted_Once(t *testing.T) {
	env := newDetectorEnv(t, true)
	env.addSlot(t, "Opening", 1)

	facts := milestone.Facts{Running: true, Started: true, TotalSlots: 1, IncompleteSlots: 1}
	env.detector.Check(context.Background(), facts)
	env.detector.Check(context.Background(), facts)

	records, err := env.records.List(context.Background())
	require.NoError(t, err)

	started := 0
	for _, rec := range records {
		if rec.Kind == milestone.KindScheduleStarted {
			started++
			assert.Zero(t, rec.SlotID)
			assert.Len(t, rec.Recipients, 3)
		}
	}
	assert.Equal(t, 1, started)

	require.Eventually(t, func() bool {
		return env.notifier.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDetector_ScheduleFinished(t *testing.T) {
	env := newDetectorEnv(t, true)
	slot := env.addSlot(t, "Opening", 1)
	require.NoError(t, env.slots.MarkCompleted(context.Background(), slot.ID, 660, time.Now()))

	facts := milestone.Facts{TotalSlots: 1, IncompleteSlots: 0, DriftSeconds: 60}
	env.detector.Check(context.Background(), facts)

	exists, err := env.records.Exists(context.Background(), 0, milestone.KindScheduleFinished)
	require.NoError(t, err)
	assert.True(t, exists)

	records, err := env.records.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Message, "+1:00 running late")
}

func TestDetector_Finished_NotWithEmptySchedule(t *testing.T) {
	env := newDetectorEnv(t, true)

	env.detector.Check(context.Background(), milestone.Facts{TotalSlots: 0, IncompleteSlots: 0})

	exists, err := env.records.Exists(context.Background(), 0, milestone.KindScheduleFinished)
	require.NoError(t, err)
	assert.False(t, exists)
}
