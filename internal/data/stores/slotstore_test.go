package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cueline/internal/core/milestone"
	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/core/schedule"
	"github.com/colonyops/cueline/internal/data/db"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func seedMembers(t *testing.T, database *db.DB, n int) []roster.Member {
	t.Helper()
	store := NewMemberStore(database)
	members := make([]roster.Member, 0, n)
	for i := 0; i < n; i++ {
		m, err := store.Create(context.Background(), roster.Member{
			Name:      string(rune('A' + i)),
			Active:    true,
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
		members = append(members, m)
	}
	return members
}

func seedSlot(t *testing.T, store *SlotStore, members []roster.Member, name string, order int) schedule.Slot {
	t.Helper()
	slot, err := store.Create(context.Background(), schedule.Slot{
		Name:           name,
		PlannedMinutes: 10,
		Member1ID:      members[0].ID,
		Member2ID:      members[1].ID,
		Member3ID:      members[2].ID,
		Order:          order,
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)
	return slot
}

func TestSlotStore_CreateGet(t *testing.T) {
	database := newTestDB(t)
	members := seedMembers(t, database, 3)
	store := NewSlotStore(database)
	ctx := context.Background()

	slot := seedSlot(t, store, members, "Opening", 1)
	require.NotZero(t, slot.ID)

	got, err := store.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, "Opening", got.Name)
	assert.Equal(t, 10, got.PlannedMinutes)
	assert.Equal(t, 1, got.Order)
	assert.Nil(t, got.ActualSeconds)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.IsCompleted())

	_, err = store.Get(ctx, 9999)
	require.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestSlotStore_Delete_CompactsOrder(t *testing.T) {
	database := newTestDB(t)
	members := seedMembers(t, database, 3)
	store := NewSlotStore(database)
	ctx := context.Background()

	a := seedSlot(t, store, members, "A", 1)
	b := seedSlot(t, store, members, "B", 2)
	c := seedSlot(t, store, members, "C", 3)

	require.NoError(t, store.Delete(ctx, b.ID))
	require.ErrorIs(t, store.Delete(ctx, b.ID), schedule.ErrNotFound)

	slots, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, a.ID, slots[0].ID)
	assert.Equal(t, 1, slots[0].Order)
	assert.Equal(t, c.ID, slots[1].ID)
	assert.Equal(t, 2, slots[1].Order)
}

func TestSlotStore_Reorder(t *testing.T) {
	database := newTestDB(t)
	members := seedMembers(t, database, 3)
	store := NewSlotStore(database)
	ctx := context.Background()

	a := seedSlot(t, store, members, "A", 1)
	b := seedSlot(t, store, members, "B", 2)
	c := seedSlot(t, store, members, "C", 3)

	require.NoError(t, store.Reorder(ctx, []int64{b.ID, c.ID, a.ID}))

	slots, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, []int64{b.ID, c.ID, a.ID}, []int64{slots[0].ID, slots[1].ID, slots[2].ID})
}

func TestSlotStore_NextPending(t *testing.T) {
	database := newTestDB(t)
	members := seedMembers(t, database, 3)
	store := NewSlotStore(database)
	ctx := context.Background()

	a := seedSlot(t, store, members, "A", 1)
	b := seedSlot(t, store, members, "B", 2)
	c := seedSlot(t, store, members, "C", 3)

	next, err := store.NextPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, a.ID, next.ID)

	require.NoError(t, store.MarkCompleted(ctx, b.ID, 500, time.Now()))

	// Completed slots are skipped even when ordered next.
	next, err = store.NextPending(ctx, a.Order)
	require.NoError(t, err)
	assert.Equal(t, c.ID, next.ID)

	_, err = store.NextPending(ctx, c.Order)
	require.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestSlotStore_MarkCompleted(t *testing.T) {
	database := newTestDB(t)
	members := seedMembers(t, database, 3)
	store := NewSlotStore(database)
	ctx := context.Background()

	slot := seedSlot(t, store, members, "A", 1)
	at := time.Date(2026, 3, 7, 19, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkCompleted(ctx, slot.ID, 660, at))

	got, err := store.Get(ctx, slot.ID)
	require.NoError(t, err)
	require.True(t, got.IsCompleted())
	require.NotNil(t, got.ActualSeconds)
	assert.Equal(t, 660, *got.ActualSeconds)
	assert.Equal(t, 60, got.Drift())
	assert.True(t, got.CompletedAt.Equal(at))

	require.ErrorIs(t, store.MarkCompleted(ctx, 9999, 1, at), schedule.ErrNotFound)
}

func TestSlotStore_DeleteAll_PurgesNotifications(t *testing.T) {
	database := newTestDB(t)
	members := seedMembers(t, database, 3)
	store := NewSlotStore(database)
	notify := NewNotifyStore(database)
	ctx := context.Background()

	slot := seedSlot(t, store, members, "A", 1)
	seedSlot(t, store, members, "B", 2)
	require.NoError(t, notify.Create(ctx, milestone.Record{
		SlotID:     slot.ID,
		Kind:       milestone.KindFiveMinWarning,
		Recipients: []string{"U1"},
		Message:    "warning",
		SentAt:     time.Now(),
	}))

	deleted, err := store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	records, err := notify.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSlotStore_Counts(t *testing.T) {
	database := newTestDB(t)
	members := seedMembers(t, database, 3)
	store := NewSlotStore(database)
	ctx := context.Background()

	max, err := store.MaxOrder(ctx)
	require.NoError(t, err)
	assert.Zero(t, max)

	seedSlot(t, store, members, "A", 1)
	b := seedSlot(t, store, members, "B", 2)
	require.NoError(t, store.MarkCompleted(ctx, b.ID, 600, time.Now()))

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	incomplete, err := store.CountIncomplete(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, incomplete)

	max, err = store.MaxOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, max)
}
