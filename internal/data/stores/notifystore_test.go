package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cueline/internal/core/milestone"
)

func TestNotifyStore_CreateDedup(t *testing.T) {
	database := newTestDB(t)
	store := NewNotifyStore(database)
	ctx := context.Background()

	rec := milestone.Record{
		SlotID:     7,
		Kind:       milestone.KindFiveMinWarning,
		Recipients: []string{"U1", "U2"},
		Message:    "up next",
		SentAt:     time.Now(),
	}
	require.NoError(t, store.Create(ctx, rec))

	// Same slot and kind: the unique index rejects a second record.
	require.ErrorIs(t, store.Create(ctx, rec), milestone.ErrDuplicate)

	// Different kind on the same slot is a separate milestone.
	rec.Kind = milestone.KindScheduleStarted
	rec.SlotID = 0
	require.NoError(t, store.Create(ctx, rec))

	exists, err := store.Exists(ctx, 7, milestone.KindFiveMinWarning)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, 8, milestone.KindFiveMinWarning)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNotifyStore_ListClear(t *testing.T) {
	database := newTestDB(t)
	store := NewNotifyStore(database)
	ctx := context.Background()

	first := milestone.Record{
		SlotID:     1,
		Kind:       milestone.KindFiveMinWarning,
		Recipients: []string{"U1"},
		Message:    "first",
		SentAt:     time.Date(2026, 3, 7, 18, 0, 0, 0, time.UTC),
	}
	second := milestone.Record{
		SlotID:     0,
		Kind:       milestone.KindScheduleFinished,
		Recipients: []string{"U1", "U2"},
		Message:    "second",
		SentAt:     time.Date(2026, 3, 7, 19, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].Message)
	assert.Equal(t, []string{"U1", "U2"}, records[0].Recipients)
	assert.Equal(t, "first", records[1].Message)

	require.NoError(t, store.Clear(ctx))
	records, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
