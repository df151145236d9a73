package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cueline/internal/core/roster"
)

func TestMemberStore_CreateGet(t *testing.T) {
	database := newTestDB(t)
	store := NewMemberStore(database)
	ctx := context.Background()

	m, err := store.Create(ctx, roster.Member{Name: "Aoi", Active: true, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NotZero(t, m.ID)

	got, err := store.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aoi", got.Name)
	assert.True(t, got.Active)
	assert.False(t, got.Linked())

	_, err = store.Get(ctx, 9999)
	require.ErrorIs(t, err, roster.ErrNotFound)

	_, err = store.Create(ctx, roster.Member{Name: "Aoi", Active: true, CreatedAt: time.Now()})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestMemberStore_GetByName(t *testing.T) {
	database := newTestDB(t)
	store := NewMemberStore(database)
	ctx := context.Background()

	m, err := store.Create(ctx, roster.Member{Name: "Hana", Active: true, CreatedAt: time.Now()})
	require.NoError(t, err)

	got, err := store.GetByName(ctx, "Hana")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	// Name matching is exact.
	_, err = store.GetByName(ctx, "hana")
	require.ErrorIs(t, err, roster.ErrNotFound)
}

func TestMemberStore_LinkCycle(t *testing.T) {
	database := newTestDB(t)
	store := NewMemberStore(database)
	ctx := context.Background()

	m, err := store.Create(ctx, roster.Member{Name: "Rin", Active: true, CreatedAt: time.Now()})
	require.NoError(t, err)

	_, err = store.GetByLineUserID(ctx, "U123")
	require.ErrorIs(t, err, roster.ErrNotFound)

	require.NoError(t, store.SetLineUserID(ctx, m.ID, "U123"))

	got, err := store.GetByLineUserID(ctx, "U123")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.True(t, got.Linked())

	require.NoError(t, store.SetLineUserID(ctx, m.ID, ""))
	_, err = store.GetByLineUserID(ctx, "U123")
	require.ErrorIs(t, err, roster.ErrNotFound)
}

func TestMemberStore_ListActive(t *testing.T) {
	database := newTestDB(t)
	store := NewMemberStore(database)
	ctx := context.Background()

	_, err := store.Create(ctx, roster.Member{Name: "Beta", Active: true, CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = store.Create(ctx, roster.Member{Name: "Alpha", Active: true, CreatedAt: time.Now()})
	require.NoError(t, err)
	inactive, err := store.Create(ctx, roster.Member{Name: "Gone", Active: false, CreatedAt: time.Now()})
	require.NoError(t, err)

	members, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Alpha", members[0].Name)
	assert.Equal(t, "Beta", members[1].Name)

	_, err = store.GetByName(ctx, inactive.Name)
	require.ErrorIs(t, err, roster.ErrNotFound)
}
