package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cueline/internal/core/schedule"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	var (
		mu     sync.Mutex
		states []StateUpdatedPayload
		lists  []ListUpdatedPayload
	)
	bus.SubscribeStateUpdated(func(p StateUpdatedPayload) {
		mu.Lock()
		states = append(states, p)
		mu.Unlock()
	})
	bus.SubscribeListUpdated(func(p ListUpdatedPayload) {
		mu.Lock()
		lists = append(lists, p)
		mu.Unlock()
	})

	bus.PublishStateUpdated(StateUpdatedPayload{State: schedule.StateSnapshot{IsRunning: true}})
	bus.PublishListUpdated(ListUpdatedPayload{Slots: []schedule.SlotView{{Name: "Opening"}}})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 1 && len(lists) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, states[0].State.IsRunning)
	assert.Equal(t, "Opening", lists[0].Slots[0].Name)
}

func TestEventBus_DropWhenFull(t *testing.T) {
	// No Run loop draining, so the buffer fills immediately.
	bus := New(1)

	var (
		mu      sync.Mutex
		dropped []Event
	)
	bus.OnDrop(func(ev Event, _ any) {
		mu.Lock()
		dropped = append(dropped, ev)
		mu.Unlock()
	})

	bus.PublishStateUpdated(StateUpdatedPayload{})
	bus.PublishStateUpdated(StateUpdatedPayload{})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dropped, 1)
	assert.Equal(t, EventStateUpdated, dropped[0])
}

func TestEventBus_PanicIsolation(t *testing.T) {
	bus := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	var (
		mu       sync.Mutex
		panics   int
		received int
	)
	bus.OnPanic(func(_ Event, _ any, _ any) {
		mu.Lock()
		panics++
		mu.Unlock()
	})

	bus.SubscribeStateUpdated(func(StateUpdatedPayload) {
		panic("broken subscriber")
	})
	bus.SubscribeStateUpdated(func(StateUpdatedPayload) {
		mu.Lock()
		received++
		mu.Unlock()
	})

	bus.PublishStateUpdated(StateUpdatedPayload{})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return panics == 1 && received == 1
	}, time.Second, 5*time.Millisecond)
}
