// Package eventbus provides a typed publish/subscribe event bus carrying
// run-sheet broadcasts from the coordinator to every attached observer
// surface (SSE hub, terminal viewer bridge, metrics).
package eventbus

import (
	"context"
	"sync"

	"github.com/colonyops/cueline/internal/core/schedule"
)

// Event identifies a broadcast type on the bus.
type Event string

// All event types, sorted A-Z.
const (
	EventListUpdated  Event = "list.updated"
	EventStateUpdated Event = "state.updated"
)

// StateUpdatedPayload is emitted whenever the run-state changes or the
// ticker advances the countdown.
type StateUpdatedPayload struct {
	State schedule.StateSnapshot
}

// ListUpdatedPayload is emitted whenever the slot list changes.
type ListUpdatedPayload struct {
	Slots []schedule.SlotView
}

type envelope struct {
	event   Event
	payload any
}

// EventBus decouples producers from subscribers with a buffered channel.
// Publishing never blocks: when the buffer is full the event is dropped and
// the OnDrop hooks fire. Subscribers run on the bus goroutine and are
// panic-isolated from each other.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu        sync.RWMutex
	stateSubs []func(StateUpdatedPayload)
	listSubs  []func(ListUpdatedPayload)
}

// New creates an event bus with the given buffer size.
func New(buffer int) *EventBus {
	return &EventBus{ch: make(chan envelope, buffer)}
}

// Run dispatches events until ctx is canceled. Call in its own goroutine.
func (bus *EventBus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

// PublishStateUpdated enqueues a state broadcast.
func (bus *EventBus) PublishStateUpdated(p StateUpdatedPayload) {
	bus.send(EventStateUpdated, p)
}

// PublishListUpdated enqueues a slot list broadcast.
func (bus *EventBus) PublishListUpdated(p ListUpdatedPayload) {
	bus.send(EventListUpdated, p)
}

// SubscribeStateUpdated registers a handler for state broadcasts.
func (bus *EventBus) SubscribeStateUpdated(fn func(StateUpdatedPayload)) {
	bus.mu.Lock()
	bus.stateSubs = append(bus.stateSubs, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventStateUpdated)
}

// SubscribeListUpdated registers a handler for slot list broadcasts.
func (bus *EventBus) SubscribeListUpdated(fn func(ListUpdatedPayload)) {
	bus.mu.Lock()
	bus.listSubs = append(bus.listSubs, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventListUpdated)
}

func (bus *EventBus) dispatch(env envelope) {
	switch env.event {
	case EventStateUpdated:
		p, ok := env.payload.(StateUpdatedPayload)
		if !ok {
			return
		}
		for _, fn := range bus.stateSubscribers() {
			bus.call(env, func() { fn(p) })
		}
	case EventListUpdated:
		p, ok := env.payload.(ListUpdatedPayload)
		if !ok {
			return
		}
		for _, fn := range bus.listSubscribers() {
			bus.call(env, func() { fn(p) })
		}
	}
}

// call invokes a subscriber, converting a panic into OnPanic hook calls so
// one broken subscriber cannot take down the dispatch loop.
func (bus *EventBus) call(env envelope, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			bus.runOnPanic(env.event, env.payload, r)
		}
	}()
	fn()
}

func (bus *EventBus) stateSubscribers() []func(StateUpdatedPayload) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	subs := make([]func(StateUpdatedPayload), len(bus.stateSubs))
	copy(subs, bus.stateSubs)
	return subs
}

func (bus *EventBus) listSubscribers() []func(ListUpdatedPayload) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	subs := make([]func(ListUpdatedPayload), len(bus.listSubs))
	copy(subs, bus.listSubs)
	return subs
}
