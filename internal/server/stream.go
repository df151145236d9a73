package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/cueline/internal/core/eventbus"
	"github.com/colonyops/cueline/internal/core/runsheet"
	"github.com/colonyops/cueline/internal/metrics"
)

const (
	observerBuffer    = 16
	keepaliveInterval = 30 * time.Second
)

// frame is one server-sent event as observers decode it.
type frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// hub fans bus events out to connected SSE observers. Each observer has a
// small private buffer; an observer that cannot keep up loses frames rather
// than stalling the rest.
type hub struct {
	svc     *runsheet.Service
	metrics *metrics.Collector
	log     zerolog.Logger

	mu        sync.Mutex
	observers map[string]chan frame
}

func newHub(bus *eventbus.EventBus, svc *runsheet.Service, collector *metrics.Collector, log zerolog.Logger) *hub {
	h := &hub{
		svc:       svc,
		metrics:   collector,
		log:       log,
		observers: make(map[string]chan frame),
	}

	bus.SubscribeStateUpdated(func(p eventbus.StateUpdatedPayload) {
		h.broadcast(frame{Type: "state-updated", Data: p.State})
	})
	bus.SubscribeListUpdated(func(p eventbus.ListUpdatedPayload) {
		h.broadcast(frame{Type: "list-updated", Data: p.Slots})
	})

	return h
}

func (h *hub) broadcast(f frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.observers {
		select {
		case ch <- f:
		default:
			h.log.Debug().Str("observer", id).Str("type", f.Type).Msg("observer buffer full, frame dropped")
		}
	}
}

func (h *hub) attach() (string, chan frame) {
	id := uuid.NewString()
	ch := make(chan frame, observerBuffer)
	h.mu.Lock()
	h.observers[id] = ch
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ObserverConnected(1)
	}
	return id, ch
}

func (h *hub) detach(id string) {
	h.mu.Lock()
	delete(h.observers, id)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ObserverConnected(-1)
	}
}

func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := h.attach()
	defer h.detach(id)
	h.log.Debug().Str("observer", id).Msg("observer attached")

	// New observers get the current state and list before any live frames,
	// so they never render from nothing.
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("snapshot for new observer")
		return
	}
	slots, err := h.svc.ListSlots(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("slot list for new observer")
		return
	}
	if err := writeFrame(w, flusher, frame{Type: "state-updated", Data: snap}); err != nil {
		return
	}
	if err := writeFrame(w, flusher, frame{Type: "list-updated", Data: slots}); err != nil {
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug().Str("observer", id).Msg("observer detached")
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case f := <-ch:
			if err := writeFrame(w, flusher, f); err != nil {
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
