package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/core/runsheet"
	"github.com/colonyops/cueline/internal/core/schedule"
	"github.com/colonyops/cueline/internal/metrics"
)

type handlers struct {
	runsheet *runsheet.Service
	members  roster.Store
	metrics  *metrics.Collector
	log      zerolog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps a domain error onto an HTTP status. Validation failures and
// state conflicts are the caller's fault; everything else is logged and
// hidden behind a generic 500.
func (h *handlers) fail(w http.ResponseWriter, err error) {
	var verr runsheet.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case runsheet.IsConflict(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, schedule.ErrNotFound), errors.Is(err, roster.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *handlers) transition(op string) {
	if h.metrics != nil {
		h.metrics.RecordTransition(op)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	views, err := h.runsheet.ListSlots(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handlers) createSlot(w http.ResponseWriter, r *http.Request) {
	var in runsheet.SlotInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slot, err := h.runsheet.CreateSlot(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (h *handlers) updateSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	var in runsheet.SlotInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slot, err := h.runsheet.UpdateSlot(r.Context(), id, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (h *handlers) deleteSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	if err := h.runsheet.DeleteSlot(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) reorder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.runsheet.Reorder(r.Context(), in.IDs); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.runsheet.DeleteAll(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *handlers) runState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.runsheet.Snapshot(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SlotID int64 `json:"slot_id"`
	}
	// Body is optional; without one the first incomplete slot starts.
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.runsheet.Start(r.Context(), in.SlotID); err != nil {
		h.fail(w, err)
		return
	}
	h.transition("start")
	h.runState(w, r)
}

func (h *handlers) pause(w http.ResponseWriter, r *http.Request) {
	if err := h.runsheet.Pause(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	h.transition("pause")
	h.runState(w, r)
}

func (h *handlers) resume(w http.ResponseWriter, r *http.Request) {
	if err := h.runsheet.Resume(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	h.transition("resume")
	h.runState(w, r)
}

func (h *handlers) skip(w http.ResponseWriter, r *http.Request) {
	if err := h.runsheet.Skip(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	h.transition("skip")
	h.runState(w, r)
}

func (h *handlers) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.ListActive(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}
