package server

import "net/http"

func newMux(d Deps) *http.ServeMux {
	h := &handlers{
		runsheet: d.Runsheet,
		members:  d.Members,
		metrics:  d.Metrics,
		log:      d.Log,
	}
	hub := newHub(d.Bus, d.Runsheet, d.Metrics, d.Log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)

	mux.HandleFunc("GET /api/schedule", h.listSlots)
	mux.HandleFunc("POST /api/schedule", h.createSlot)
	mux.HandleFunc("PUT /api/schedule/{id}", h.updateSlot)
	mux.HandleFunc("DELETE /api/schedule/{id}", h.deleteSlot)
	mux.HandleFunc("POST /api/schedule/reorder", h.reorder)
	mux.HandleFunc("POST /api/schedule/delete-all", h.deleteAll)

	mux.HandleFunc("GET /api/runstate", h.runState)
	mux.HandleFunc("POST /api/runstate/start", h.start)
	mux.HandleFunc("POST /api/runstate/pause", h.pause)
	mux.HandleFunc("POST /api/runstate/resume", h.resume)
	mux.HandleFunc("POST /api/runstate/skip", h.skip)

	mux.HandleFunc("GET /api/members", h.listMembers)
	mux.Handle("GET /api/stream", hub)

	if d.Webhook != nil {
		mux.Handle("POST /webhook/line", d.Webhook)
	}

	return mux
}
