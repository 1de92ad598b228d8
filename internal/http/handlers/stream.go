package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// JobEvents is the SSE progress stream. The current snapshot is pushed
// immediately so a client that connects mid-run (or after completion) sees
// accurate state without waiting for the next transition; every subsequent
// publish is forwarded until the job leaves the running state or the client
// disconnects. The subscription is always released on exit.
func (a *App) JobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Store.Get(jobID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Subscribe before reading the snapshot: a terminal transition landing
	// between the two would otherwise never reach this stream and the client
	// would hang on a running snapshot.
	ch, cancel := a.Broker.Subscribe(jobID)
	defer cancel()

	job, err := a.Store.Get(jobID)
	if err != nil {
		return
	}
	if err := writeSSEEvent(w, "job", job); err != nil {
		return
	}
	flusher.Flush()
	if job.Status.Terminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-ch:
			if !open {
				return
			}
			if err := writeSSEEvent(w, "job", snap); err != nil {
				return
			}
			flusher.Flush()
			if snap.Status.Terminal() {
				return
			}
		}
	}
}

func writeSSEEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
