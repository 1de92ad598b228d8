package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The tool runs on trusted internal networks; origins are not
		// restricted here but CORS still applies to the REST surface.
		return true
	},
}

// JobSocket serves the progress stream over a websocket: same contract as the
// SSE endpoint, one JSON job snapshot per message.
func (a *App) JobSocket(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Store.Get(jobID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("handlers: websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads are only used to observe the peer closing the socket.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Subscribe before reading the snapshot: a terminal transition landing
	// between the two would otherwise never reach this socket and the client
	// would hang on a running snapshot.
	ch, cancel := a.Broker.Subscribe(jobID)
	defer cancel()

	job, err := a.Store.Get(jobID)
	if err != nil {
		return
	}
	if err := conn.WriteJSON(job); err != nil {
		return
	}
	if job.Status.Terminal() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return
	}

	for {
		select {
		case <-disconnected:
			return
		case <-r.Context().Done():
			return
		case snap, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
			if snap.Status.Terminal() {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}
