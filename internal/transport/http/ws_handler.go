package http

import (
	"log"
	"net/http"

	"quiz-attempt-service/internal/app"

	"github.com/gorilla/websocket"
)

// WSHandler streams attempt-progress snapshots to clients over websockets,
// so quiz UIs can render the running score without polling.
type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and forwards progress updates until the
// client disconnects. The feed is read-only; submissions still go through
// the HTTP endpoint.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	attemptID := r.URL.Query().Get("attemptId")
	userID := r.Header.Get("X-User-ID")
	if attemptID == "" || userID == "" {
		http.Error(w, "missing attemptId or X-User-ID", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.service.SubscribeProgress(r.Context(), attemptID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine only to detect disconnects; inbound frames are ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
