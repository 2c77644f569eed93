package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// threadEvents streams a thread's events over a websocket until the client
// disconnects or the thread is deleted.
func (s *Server) threadEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	events, cancel, err := s.threads.Subscribe(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "thread_id", id, "error", err)
		return
	}
	defer conn.Close()
	slog.Debug("event stream opened", "thread_id", id)

	// Reads only serve to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("event stream read error", "thread_id", id, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "thread deleted"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("event stream write failed", "thread_id", id, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			slog.Debug("event stream closed by client", "thread_id", id)
			return
		}
	}
}
