package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	watchWSWriteWait = 10 * time.Second
	watchWSPongWait  = 60 * time.Second
	watchWSPingEvery = (watchWSPongWait * 9) / 10
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWatchWS streams a run's progress events until the terminal message.
func (h *Handler) HandleWatchWS(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}
	rn, ok := h.runs.get(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := watchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(watchWSPongWait)); err != nil {
		log.Printf("server: watch ws set read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchWSPongWait))
	})

	// Drain control frames so pongs are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(watchWSPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-rn.events:
			if !open {
				// Run ended; a late subscriber still gets the result.
				if done, result := rn.status(); done {
					_ = conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait))
					_ = conn.WriteJSON(watchMsg{Type: "complete", Result: result})
				}
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			if msg.Type == "complete" {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
