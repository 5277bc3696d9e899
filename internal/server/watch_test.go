package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWatchWSDeliversTerminalEvent(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(NewMux(h))
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"fileName": "base.safetensors", "maxPages": 1})
	resp, err := http.Post(srv.URL+"/api/prompt-stats", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post stats: %v", err)
	}
	var started struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode run id: %v", err)
	}
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/watch?run_id=" + started.RunID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial watch ws: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set deadline: %v", err)
		}
		var msg watchMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read ws message: %v", err)
		}
		if msg.Type == "complete" {
			if msg.Result == nil || msg.Result.FileName != "base.safetensors" {
				t.Fatalf("terminal result = %+v", msg.Result)
			}
			return
		}
	}
}

func TestWatchWSUnknownRun(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(NewMux(h))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/watch?run_id=nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial failure for unknown run")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
}
