package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"promptstats/internal/cachestore"
	"promptstats/internal/civitai"
	"promptstats/internal/hashing"
	"promptstats/internal/modelfs"
	"promptstats/internal/promptstats"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()

	modelDir := t.TempDir()
	content := []byte("checkpoint for the handler test")
	if err := os.WriteFile(filepath.Join(modelDir, "base.safetensors"), content, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/model-versions/by-hash/") {
			if strings.HasSuffix(r.URL.Path, digest) {
				_ = json.NewEncoder(w).Encode(map[string]any{"id": 5})
			} else {
				http.NotFound(w, r)
			}
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{
			{"meta": map[string]any{"prompt": "castle, castle, sky"}},
		}})
	}))
	t.Cleanup(api.Close)

	cacheDir := t.TempDir()
	memo, err := cachestore.NewHashMemo(cacheDir)
	if err != nil {
		t.Fatalf("memo: %v", err)
	}
	id, err := hashing.NewIdentifier(memo)
	if err != nil {
		t.Fatalf("identifier: %v", err)
	}
	results, err := cachestore.NewResultStore(cacheDir)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	triggers, err := cachestore.NewTriggerStore(cacheDir)
	if err != nil {
		t.Fatalf("triggers: %v", err)
	}
	svc, err := promptstats.New(promptstats.Options{
		Identifier: id,
		Client:     civitai.NewClient(api.URL),
		Results:    results,
		Triggers:   triggers,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	roots, err := modelfs.New(modelDir)
	if err != nil {
		t.Fatalf("roots: %v", err)
	}
	return NewHandler(svc, roots, roots), digest
}

func TestHandleModels(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(NewMux(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/models?kind=checkpoint")
	if err != nil {
		t.Fatalf("get models: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Models []string `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Models) != 1 || out.Models[0] != "base.safetensors" {
		t.Fatalf("models = %v", out.Models)
	}
}

func TestStatsRunLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(NewMux(h))
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{
		"fileName": "base.safetensors",
		"topN":     5,
		"maxPages": 1,
		"sort":     "Newest",
	})
	resp, err := http.Post(srv.URL+"/api/prompt-stats", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var started struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode run id: %v", err)
	}
	if started.RunID == "" {
		t.Fatalf("empty run id")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatalf("run never completed")
		}
		statusResp, err := http.Get(srv.URL + "/api/runs?run_id=" + started.RunID)
		if err != nil {
			t.Fatalf("get status: %v", err)
		}
		var status struct {
			Done   bool       `json:"done"`
			Result *runResult `json:"result"`
		}
		if err := json.NewDecoder(statusResp.Body).Decode(&status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		statusResp.Body.Close()
		if status.Done {
			if status.Result == nil || !strings.HasPrefix(status.Result.Positive, `0 : "castle" (2)`) {
				t.Fatalf("result = %+v", status.Result)
			}
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStatsRejectsUnknownFile(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(NewMux(h))
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"fileName": "missing.safetensors"})
	resp, err := http.Post(srv.URL+"/api/prompt-stats", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRunStatusUnknownRun(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(NewMux(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs?run_id=run-does-not-exist")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
