package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"promptstats/internal/modelfs"
	"promptstats/internal/promptstats"
)

// Handler serves the HTTP API. One pipeline service is shared by both model
// kinds; the kinds differ only in their model roots and the trigger step.
type Handler struct {
	svc         *promptstats.Service
	checkpoints *modelfs.Roots
	loras       *modelfs.Roots
	runs        *runRegistry
}

func NewHandler(svc *promptstats.Service, checkpoints, loras *modelfs.Roots) *Handler {
	return &Handler{
		svc:         svc,
		checkpoints: checkpoints,
		loras:       loras,
		runs:        newRunRegistry(),
	}
}

func (h *Handler) rootsFor(kind string) *modelfs.Roots {
	if strings.EqualFold(strings.TrimSpace(kind), "lora") {
		return h.loras
	}
	return h.checkpoints
}

// HandleModels lists selectable model files for a kind.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	roots := h.rootsFor(r.URL.Query().Get("kind"))
	if roots == nil {
		http.Error(w, "model directories not configured", http.StatusServiceUnavailable)
		return
	}
	names, err := roots.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"models": names})
}

type statsRequest struct {
	Kind         string `json:"kind"` // "checkpoint" (default) or "lora"
	FileName     string `json:"fileName"`
	TopN         int    `json:"topN"`
	MaxPages     int    `json:"maxPages"`
	Sort         string `json:"sort"`
	TimeoutSecs  int    `json:"timeoutSeconds"`
	MaxRetries   int    `json:"maxRetries"`
	ForceRefresh bool   `json:"forceRefresh"`
}

// HandleStats starts a pipeline run and returns its id immediately; progress
// and the result arrive on the watch socket or the status endpoint.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req statsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileName == "" {
		http.Error(w, "fileName is required", http.StatusBadRequest)
		return
	}
	roots := h.rootsFor(req.Kind)
	if roots == nil {
		http.Error(w, "model directories not configured", http.StatusServiceUnavailable)
		return
	}
	path, err := roots.Resolve(req.FileName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	rn := h.runs.create()
	params := promptstats.Params{
		FileName:     req.FileName,
		TopN:         req.TopN,
		MaxPages:     req.MaxPages,
		Sort:         req.Sort,
		TimeoutSecs:  req.TimeoutSecs,
		MaxRetries:   req.MaxRetries,
		ForceRefresh: req.ForceRefresh,
		Notify:       rn.notify,
	}

	isLoRA := strings.EqualFold(strings.TrimSpace(req.Kind), "lora")
	go func() {
		// The run outlives the submitting request.
		ctx := context.Background()
		started := time.Now()
		res := &runResult{Kind: req.Kind, FileName: req.FileName}
		if res.Kind == "" {
			res.Kind = "checkpoint"
		}
		if isLoRA {
			rep := h.svc.ExecuteLoRA(ctx, path, params)
			res.Positive, res.Negative = rep.Positive, rep.Negative
			res.LocalTriggers, res.RemoteTriggers = rep.LocalTriggers, rep.RemoteTriggers
		} else {
			rep := h.svc.Execute(ctx, path, params)
			res.Positive, res.Negative = rep.Positive, rep.Negative
		}
		log.Printf("server: run %s finished in %s", rn.id, time.Since(started).Round(time.Millisecond))
		rn.complete(res)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"runId": rn.id}); err != nil {
		log.Printf("server: write response: %v", err)
	}
}

// HandleRunStatus reports whether a run finished and, if so, its result.
func (h *Handler) HandleRunStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
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
	done, result := rn.status()
	out := map[string]any{"runId": runID, "done": done}
	if done {
		out["result"] = result
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}
