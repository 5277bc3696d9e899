package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"promptstats/internal/fetch"
)

// watchMsg is one websocket frame: a fetch progress event or a terminal
// complete/error message carrying the result.
type watchMsg struct {
	Type    string     `json:"type"`
	Page    int        `json:"page,omitempty"`
	Attempt int        `json:"attempt,omitempty"`
	Items   int        `json:"items,omitempty"`
	Error   string     `json:"error,omitempty"`
	Result  *runResult `json:"result,omitempty"`
}

// runResult is the terminal payload for both model kinds; the trigger
// fields stay empty for checkpoints.
type runResult struct {
	Kind           string `json:"kind"`
	FileName       string `json:"fileName"`
	Positive       string `json:"positive"`
	Negative       string `json:"negative"`
	LocalTriggers  string `json:"localTriggers,omitempty"`
	RemoteTriggers string `json:"remoteTriggers,omitempty"`
}

type run struct {
	id     string
	events chan watchMsg

	mu     sync.Mutex
	done   bool
	result *runResult
}

// notify forwards a fetch event to the watch stream. A slow or absent
// watcher never blocks the pipeline: full buffers drop events.
func (r *run) notify(ev fetch.Event) {
	msg := watchMsg{Type: ev.Type, Page: ev.Page, Attempt: ev.Attempt, Items: ev.Items, Error: ev.Error}
	select {
	case r.events <- msg:
	default:
	}
}

// complete records the result and closes the event stream.
func (r *run) complete(res *runResult) {
	r.mu.Lock()
	r.done = true
	r.result = res
	r.mu.Unlock()
	select {
	case r.events <- watchMsg{Type: "complete", Result: res}:
	default:
	}
	close(r.events)
}

func (r *run) status() (bool, *runResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done, r.result
}

type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*run
	seq  atomic.Int64
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: map[string]*run{}}
}

func (reg *runRegistry) create() *run {
	r := &run{
		id:     fmt.Sprintf("run-%d-%04d", time.Now().UnixMilli(), reg.seq.Add(1)),
		events: make(chan watchMsg, 128),
	}
	reg.mu.Lock()
	reg.runs[r.id] = r
	reg.mu.Unlock()
	return r
}

func (reg *runRegistry) get(id string) (*run, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.runs[id]
	return r, ok
}
