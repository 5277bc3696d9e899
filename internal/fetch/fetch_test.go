package fetch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"promptstats/internal/civitai"
	"promptstats/internal/stats"
)

func page(prompts ...string) *civitai.ImagePage {
	p := &civitai.ImagePage{}
	for _, raw := range prompts {
		p.Items = append(p.Items, civitai.ImageItem{Meta: &civitai.ImageMeta{Prompt: raw}})
	}
	return p
}

func TestPagesMergesAllPages(t *testing.T) {
	o := Orchestrator{Backoff: time.Millisecond}
	pos, neg := o.Pages(context.Background(), func(_ context.Context, n int) (*civitai.ImagePage, error) {
		return &civitai.ImagePage{Items: []civitai.ImageItem{
			{Meta: &civitai.ImageMeta{
				Prompt:         fmt.Sprintf("tag%d, shared", n),
				NegativePrompt: "lowres",
			}},
		}}, nil
	}, 3, 0)

	counts := map[string]int{}
	for _, tok := range pos {
		counts[tok]++
	}
	if counts["shared"] != 3 || counts["tag1"] != 1 || counts["tag2"] != 1 || counts["tag3"] != 1 {
		t.Fatalf("unexpected positive counts: %v", counts)
	}
	if len(neg) != 3 {
		t.Fatalf("negative tokens = %v, want 3 x lowres", neg)
	}
}

func TestPagesFailedPageContributesNothing(t *testing.T) {
	var mu sync.Mutex
	attempts := map[int]int{}

	o := Orchestrator{Backoff: time.Millisecond}
	pos, _ := o.Pages(context.Background(), func(_ context.Context, n int) (*civitai.ImagePage, error) {
		mu.Lock()
		attempts[n]++
		mu.Unlock()
		if n == 2 {
			return nil, fmt.Errorf("connection reset")
		}
		return page("ok"), nil
	}, 3, 2)

	if got := attempts[2]; got != 3 {
		t.Fatalf("failing page attempted %d times, want retries+1 = 3", got)
	}
	if len(pos) != 2 {
		t.Fatalf("positive tokens = %v, want tokens from 2 surviving pages", pos)
	}
}

func TestPagesPermanentErrorSkipsRetries(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	o := Orchestrator{Backoff: time.Millisecond}
	o.Pages(context.Background(), func(_ context.Context, _ int) (*civitai.ImagePage, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, &civitai.PermanentError{Err: fmt.Errorf("status 400")}
	}, 1, 5)
	if calls != 1 {
		t.Fatalf("permanent error retried: %d calls", calls)
	}
}

func TestPagesTransientRecovery(t *testing.T) {
	var mu sync.Mutex
	failures := 2
	o := Orchestrator{Backoff: time.Millisecond}
	pos, _ := o.Pages(context.Background(), func(_ context.Context, _ int) (*civitai.ImagePage, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, fmt.Errorf("timeout")
		}
		return page("recovered"), nil
	}, 1, 2)
	if len(pos) != 1 || pos[0] != "recovered" {
		t.Fatalf("expected recovery after transient failures, got %v", pos)
	}
}

func TestPagesCountsInvariantToArrivalOrder(t *testing.T) {
	fetcher := func(delays map[int]time.Duration) PageFetcher {
		return func(_ context.Context, n int) (*civitai.ImagePage, error) {
			time.Sleep(delays[n])
			return page(fmt.Sprintf("tag%d, shared", n)), nil
		}
	}

	o := Orchestrator{Backoff: time.Millisecond}
	toMap := func(tokens []string) map[string]int {
		m := map[string]int{}
		for _, e := range stats.Aggregate(tokens) {
			m[e.Token] = e.Count
		}
		return m
	}

	fast, _ := o.Pages(context.Background(), fetcher(map[int]time.Duration{}), 4, 0)
	slowFirst, _ := o.Pages(context.Background(), fetcher(map[int]time.Duration{1: 30 * time.Millisecond}), 4, 0)

	a, b := toMap(fast), toMap(slowFirst)
	if len(a) != len(b) {
		t.Fatalf("count maps differ: %v vs %v", a, b)
	}
	for k, v := range a {
		if b[k] != v {
			t.Fatalf("count for %q differs: %d vs %d", k, v, b[k])
		}
	}
}

func TestPagesEmitsEvents(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	o := Orchestrator{
		Backoff: time.Millisecond,
		OnEvent: func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	}
	o.Pages(context.Background(), func(_ context.Context, n int) (*civitai.ImagePage, error) {
		if n == 1 {
			return nil, fmt.Errorf("boom")
		}
		return page("x"), nil
	}, 2, 0)

	var sawFailed, sawPage bool
	for _, ev := range events {
		switch ev.Type {
		case "page_failed":
			sawFailed = true
		case "page":
			sawPage = true
		}
	}
	if !sawFailed || !sawPage {
		t.Fatalf("expected page and page_failed events, got %+v", events)
	}
}
