// Package fetch runs the bounded-concurrency page fetch and merges the
// per-page prompt token streams.
package fetch

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"promptstats/internal/civitai"
	"promptstats/internal/tokenizer"
)

const (
	defaultMaxWorkers = 10
	defaultBackoff    = 200 * time.Millisecond
)

// PageFetcher returns one page of image records. The implementation is
// expected to bound each attempt with its own timeout.
type PageFetcher func(ctx context.Context, page int) (*civitai.ImagePage, error)

// Event reports fetch progress to an optional observer.
type Event struct {
	Type    string `json:"type"` // "page", "retry", "page_failed"
	Page    int    `json:"page"`
	Attempt int    `json:"attempt,omitempty"`
	Items   int    `json:"items,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Orchestrator schedules page fetches over a fixed worker pool. Failed pages
// degrade to zero items; the overall fetch never fails because of one page.
type Orchestrator struct {
	MaxWorkers int           // pool cap, default 10
	Backoff    time.Duration // fixed delay between retry attempts, default 200ms
	OnEvent    func(Event)   // optional progress hook, called from worker goroutines
}

// Pages fetches pages 1..pageCount concurrently and returns the merged
// positive and negative token streams. Each page is attempted up to
// maxRetries+1 times on transient errors with a fixed backoff; permanent or
// unexpected errors drop the page immediately. Page arrival order only
// affects the order of the merged streams, never the counts.
func (o Orchestrator) Pages(ctx context.Context, fetchPage PageFetcher, pageCount, maxRetries int) (pos, neg []string) {
	if pageCount < 1 {
		return nil, nil
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	workers := o.MaxWorkers
	if workers <= 0 {
		workers = defaultMaxWorkers
	}
	if workers > pageCount {
		workers = pageCount
	}

	pages := make(chan int)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pages {
				p := o.fetchWithRetry(ctx, fetchPage, page, maxRetries)
				if p == nil {
					continue
				}
				// Tokenize locally, then merge under the lock.
				var lpos, lneg []string
				for _, item := range p.Items {
					if item.Meta == nil {
						continue
					}
					if s := strings.TrimSpace(item.Meta.Prompt); s != "" {
						lpos = append(lpos, tokenizer.Tokenize(s)...)
					}
					if s := strings.TrimSpace(item.Meta.NegativePrompt); s != "" {
						lneg = append(lneg, tokenizer.Tokenize(s)...)
					}
				}
				o.emit(Event{Type: "page", Page: page, Items: len(p.Items)})
				mu.Lock()
				pos = append(pos, lpos...)
				neg = append(neg, lneg...)
				mu.Unlock()
			}
		}()
	}

	for p := 1; p <= pageCount; p++ {
		pages <- p
	}
	close(pages)
	wg.Wait()
	return pos, neg
}

// fetchWithRetry returns nil when the page is dropped.
func (o Orchestrator) fetchWithRetry(ctx context.Context, fetchPage PageFetcher, page, maxRetries int) *civitai.ImagePage {
	backoff := o.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	for attempt := 1; ; attempt++ {
		p, err := fetchPage(ctx, page)
		if err == nil {
			return p
		}
		var perm *civitai.PermanentError
		if errors.As(err, &perm) {
			log.Printf("fetch: page %d failed permanently, dropping: %v", page, err)
			o.emit(Event{Type: "page_failed", Page: page, Attempt: attempt, Error: err.Error()})
			return nil
		}
		if attempt > maxRetries {
			log.Printf("fetch: page %d giving up after %d attempts: %v", page, attempt, err)
			o.emit(Event{Type: "page_failed", Page: page, Attempt: attempt, Error: err.Error()})
			return nil
		}
		log.Printf("fetch: page %d attempt %d failed, retrying: %v", page, attempt, err)
		o.emit(Event{Type: "retry", Page: page, Attempt: attempt, Error: err.Error()})
		time.Sleep(backoff)
	}
}

func (o Orchestrator) emit(ev Event) {
	if o.OnEvent != nil {
		o.OnEvent(ev)
	}
}
