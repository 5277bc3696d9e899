package promptstats

import (
	"time"

	"promptstats/internal/civitai"
	"promptstats/internal/fetch"
)

// Parameter bounds shared by the API and the CLI.
const (
	minTopN, maxTopN         = 1, 200
	minPages, maxPages       = 1, 50
	minTimeout, maxTimeout   = 1 * time.Second, 60 * time.Second
	minRetries, maxRetries   = 0, 5
	defaultTopN              = 20
	defaultPages             = 3
	defaultTimeout           = 10 * time.Second
	defaultRetries           = 2
)

// Params is one invocation's configuration surface.
type Params struct {
	FileName     string        `json:"fileName"`
	TopN         int           `json:"topN"`
	MaxPages     int           `json:"maxPages"`
	Sort         string        `json:"sort"`
	Timeout      time.Duration `json:"-"`
	TimeoutSecs  int           `json:"timeoutSeconds"`
	MaxRetries   int           `json:"maxRetries"`
	ForceRefresh bool          `json:"forceRefresh"`

	// Notify receives fetch progress events; never serialized.
	Notify func(fetch.Event) `json:"-"`
}

// Normalize clamps every field into its allowed range, fills defaults for
// zero values, and normalizes the sort order.
func (p *Params) Normalize() {
	if p.TopN == 0 {
		p.TopN = defaultTopN
	}
	p.TopN = clamp(p.TopN, minTopN, maxTopN)

	if p.MaxPages == 0 {
		p.MaxPages = defaultPages
	}
	p.MaxPages = clamp(p.MaxPages, minPages, maxPages)

	if p.Timeout == 0 && p.TimeoutSecs > 0 {
		p.Timeout = time.Duration(p.TimeoutSecs) * time.Second
	}
	if p.Timeout == 0 {
		p.Timeout = defaultTimeout
	}
	if p.Timeout < minTimeout {
		p.Timeout = minTimeout
	}
	if p.Timeout > maxTimeout {
		p.Timeout = maxTimeout
	}
	p.TimeoutSecs = int(p.Timeout / time.Second)

	if p.MaxRetries < minRetries {
		p.MaxRetries = defaultRetries
	}
	if p.MaxRetries > maxRetries {
		p.MaxRetries = maxRetries
	}

	p.Sort = civitai.NormalizeSort(p.Sort)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
