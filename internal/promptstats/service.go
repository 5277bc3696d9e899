// Package promptstats wires the identify → resolve → fetch → aggregate →
// format pipeline and its caches.
package promptstats

import (
	"context"
	"fmt"
	"log"

	"promptstats/internal/cachestore"
	"promptstats/internal/civitai"
	"promptstats/internal/fetch"
	"promptstats/internal/hashing"
	"promptstats/internal/stats"
)

// Report is the rendered pair of frequency reports.
type Report struct {
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

// ReportArchive mirrors rendered reports to external storage.
type ReportArchive interface {
	PutReport(ctx context.Context, digest, name string, content []byte) error
}

// Options collects the service dependencies. Identifier, Client, Results and
// Triggers are required; Archive is optional.
type Options struct {
	Identifier *hashing.Identifier
	Client     *civitai.Client
	Results    *cachestore.ResultStore
	Triggers   *cachestore.TriggerStore
	Archive    ReportArchive
	MaxWorkers int
}

// Service runs the shared pipeline. The checkpoint variant is Execute; the
// LoRA variant composes Execute with trigger-word extraction.
type Service struct {
	identifier *hashing.Identifier
	client     *civitai.Client
	results    *cachestore.ResultStore
	triggers   *cachestore.TriggerStore
	archive    ReportArchive
	maxWorkers int
}

func New(opts Options) (*Service, error) {
	if opts.Identifier == nil {
		return nil, fmt.Errorf("promptstats: identifier is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("promptstats: civitai client is required")
	}
	if opts.Results == nil {
		return nil, fmt.Errorf("promptstats: result store is required")
	}
	if opts.Triggers == nil {
		return nil, fmt.Errorf("promptstats: trigger store is required")
	}
	return &Service{
		identifier: opts.Identifier,
		client:     opts.Client,
		results:    opts.Results,
		triggers:   opts.Triggers,
		archive:    opts.Archive,
		maxWorkers: opts.MaxWorkers,
	}, nil
}

// Execute runs the pipeline for one local model file. It always returns a
// Report: unrecoverable failures (missing file, digest failure, resolution
// failure) are logged and degrade to empty texts.
func (s *Service) Execute(ctx context.Context, path string, p Params) Report {
	p.Normalize()

	digest, err := s.identifier.Identify(path)
	if err != nil {
		log.Printf("promptstats: identify %s: %v", path, err)
		return Report{}
	}

	key := cachestore.ResultKey{Digest: digest, Sort: p.Sort, MaxPages: p.MaxPages}
	if !p.ForceRefresh {
		if res, ok := s.results.Get(ctx, key); ok {
			return render(res, p.TopN)
		}
	}

	res, ok := s.fetchAndAggregate(ctx, digest, p)
	if !ok {
		return Report{}
	}
	if err := s.results.Put(ctx, key, res); err != nil {
		log.Printf("promptstats: persist result %s: %v", key, err)
	}

	rep := render(res, p.TopN)
	s.archiveReport(ctx, digest, p, rep)
	return rep
}

// fetchAndAggregate resolves the digest and pulls every requested page.
// Resolution failure or an absent remote record is terminal for this file.
func (s *Service) fetchAndAggregate(ctx context.Context, digest string, p Params) (cachestore.Result, bool) {
	vctx, cancel := civitai.WithTimeout(ctx, p.Timeout)
	version, err := s.client.VersionByHash(vctx, digest)
	cancel()
	if err != nil {
		log.Printf("promptstats: resolve version for %s: %v", p.FileName, err)
		return cachestore.Result{}, false
	}
	if version == nil {
		log.Printf("promptstats: no model version for %s (digest %s)", p.FileName, digest)
		return cachestore.Result{}, false
	}

	orch := fetch.Orchestrator{MaxWorkers: s.maxWorkers, OnEvent: p.Notify}
	pos, neg := orch.Pages(ctx, func(ctx context.Context, page int) (*civitai.ImagePage, error) {
		actx, cancel := civitai.WithTimeout(ctx, p.Timeout)
		defer cancel()
		return s.client.ImagesPage(actx, version.ID, page, p.Sort)
	}, p.MaxPages, p.MaxRetries)

	return cachestore.Result{
		PositiveCounts: stats.Aggregate(pos),
		NegativeCounts: stats.Aggregate(neg),
	}, true
}

func (s *Service) archiveReport(ctx context.Context, digest string, p Params, rep Report) {
	if s.archive == nil {
		return
	}
	name := fmt.Sprintf("%s_%d", p.Sort, p.MaxPages)
	if err := s.archive.PutReport(ctx, digest, name+"_positive.txt", []byte(rep.Positive)); err != nil {
		log.Printf("promptstats: archive positive report: %v", err)
	}
	if err := s.archive.PutReport(ctx, digest, name+"_negative.txt", []byte(rep.Negative)); err != nil {
		log.Printf("promptstats: archive negative report: %v", err)
	}
}

func render(res cachestore.Result, topN int) Report {
	return Report{
		Positive: stats.Format(res.PositiveCounts, topN),
		Negative: stats.Format(res.NegativeCounts, topN),
	}
}
