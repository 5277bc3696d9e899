package promptstats

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"promptstats/internal/civitai"
	"promptstats/internal/metadata"
	"promptstats/internal/stats"
)

// NoTriggerWords is rendered when a trigger list comes back empty.
const NoTriggerWords = "(no trigger words found)"

// LoRAReport extends Report with the two independently sourced trigger-word
// strings: one from the file's embedded training metadata, one from the
// remote model-version record.
type LoRAReport struct {
	Report
	LocalTriggers  string `json:"localTriggers"`
	RemoteTriggers string `json:"remoteTriggers"`
}

// ExecuteLoRA runs the shared pipeline and adds trigger-word extraction.
// Both trigger sources degrade independently to the placeholder.
func (s *Service) ExecuteLoRA(ctx context.Context, path string, p Params) LoRAReport {
	p.Normalize()
	if p.FileName == "" {
		p.FileName = filepath.Base(path)
	}
	rep := LoRAReport{Report: s.Execute(ctx, path, p)}
	rep.LocalTriggers = joinOrPlaceholder(s.localTriggers(path))
	rep.RemoteTriggers = joinOrPlaceholder(s.remoteTriggers(ctx, path, p))
	return rep
}

// localTriggers merges the embedded ss_tag_frequency counts and returns the
// tags in descending-frequency order.
func (s *Service) localTriggers(path string) []string {
	meta, err := metadata.ReadEmbedded(path)
	if err != nil {
		log.Printf("promptstats: read embedded metadata of %s: %v", path, err)
		return nil
	}
	return stats.Tokens(stats.MergeTagFrequency(metadata.TagFrequency(meta)))
}

// remoteTriggers returns the model version's trainedWords, cached per
// filename. ForceRefresh bypasses the cache read but still refreshes it.
func (s *Service) remoteTriggers(ctx context.Context, path string, p Params) []string {
	if !p.ForceRefresh {
		if words, ok := s.triggers.Lookup(p.FileName); ok {
			return words
		}
	}

	digest, err := s.identifier.Identify(path)
	if err != nil {
		log.Printf("promptstats: identify %s for trigger words: %v", path, err)
		return nil
	}
	vctx, cancel := civitai.WithTimeout(ctx, p.Timeout)
	defer cancel()
	version, err := s.client.VersionByHash(vctx, digest)
	if err != nil {
		log.Printf("promptstats: resolve trigger words for %s: %v", p.FileName, err)
		return nil
	}
	if version == nil {
		return nil
	}

	words := version.TrainedWords
	if err := s.triggers.Store(p.FileName, words); err != nil {
		log.Printf("promptstats: persist trigger words for %s: %v", p.FileName, err)
	}
	return words
}

func joinOrPlaceholder(words []string) string {
	var kept []string
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return NoTriggerWords
	}
	return strings.Join(kept, ", ")
}
