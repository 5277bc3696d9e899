// Package stats counts token occurrences and renders frequency reports.
package stats

import (
	"fmt"
	"sort"
	"strings"
)

// Entry is one token with its occurrence count.
type Entry struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// Aggregate tallies the token stream and returns entries ordered by
// descending count. Equal counts keep the first-seen order of the input, so
// the result is deterministic for a given stream.
func Aggregate(tokens []string) []Entry {
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}
	entries := make([]Entry, 0, len(order))
	for _, tok := range order {
		entries = append(entries, Entry{Token: tok, Count: counts[tok]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	return entries
}

// MergeTagFrequency flattens per-dataset tag counts (the decoded
// ss_tag_frequency mapping) into one global list ordered by descending
// count. Map iteration has no order, so ties fall back to the tag name.
func MergeTagFrequency(freq map[string]map[string]int64) []Entry {
	if len(freq) == 0 {
		return nil
	}
	merged := map[string]int{}
	for _, tags := range freq {
		for tag, n := range tags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			merged[tag] += int(n)
		}
	}
	entries := make([]Entry, 0, len(merged))
	for tag, n := range merged {
		entries = append(entries, Entry{Token: tag, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Token < entries[j].Token
	})
	return entries
}

// Format renders at most topN entries, one line each, as
//
//	{index} : "{token}" ({count})
//
// with a zero-based index that only advances for emitted lines. Entries
// whose token is blank after trimming are skipped.
func Format(entries []Entry, topN int) string {
	if topN <= 0 {
		return ""
	}
	var b strings.Builder
	idx := 0
	for _, e := range entries {
		tok := strings.TrimSpace(e.Token)
		if tok == "" {
			continue
		}
		if idx > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d : \"%s\" (%d)", idx, tok, e.Count)
		idx++
		if idx >= topN {
			break
		}
	}
	return b.String()
}

// Tokens returns just the token column, preserving order.
func Tokens(entries []Entry) []string {
	if len(entries) == 0 {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Token)
	}
	return out
}
