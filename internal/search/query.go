// Package search implements SearchEngine: query parsing, field-weighted
// ranked scoring, and match-snippet extraction.
package search

import (
	"strings"
	"time"

	"github.com/flowKKo/chat-central-sub002/internal/model"
)

// Query is a parsed search request: the recognized field operators plus
// the free-text residue split into scoring terms.
type Query struct {
	Platform     *model.Platform
	FavoriteOnly bool
	Tag          *string
	After        *int64 // inclusive local-day lower bound, ms
	Before       *int64 // inclusive local-day upper bound, ms
	Terms        []string
}

// ParseQuery recognizes platform:, is:favorite, tag:, before:/after:
// operators and treats everything else as free text, case-folded,
// trimmed, and whitespace-tokenized into terms. Every non-empty token
// is a term; there is no stopword exception.
func ParseQuery(raw string) Query {
	var q Query
	var residue []string

	for _, field := range strings.Fields(raw) {
		lower := strings.ToLower(field)
		switch {
		case strings.HasPrefix(lower, "platform:"):
			if p, err := model.ParsePlatform(strings.TrimPrefix(lower, "platform:")); err == nil {
				q.Platform = &p
			}
		case lower == "is:favorite":
			q.FavoriteOnly = true
		case strings.HasPrefix(lower, "tag:"):
			t := field[len("tag:"):]
			q.Tag = &t
		case strings.HasPrefix(lower, "before:"):
			if ms, ok := parseDayBound(strings.TrimPrefix(lower, "before:"), true); ok {
				q.Before = &ms
			}
		case strings.HasPrefix(lower, "after:"):
			if ms, ok := parseDayBound(strings.TrimPrefix(lower, "after:"), false); ok {
				q.After = &ms
			}
		default:
			residue = append(residue, field)
		}
	}

	q.Terms = tokenize(strings.Join(residue, " "))
	return q
}

// parseDayBound parses YYYY-MM-DD into the inclusive millisecond bound
// for that local day: end-of-day when upper is true, start-of-day
// otherwise.
func parseDayBound(s string, upper bool) (int64, bool) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return 0, false
	}
	if upper {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t.UnixMilli(), true
}

func tokenize(residue string) []string {
	return strings.Fields(strings.ToLower(strings.TrimSpace(residue)))
}
