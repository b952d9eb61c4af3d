package search

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"

	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

const (
	weightTitle      = 4.0
	weightSummary    = 2.0
	weightPreview    = 1.0
	weightMessage    = 1.5
	messageSaturation = 3
	snippetMaxChars  = 120
)

// MatchType identifies which field a Match snippet came from.
type MatchType string

const (
	MatchTitle   MatchType = "title"
	MatchSummary MatchType = "summary"
	MatchPreview MatchType = "preview"
	MatchMessage MatchType = "message"
)

// Match is a bounded snippet of a matched field.
type Match struct {
	Type      MatchType `json:"type"`
	Text      string    `json:"text"`
	MessageID string    `json:"messageId,omitempty"`
}

// Result pairs a conversation with its score, for ranking; the dispatch
// layer drops the score for plain SEARCH replies and keeps it for
// SEARCH_WITH_MATCHES.
type Result struct {
	Conversation model.Conversation
	Score        float64
}

// Engine scores and ranks conversations against a parsed Query. It holds
// no state of its own beyond the Store it reads from, so SEARCH and
// SEARCH_WITH_MATCHES can share one scoring kernel (scoreConversation
// below) and diverge only on whether extractSnippets is additionally
// called.
type Engine struct {
	Store store.Store
}

func New(st store.Store) *Engine {
	return &Engine{Store: st}
}

// Search runs the full pipeline: operator filtering via the Store, then
// in-memory scoring of the candidate set, producing candidates ordered
// by score DESC, tie-broken by updatedAt DESC. withSnippets controls
// whether match snippets are computed (SEARCH vs SEARCH_WITH_MATCHES).
func (e *Engine) Search(ctx context.Context, raw string, withSnippets bool) ([]Result, map[string][]Match, error) {
	q := ParseQuery(raw)

	filter := store.Filter{
		Platform:     q.Platform,
		FavoriteOnly: q.FavoriteOnly,
		Tag:          q.Tag,
	}
	if q.After != nil || q.Before != nil {
		filter.UpdatedAt = &store.DateRange{After: q.After, Before: q.Before}
	}

	listed, err := e.Store.ListConversations(ctx, filter, store.OrderUpdatedAtDesc, store.Page{Offset: 0, Limit: 1 << 20})
	if err != nil {
		return nil, nil, err
	}

	var automaton *ahocorasick.Automaton
	if len(q.Terms) > 0 {
		automaton, err = ahocorasick.NewBuilder().
			AddStrings(q.Terms).
			SetMatchKind(ahocorasick.LeftmostLongest).
			SetPrefilter(true).
			Build()
		if err != nil {
			return nil, nil, err
		}
	}

	var results []Result
	snippets := make(map[string][]Match)

	for _, c := range listed.Conversations {
		var msgs []model.Message
		if len(q.Terms) > 0 {
			msgs, err = e.Store.GetMessagesByConversation(ctx, c.ID)
			if err != nil {
				return nil, nil, err
			}
		}

		score, matched := scoreConversation(automaton, q.Terms, c, msgs)
		if len(q.Terms) > 0 && !matched {
			continue
		}
		results = append(results, Result{Conversation: c, Score: score})

		if withSnippets {
			snippets[c.ID] = extractSnippets(automaton, q.Terms, c, msgs)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Conversation.UpdatedAt > results[j].Conversation.UpdatedAt
	})

	return results, snippets, nil
}

// scoreConversation implements the shared scoring kernel: for each term,
// the max weighted match across fields, summed across terms. matched is
// true iff every term scored above zero somewhere.
func scoreConversation(automaton *ahocorasick.Automaton, terms []string, c model.Conversation, msgs []model.Message) (float64, bool) {
	if len(terms) == 0 {
		return 0, true
	}
	if automaton == nil {
		return 0, false
	}

	var total float64
	for _, term := range terms {
		best := 0.0

		if countSubstr(automaton, term, c.Title) > 0 {
			best = max(best, weightTitle)
		}
		if c.Summary != "" && countSubstr(automaton, term, c.Summary) > 0 {
			best = max(best, weightSummary)
		}
		if countSubstr(automaton, term, c.Preview) > 0 {
			best = max(best, weightPreview)
		}

		occurrences := 0
		for _, m := range msgs {
			if occurrences >= messageSaturation {
				break
			}
			occurrences += countSubstr(automaton, term, m.Content)
		}
		if occurrences > messageSaturation {
			occurrences = messageSaturation
		}
		if msgScore := weightMessage * float64(occurrences); msgScore > best {
			best = msgScore
		}

		if best == 0 {
			return total, false
		}
		total += best
	}
	return total, true
}

// countSubstr returns how many times term occurs (case-folded substring)
// in text, overlapping occurrences included; callers test it against
// zero for a plain match and use the count for message saturation. The
// automaton is used as the scan mechanism per the domain wiring
// decision.
func countSubstr(automaton *ahocorasick.Automaton, term, text string) int {
	if text == "" || term == "" {
		return 0
	}
	folded := strings.ToLower(text)
	count := 0
	for _, m := range automaton.FindAllOverlapping([]byte(folded)) {
		if folded[m.Start:m.End] == term {
			count++
		}
	}
	return count
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// extractSnippets builds up to 3 Match values, preferring title/summary/
// preview hits before message hits, matching the result payload shape.
func extractSnippets(automaton *ahocorasick.Automaton, terms []string, c model.Conversation, msgs []model.Message) []Match {
	var out []Match
	if automaton == nil {
		return out
	}

	add := func(mt MatchType, text, msgID string) bool {
		if len(out) >= 3 {
			return false
		}
		out = append(out, Match{Type: mt, Text: text, MessageID: msgID})
		return true
	}

	for _, term := range terms {
		if len(out) >= 3 {
			break
		}
		if countSubstr(automaton, term, c.Title) > 0 {
			if !add(MatchTitle, c.Title, "") {
				break
			}
		}
	}
	for _, term := range terms {
		if len(out) >= 3 {
			break
		}
		if c.Summary != "" && countSubstr(automaton, term, c.Summary) > 0 {
			if !add(MatchSummary, c.Summary, "") {
				break
			}
		}
	}
	for _, term := range terms {
		if len(out) >= 3 {
			break
		}
		if countSubstr(automaton, term, c.Preview) > 0 {
			if !add(MatchPreview, c.Preview, "") {
				break
			}
		}
	}
	for _, m := range msgs {
		if len(out) >= 3 {
			break
		}
		for _, term := range terms {
			if countSubstr(automaton, term, m.Content) > 0 {
				snippet := centeredSnippet(m.Content, term, snippetMaxChars)
				if !add(MatchMessage, snippet, m.ID) {
					break
				}
				break
			}
		}
	}
	return out
}

// centeredSnippet extracts up to maxChars runes of text centered on the
// first occurrence of term (case-folded), marking truncation with
// ellipses.
func centeredSnippet(text, term string, maxChars int) string {
	folded := strings.ToLower(text)
	idx := strings.Index(folded, term)
	if idx < 0 {
		return truncateRunes(text, maxChars)
	}

	runes := []rune(text)
	// map byte idx to rune idx
	runeIdx := utf8.RuneCountInString(text[:idx])
	half := maxChars / 2
	start := runeIdx - half
	if start < 0 {
		start = 0
	}
	end := start + maxChars
	if end > len(runes) {
		end = len(runes)
		start = end - maxChars
		if start < 0 {
			start = 0
		}
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(runes) {
		snippet = snippet + "…"
	}
	return snippet
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
