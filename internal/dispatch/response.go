package dispatch

import "github.com/flowKKo/chat-central-sub002/internal/model"
import "github.com/flowKKo/chat-central-sub002/internal/search"

// SearchResult is the SEARCH_WITH_MATCHES payload shape: a conversation
// plus its score and snippet matches. Plain SEARCH replies with
// []model.Conversation directly, skipping the score/matches fields a
// caller that only wants the list has no use for.
type SearchResult struct {
	Conversation model.Conversation `json:"conversation"`
	Score        float64            `json:"score"`
	Matches      []search.Match     `json:"matches"`
}

func buildSearchResults(results []search.Result, matches map[string][]search.Match) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{Conversation: r.Conversation, Score: r.Score, Matches: matches[r.Conversation.ID]})
	}
	return out
}

func conversationsOnly(results []search.Result) []model.Conversation {
	out := make([]model.Conversation, 0, len(results))
	for _, r := range results {
		out = append(out, r.Conversation)
	}
	return out
}
