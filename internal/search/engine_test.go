package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

func seedConversation(t *testing.T, st store.Store, ctx context.Context, c model.Conversation, msgs []model.Message) {
	t.Helper()
	require.NoError(t, st.UpsertConversation(ctx, c))
	if len(msgs) > 0 {
		require.NoError(t, st.UpsertMessages(ctx, msgs))
	}
}

// TestSearchScoringOrdering mirrors the field-weighted scoring example:
// a conversation with three matching messages (1.5 each, capped at 3)
// outranks one with a title match, which outranks one with only a
// preview match.
func TestSearchScoringOrdering(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	c1 := model.Conversation{Platform: model.PlatformClaude, OriginalID: "c1", Title: "React roadmap", CreatedAt: 1, UpdatedAt: 1}
	c1.NewConversationID()
	c2 := model.Conversation{Platform: model.PlatformClaude, OriginalID: "c2", Title: "Untitled", Preview: "let's talk about react sometime", CreatedAt: 1, UpdatedAt: 2}
	c2.NewConversationID()
	c3 := model.Conversation{Platform: model.PlatformClaude, OriginalID: "c3", Title: "Untitled", CreatedAt: 1, UpdatedAt: 3}
	c3.NewConversationID()

	seedConversation(t, st, ctx, c1, nil)
	seedConversation(t, st, ctx, c2, nil)
	seedConversation(t, st, ctx, c3, []model.Message{
		{ID: "m1", ConversationID: c3.ID, Role: model.RoleUser, Content: "react is great", CreatedAt: 1},
		{ID: "m2", ConversationID: c3.ID, Role: model.RoleAssistant, Content: "yes, react rocks", CreatedAt: 2},
		{ID: "m3", ConversationID: c3.ID, Role: model.RoleUser, Content: "let's use react everywhere", CreatedAt: 3},
	})

	e := New(st)
	results, _, err := e.Search(ctx, "react", false)
	require.NoError(t, err)
	require.Len(t, results, 3)

	order := []string{results[0].Conversation.ID, results[1].Conversation.ID, results[2].Conversation.ID}
	assert.Equal(t, []string{c3.ID, c1.ID, c2.ID}, order)

	assert.InDelta(t, 4.5, results[0].Score, 0.001)
	assert.InDelta(t, 4.0, results[1].Score, 0.001)
	assert.InDelta(t, 1.0, results[2].Score, 0.001)
}

// TestSearchScoringOrderingSingleMessageSaturation reproduces the literal
// scenario of a single message containing three occurrences of the term:
// occurrence count, not distinct-message count, must drive saturation.
func TestSearchScoringOrderingSingleMessageSaturation(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	c1 := model.Conversation{Platform: model.PlatformClaude, OriginalID: "c1", Title: "React roadmap", CreatedAt: 1, UpdatedAt: 1}
	c1.NewConversationID()
	c3 := model.Conversation{Platform: model.PlatformClaude, OriginalID: "c3", Title: "Untitled", CreatedAt: 1, UpdatedAt: 3}
	c3.NewConversationID()

	seedConversation(t, st, ctx, c1, nil)
	seedConversation(t, st, ctx, c3, []model.Message{
		{ID: "m1", ConversationID: c3.ID, Role: model.RoleUser, Content: "react react react", CreatedAt: 1},
	})

	e := New(st)
	results, _, err := e.Search(ctx, "react", false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, c3.ID, results[0].Conversation.ID)
	assert.InDelta(t, 4.5, results[0].Score, 0.001)
	assert.Equal(t, c1.ID, results[1].Conversation.ID)
	assert.InDelta(t, 4.0, results[1].Score, 0.001)
}

func TestSearchOperatorsFilterCandidates(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	c1 := model.Conversation{Platform: model.PlatformClaude, OriginalID: "a", Title: "budget talk", IsFavorite: true, CreatedAt: 1, UpdatedAt: 1}
	c1.NewConversationID()
	c2 := model.Conversation{Platform: model.PlatformGemini, OriginalID: "b", Title: "budget talk", CreatedAt: 1, UpdatedAt: 1}
	c2.NewConversationID()
	seedConversation(t, st, ctx, c1, nil)
	seedConversation(t, st, ctx, c2, nil)

	e := New(st)
	results, _, err := e.Search(ctx, "platform:claude is:favorite budget", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, c1.ID, results[0].Conversation.ID)
}

func TestSearchWithMatchesIncludesSnippets(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	c := model.Conversation{Platform: model.PlatformClaude, OriginalID: "a", Title: "about golang channels", CreatedAt: 1, UpdatedAt: 1}
	c.NewConversationID()
	seedConversation(t, st, ctx, c, nil)

	e := New(st)
	results, matches, err := e.Search(ctx, "golang", true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotEmpty(t, matches[c.ID])
	assert.Equal(t, MatchTitle, matches[c.ID][0].Type)
}

func TestSearchNoTermsReturnsAllFilteredByOperators(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	c := model.Conversation{Platform: model.PlatformClaude, OriginalID: "a", Title: "anything", CreatedAt: 1, UpdatedAt: 1}
	c.NewConversationID()
	seedConversation(t, st, ctx, c, nil)

	e := New(st)
	results, _, err := e.Search(ctx, "platform:claude", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Score)
}
