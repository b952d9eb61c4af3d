package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowKKo/chat-central-sub002/internal/export"
	"github.com/flowKKo/chat-central-sub002/internal/importer"
	"github.com/flowKKo/chat-central-sub002/internal/merge"
	"github.com/flowKKo/chat-central-sub002/internal/search"
	"github.com/flowKKo/chat-central-sub002/internal/store"
	"github.com/flowKKo/chat-central-sub002/internal/tag"
)

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	me := merge.New(func() int64 { return 1000 })
	return &Surface{
		Store:  st,
		Merge:  me,
		Search: search.New(st),
		Tags:   tag.New(st),
		Export: export.New(func() int64 { return 1000 }),
		Import: importer.New(st, me),
		Bus:    NewBus(),
	}
}

func decodeEnvelope(t *testing.T, raw json.RawMessage) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestHandleUnknownActionReturnsInvalidFormat(t *testing.T) {
	s := newTestSurface(t)
	raw, err := s.Handle(context.Background(), "NOT_AN_ACTION", nil)
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	assert.False(t, env.Success)
	assert.Equal(t, invalidFormatMsg, env.Error)
}

func TestHandleCaptureThenGetConversations(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	payload, err := json.Marshal(captureRequest{
		Platform:   "claude",
		OriginalID: "abc",
		Title:      "Hello",
		CreatedAt:  100,
		Mode:       "full",
		Messages: []captureMessage{
			{Role: "user", Content: "hi", CreatedAt: 100},
			{Role: "assistant", Content: "hello back", CreatedAt: 101},
		},
	})
	require.NoError(t, err)

	raw, err := s.Handle(ctx, ActionCaptureAPIResponse, payload)
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	require.True(t, env.Success)

	listRaw, err := s.Handle(ctx, ActionGetConversations, nil)
	require.NoError(t, err)
	env = decodeEnvelope(t, listRaw)
	require.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var result store.ListResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Conversations, 1)
	assert.Equal(t, "Hello", result.Conversations[0].Title)
}

func TestHandleCaptureInvalidPayloadReturnsInvalidFormat(t *testing.T) {
	s := newTestSurface(t)
	raw, err := s.Handle(context.Background(), ActionCaptureAPIResponse, json.RawMessage(`{"platform":"claude"}`))
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	assert.False(t, env.Success)
}

func TestHandleToggleFavoriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	payload, _ := json.Marshal(captureRequest{Platform: "claude", OriginalID: "abc", Title: "hi", CreatedAt: 1, Mode: "partial"})
	raw, err := s.Handle(ctx, ActionCaptureAPIResponse, payload)
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var conv struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &conv))

	togglePayload, _ := json.Marshal(toggleFavoriteRequest{ConversationID: conv.ID})
	raw, err = s.Handle(ctx, ActionToggleFavorite, togglePayload)
	require.NoError(t, err)
	env = decodeEnvelope(t, raw)
	require.True(t, env.Success)
}

func TestHandleToggleFavoriteWithExplicitValueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	payload, _ := json.Marshal(captureRequest{Platform: "claude", OriginalID: "abc", Title: "hi", CreatedAt: 1, Mode: "partial"})
	raw, err := s.Handle(ctx, ActionCaptureAPIResponse, payload)
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var conv struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &conv))

	trueVal := true
	togglePayload, _ := json.Marshal(toggleFavoriteRequest{ConversationID: conv.ID, Value: &trueVal})

	// Setting value:true twice in a row must leave favorite state true
	// both times, unlike the no-value toggle which would flip it back.
	for i := 0; i < 2; i++ {
		raw, err = s.Handle(ctx, ActionToggleFavorite, togglePayload)
		require.NoError(t, err)
		env = decodeEnvelope(t, raw)
		require.True(t, env.Success)

		data, _ = json.Marshal(env.Data)
		var result struct {
			IsFavorite bool `json:"isFavorite"`
		}
		require.NoError(t, json.Unmarshal(data, &result))
		assert.True(t, result.IsFavorite)
	}
}

func TestHandleUpdateTagsAndGetAllTags(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	payload, _ := json.Marshal(captureRequest{Platform: "claude", OriginalID: "abc", Title: "hi", CreatedAt: 1, Mode: "partial"})
	raw, err := s.Handle(ctx, ActionCaptureAPIResponse, payload)
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	data, _ := json.Marshal(env.Data)
	var conv struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &conv))

	tagPayload, _ := json.Marshal(updateTagsRequest{ConversationID: conv.ID, Tags: []string{"work", "ideas"}})
	raw, err = s.Handle(ctx, ActionUpdateTags, tagPayload)
	require.NoError(t, err)
	env = decodeEnvelope(t, raw)
	require.True(t, env.Success)

	raw, err = s.Handle(ctx, ActionGetAllTags, nil)
	require.NoError(t, err)
	env = decodeEnvelope(t, raw)
	require.True(t, env.Success)
	data, _ = json.Marshal(env.Data)
	var tags []string
	require.NoError(t, json.Unmarshal(data, &tags))
	assert.Equal(t, []string{"ideas", "work"}, tags)
}

func TestHandleGetMessagesMissingConversationIDIsInvalidFormat(t *testing.T) {
	s := newTestSurface(t)
	raw, err := s.Handle(context.Background(), ActionGetMessages, json.RawMessage(`{}`))
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	assert.False(t, env.Success)
	assert.Equal(t, invalidFormatMsg, env.Error)
}

func TestHandleGetStats(t *testing.T) {
	s := newTestSurface(t)
	raw, err := s.Handle(context.Background(), ActionGetStats, nil)
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	assert.True(t, env.Success)
}

func TestHandleSearchPlainReturnsSlimConversationList(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	payload, _ := json.Marshal(captureRequest{Platform: "claude", OriginalID: "abc", Title: "golang channels", CreatedAt: 1, Mode: "partial"})
	raw, err := s.Handle(ctx, ActionCaptureAPIResponse, payload)
	require.NoError(t, err)
	require.True(t, decodeEnvelope(t, raw).Success)

	searchPayload, _ := json.Marshal(searchRequest{Query: "golang"})
	raw, err = s.Handle(ctx, ActionSearch, searchPayload)
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var convs []struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(data, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "golang channels", convs[0].Title)
}

func TestHandleSearchWithMatchesReturnsScoreAndSnippets(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	payload, _ := json.Marshal(captureRequest{Platform: "claude", OriginalID: "abc", Title: "golang channels", CreatedAt: 1, Mode: "partial"})
	raw, err := s.Handle(ctx, ActionCaptureAPIResponse, payload)
	require.NoError(t, err)
	require.True(t, decodeEnvelope(t, raw).Success)

	searchPayload, _ := json.Marshal(searchRequest{Query: "golang"})
	raw, err = s.Handle(ctx, ActionSearchWithMatches, searchPayload)
	require.NoError(t, err)
	env := decodeEnvelope(t, raw)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var rich []SearchResult
	require.NoError(t, json.Unmarshal(data, &rich))
	require.Len(t, rich, 1)
	assert.Positive(t, rich[0].Score)
	assert.NotEmpty(t, rich[0].Matches)
}
