package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

func TestApplyDetailFullIngestSetsMessageCountAndPreview(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	e := New(func() int64 { return 5000 })
	incoming := model.Conversation{Platform: model.PlatformClaude, OriginalID: "a", CreatedAt: 1, UpdatedAt: 1}
	incoming.NewConversationID()
	msgs := []model.Message{
		{ID: "m1", ConversationID: incoming.ID, Role: model.RoleUser, Content: "first question", CreatedAt: 10},
		{ID: "m2", ConversationID: incoming.ID, Role: model.RoleAssistant, Content: "an answer", CreatedAt: 20},
	}

	merged, err := e.ApplyDetail(ctx, st, incoming, msgs, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, model.DetailFull, merged.DetailStatus)
	assert.Equal(t, uint32(2), merged.MessageCount)
	assert.Equal(t, "first question", merged.Preview)
	assert.Equal(t, int64(20), merged.UpdatedAt)
}

func TestApplyDetailRepeatedPartialMessageCountAccumulates(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	e := New(func() int64 { return 1000 })
	base := model.Conversation{Platform: model.PlatformChatGPT, OriginalID: "b", CreatedAt: 1, UpdatedAt: 1}
	base.NewConversationID()

	_, err = e.ApplyDetail(ctx, st, base, []model.Message{
		{ID: "m1", ConversationID: base.ID, Role: model.RoleUser, Content: "q1", CreatedAt: 5},
	}, ModePartial)
	require.NoError(t, err)

	merged, err := e.ApplyDetail(ctx, st, base, []model.Message{
		{ID: "m1", ConversationID: base.ID, Role: model.RoleUser, Content: "q1", CreatedAt: 5},
		{ID: "m2", ConversationID: base.ID, Role: model.RoleAssistant, Content: "a1", CreatedAt: 6},
	}, ModePartial)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), merged.MessageCount)
}

func TestApplyDetailPartialPreviewIgnoresResentStaleMessage(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	e := New(func() int64 { return 1000 })
	base := model.Conversation{Platform: model.PlatformChatGPT, OriginalID: "c", CreatedAt: 1, UpdatedAt: 1}
	base.NewConversationID()

	_, err = e.ApplyDetail(ctx, st, base, []model.Message{
		{ID: "m1", ConversationID: base.ID, Role: model.RoleUser, Content: "first ever question", CreatedAt: 5},
	}, ModePartial)
	require.NoError(t, err)

	// The batch resends m1 (already known, CreatedAt 5) alongside a
	// genuinely new message m2 (CreatedAt 1, i.e. older by timestamp but
	// unseen). The preview must reflect m2, not the resent m1, since only
	// m2 is among the newly-arrived messages.
	merged, err := e.ApplyDetail(ctx, st, base, []model.Message{
		{ID: "m1", ConversationID: base.ID, Role: model.RoleUser, Content: "first ever question", CreatedAt: 5},
		{ID: "m2", ConversationID: base.ID, Role: model.RoleUser, Content: "a genuinely new question", CreatedAt: 1},
	}, ModePartial)
	require.NoError(t, err)
	assert.Equal(t, "a genuinely new question", merged.Preview)
}

func TestApplyDetailGeminiDedupByRoleAndContent(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	e := New(func() int64 { return 1000 })
	base := model.Conversation{Platform: model.PlatformGemini, OriginalID: "g1", CreatedAt: 1, UpdatedAt: 1}
	base.NewConversationID()

	_, err = e.ApplyDetail(ctx, st, base, []model.Message{
		{ID: "first-id", ConversationID: base.ID, Role: model.RoleUser, Content: "same text", CreatedAt: 5},
	}, ModeFull)
	require.NoError(t, err)

	// Re-ingest the same content under a different id -- should be
	// deduped, keeping the original id and message count.
	merged, err := e.ApplyDetail(ctx, st, base, []model.Message{
		{ID: "second-id", ConversationID: base.ID, Role: model.RoleUser, Content: "same text", CreatedAt: 5},
	}, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), merged.MessageCount)

	msgs, err := st.GetMessagesByConversation(ctx, base.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "first-id", msgs[0].ID)
}

func TestMigrateGeminiLegacyID(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	legacy := model.Conversation{Platform: model.PlatformGemini, OriginalID: "c_abc", CreatedAt: 1, UpdatedAt: 1}
	legacy.NewConversationID() // "gemini_c_abc"
	require.NoError(t, st.UpsertConversation(ctx, legacy))
	require.NoError(t, st.UpsertMessages(ctx, []model.Message{
		{ID: "m1", ConversationID: legacy.ID, Role: model.RoleUser, Content: "hi", CreatedAt: 1},
	}))

	currentID := "gemini_abc"
	require.NoError(t, MigrateGeminiLegacyID(ctx, st, currentID))

	msgs, err := st.GetMessagesByConversation(ctx, currentID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	oldMsgs, err := st.GetMessagesByConversation(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Empty(t, oldMsgs)
}

func TestMigrateGeminiLegacyIDNoOpWhenCurrentHasMessages(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.UpsertMessages(ctx, []model.Message{
		{ID: "m1", ConversationID: "gemini_abc", Role: model.RoleUser, Content: "hi", CreatedAt: 1},
	}))

	require.NoError(t, MigrateGeminiLegacyID(ctx, st, "gemini_abc"))

	msgs, err := st.GetMessagesByConversation(ctx, "gemini_abc")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
