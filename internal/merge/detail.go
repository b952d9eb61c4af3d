package merge

import (
	"context"
	"strings"

	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

// DetailMode selects which branch of the detail update path's
// messageCount/preview refresh rules applies.
type DetailMode string

const (
	ModeFull    DetailMode = "full"
	ModePartial DetailMode = "partial"
)

// ApplyDetail runs the seven-step detail update path: merge the
// conversation, dedup Gemini messages by (role, content), compute the
// mode-dependent messageCount, upsert the batch, refresh preview, and
// refresh updatedAt from the latest message.
func (e *Engine) ApplyDetail(ctx context.Context, st store.Store, incoming model.Conversation, msgs []model.Message, mode DetailMode) (model.Conversation, error) {
	existing, err := st.GetConversation(ctx, incoming.ID)
	if err != nil {
		return model.Conversation{}, err
	}

	incoming.DetailStatus = model.DetailStatus(mode)
	now := e.now()
	incoming.DetailSyncedAt = &now

	merged := e.Merge(existing, incoming)

	if len(msgs) == 0 {
		if err := st.UpsertConversation(ctx, merged); err != nil {
			return model.Conversation{}, err
		}
		return merged, nil
	}

	if merged.Platform == model.PlatformGemini {
		msgs, err = dedupGeminiMessages(ctx, st, merged.ID, msgs)
		if err != nil {
			return model.Conversation{}, err
		}
	}

	var newCount int
	var existingIDs map[string]bool
	if mode == ModeFull {
		merged.MessageCount = uint32(len(msgs))
	} else {
		ids := make([]string, len(msgs))
		for i, m := range msgs {
			ids[i] = m.ID
		}
		existingIDs, err = st.ExistingMessageIDs(ctx, merged.ID, ids)
		if err != nil {
			return model.Conversation{}, err
		}
		for _, id := range ids {
			if !existingIDs[id] {
				newCount++
			}
		}
		base := uint32(0)
		if existing != nil {
			base = existing.MessageCount
		}
		merged.MessageCount = base + uint32(newCount)
	}

	if err := st.UpsertMessages(ctx, msgs); err != nil {
		return model.Conversation{}, err
	}

	merged.Preview = refreshPreview(existing, msgs, mode, merged.Preview, existingIDs)

	maxCreated := merged.UpdatedAt
	for _, m := range msgs {
		if m.CreatedAt > maxCreated {
			maxCreated = m.CreatedAt
		}
	}
	base := int64(0)
	if existing != nil {
		base = existing.UpdatedAt
	}
	merged.UpdatedAt = max64(base, maxCreated)

	if err := st.UpsertConversation(ctx, merged); err != nil {
		return model.Conversation{}, err
	}
	return merged, nil
}

// dedupGeminiMessages replaces any incoming message whose (role, content)
// already exists in the conversation with the stored message, so the
// existing id is kept and the incoming duplicate is never written. A
// (role, content) pair repeated within the batch is kept once.
func dedupGeminiMessages(ctx context.Context, st store.Store, conversationID string, msgs []model.Message) ([]model.Message, error) {
	existing, err := st.GetMessagesByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]model.Message, len(existing))
	for _, m := range existing {
		stored[dedupKey(m.Role, m.Content)] = m
	}
	seen := make(map[string]bool, len(msgs))
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		k := dedupKey(m.Role, m.Content)
		if seen[k] {
			continue
		}
		seen[k] = true
		if prev, ok := stored[k]; ok {
			m = prev
		}
		out = append(out, m)
	}
	return out, nil
}

func dedupKey(role model.Role, content string) string {
	return string(role) + "\x00" + content
}

// refreshPreview recomputes the conversation preview. In ModePartial,
// existingIDs identifies messages the store already had before this
// batch arrived; the latest-user-message scan is restricted to the
// newly-arrived messages only, so a resent already-known message with
// a later CreatedAt than any genuinely new message can't overwrite the
// preview with stale content.
func refreshPreview(existing *model.Conversation, msgs []model.Message, mode DetailMode, fallback string, existingIDs map[string]bool) string {
	if mode == ModeFull {
		var pick *model.Message
		for i := range msgs {
			if msgs[i].Role == model.RoleUser {
				pick = &msgs[i]
				break
			}
		}
		if pick == nil && len(msgs) > 0 {
			pick = &msgs[0]
		}
		if pick != nil {
			return truncate(pick.Content, 200)
		}
		return fallback
	}

	var latest *model.Message
	for i := range msgs {
		if msgs[i].Role != model.RoleUser {
			continue
		}
		if existingIDs[msgs[i].ID] {
			continue
		}
		if latest == nil || msgs[i].CreatedAt > latest.CreatedAt {
			latest = &msgs[i]
		}
	}
	if latest != nil {
		return truncate(latest.Content, 200)
	}
	return fallback
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// MigrateGeminiLegacyID copies messages stored under a legacy Gemini id
// to the current id when the current id has none but the legacy one
// does, then removes the legacy rows. Gemini historically referenced
// conversations as either "c_<originalId>" or bare "<originalId>"; this
// is a one-time lazy repair run from the message-load path.
func MigrateGeminiLegacyID(ctx context.Context, st store.Store, conversationID string) error {
	msgs, err := st.GetMessagesByConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		return nil
	}

	legacyID, ok := legacyGeminiID(conversationID)
	if !ok {
		return nil
	}
	legacyMsgs, err := st.GetMessagesByConversation(ctx, legacyID)
	if err != nil {
		return err
	}
	if len(legacyMsgs) == 0 {
		return nil
	}

	migrated := make([]model.Message, len(legacyMsgs))
	for i, m := range legacyMsgs {
		m.ConversationID = conversationID
		migrated[i] = m
	}
	if err := st.UpsertMessages(ctx, migrated); err != nil {
		return err
	}
	return st.DeleteMessagesByConversation(ctx, legacyID)
}

// legacyGeminiID derives the alternate id for the c_X <-> X migration:
// given "gemini_c_abc" it returns "gemini_abc", and vice versa.
func legacyGeminiID(id string) (string, bool) {
	prefix := string(model.PlatformGemini) + "_"
	if !strings.HasPrefix(id, prefix) {
		return "", false
	}
	originalID := strings.TrimPrefix(id, prefix)
	if strings.HasPrefix(originalID, "c_") {
		return prefix + strings.TrimPrefix(originalID, "c_"), true
	}
	return prefix + "c_" + originalID, true
}
