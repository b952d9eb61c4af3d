// Package importer implements ImportEngine: idempotent application of an
// export archive under a conflict-resolution strategy.
package importer

import (
	"context"

	"github.com/flowKKo/chat-central-sub002/internal/export"
	"github.com/flowKKo/chat-central-sub002/internal/merge"
	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

// Strategy selects the conflict-resolution policy applied per
// conversation already present in the target store.
type Strategy string

const (
	StrategyMerge   Strategy = "merge"
	StrategyReplace Strategy = "replace"
	StrategySkip    Strategy = "skip"
)

// Counts tallies conversations and messages for the imported/skipped
// buckets of a Result.
type Counts struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
}

// Conflict records a conversation that existed in the target store at
// import time, regardless of which strategy resolved it.
type Conflict struct {
	ConversationID string `json:"conversationId"`
}

// Result is the outcome of an Import call. Errors are collected, not
// fatal: partial success is reported truthfully.
type Result struct {
	Imported  Counts     `json:"imported"`
	Skipped   Counts     `json:"skipped"`
	Conflicts []Conflict `json:"conflicts"`
	Errors    []string   `json:"errors"`
}

// Engine applies archives to a Store using MergeEngine for the merge
// strategy.
type Engine struct {
	Store store.Store
	Merge *merge.Engine
}

func New(st store.Store, me *merge.Engine) *Engine {
	return &Engine{Store: st, Merge: me}
}

// Import validates archive, then applies each conversation it contains
// under strategy, accumulating a Result. A per-conversation failure is
// appended to Errors and does not abort the remaining conversations.
func (e *Engine) Import(ctx context.Context, archive []byte, strategy Strategy) (Result, error) {
	if _, err := (&export.Codec{}).Validate(archive); err != nil {
		return Result{}, err
	}

	convs, msgsByConv, err := export.ReadConversations(archive)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, incoming := range convs {
		msgs := msgsByConv[incoming.ID]
		if err := e.importOne(ctx, incoming, msgs, strategy, &result); err != nil {
			result.Errors = append(result.Errors, incoming.ID+": "+err.Error())
		}
	}
	return result, nil
}

func (e *Engine) importOne(ctx context.Context, incoming model.Conversation, msgs []model.Message, strategy Strategy, result *Result) error {
	existing, err := e.Store.GetConversation(ctx, incoming.ID)
	if err != nil {
		return err
	}

	if existing != nil {
		result.Conflicts = append(result.Conflicts, Conflict{ConversationID: incoming.ID})
	}

	switch strategy {
	case StrategySkip:
		if existing != nil {
			result.Skipped.Conversations++
			result.Skipped.Messages += len(msgs)
			return nil
		}
		return e.insertFresh(ctx, incoming, msgs, result)

	case StrategyReplace:
		if existing != nil {
			if err := e.Store.DeleteMessagesByConversation(ctx, incoming.ID); err != nil {
				return err
			}
		}
		if err := e.Store.UpsertConversation(ctx, incoming); err != nil {
			return err
		}
		if err := e.Store.UpsertMessages(ctx, msgs); err != nil {
			return err
		}
		result.Imported.Conversations++
		result.Imported.Messages += len(msgs)
		return nil

	default: // StrategyMerge
		return e.importMerge(ctx, existing, incoming, msgs, result)
	}
}

func (e *Engine) insertFresh(ctx context.Context, incoming model.Conversation, msgs []model.Message, result *Result) error {
	if err := e.Store.UpsertConversation(ctx, incoming); err != nil {
		return err
	}
	if err := e.Store.UpsertMessages(ctx, msgs); err != nil {
		return err
	}
	result.Imported.Conversations++
	result.Imported.Messages += len(msgs)
	return nil
}

// importMerge feeds the conversation through MergeEngine; for messages,
// ids that already exist are kept as-is (existing wins), matching
// "merge -- for each message, if (conversationId, id) exists, keep
// existing by default."
func (e *Engine) importMerge(ctx context.Context, existing *model.Conversation, incoming model.Conversation, msgs []model.Message, result *Result) error {
	merged := e.Merge.Merge(existing, incoming)
	if err := e.Store.UpsertConversation(ctx, merged); err != nil {
		return err
	}

	if len(msgs) == 0 {
		if existing == nil {
			result.Imported.Conversations++
		} else {
			result.Skipped.Conversations++
		}
		return nil
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	existingIDs, err := e.Store.ExistingMessageIDs(ctx, incoming.ID, ids)
	if err != nil {
		return err
	}

	var toInsert []model.Message
	skippedMsgs := 0
	for _, m := range msgs {
		if existingIDs[m.ID] {
			skippedMsgs++
			continue
		}
		toInsert = append(toInsert, m)
	}
	if len(toInsert) > 0 {
		if err := e.Store.UpsertMessages(ctx, toInsert); err != nil {
			return err
		}
	}

	if existing == nil {
		result.Imported.Conversations++
	} else {
		result.Skipped.Conversations++
	}
	result.Imported.Messages += len(toInsert)
	result.Skipped.Messages += skippedMsgs
	return nil
}
