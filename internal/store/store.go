// Package store provides the typed persistence layer: a Store interface
// with secondary indices, batch upserts, and atomic multi-table
// operations, backed by SQLite.
package store

import (
	"context"

	"github.com/flowKKo/chat-central-sub002/internal/model"
)

// Order selects the sort order for ListConversations.
type Order string

const (
	OrderUpdatedAtDesc Order = "updated_at_desc"
	OrderFavoriteDesc  Order = "favorite_at_desc"
)

// DateRange bounds a query by millisecond timestamps, inclusive on both
// ends when non-nil.
type DateRange struct {
	After  *int64
	Before *int64
}

// Filter narrows ListConversations/CountConversations.
type Filter struct {
	Platform      *model.Platform
	FavoriteOnly  bool
	UpdatedAt     *DateRange
	Tag           *string
}

// Page requests a slice of results; the store fetches Limit+1 rows
// internally to detect HasMore without a second count query.
type Page struct {
	Offset int
	Limit  int
}

// ListResult carries the page of conversations plus whether more exist
// beyond it.
type ListResult struct {
	Conversations []model.Conversation
	HasMore       bool
}

// Stats is the GET_STATS aggregate payload.
type Stats struct {
	TotalConversations int
	TotalMessages      int
	ByPlatform         map[model.Platform]int
	Oldest             *int64
	Newest             *int64
}

// Store is the persistence contract every component (MergeEngine,
// SearchEngine, TagService, ExportCodec, ImportEngine, BatchOrchestrator)
// depends on. Any call may fail with a *model.Error of kind Store;
// writes are atomic at single-call granularity.
type Store interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	UpsertConversation(ctx context.Context, c model.Conversation) error
	UpsertConversations(ctx context.Context, cs []model.Conversation) error
	ListConversations(ctx context.Context, filter Filter, order Order, page Page) (ListResult, error)
	CountConversations(ctx context.Context, filter Filter) (int, error)

	GetMessagesByConversation(ctx context.Context, conversationID string) ([]model.Message, error)
	GetMessagesByIDs(ctx context.Context, conversationID string, ids []string) (map[string]model.Message, error)
	ExistingMessageIDs(ctx context.Context, conversationID string, ids []string) (map[string]bool, error)
	UpsertMessages(ctx context.Context, msgs []model.Message) error
	DeleteMessagesByConversation(ctx context.Context, conversationID string) error

	ClearPlatform(ctx context.Context, p model.Platform) error
	ClearAll(ctx context.Context) error

	AllTags(ctx context.Context) ([]string, error)

	GetKV(ctx context.Context, key string) (string, bool, error)
	SetKV(ctx context.Context, key, value string) error

	Stats(ctx context.Context) (Stats, error)

	Close() error
}
