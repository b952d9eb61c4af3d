// Package dispatch implements DispatchSurface: the validated
// request/response boundary between external callers (the browser
// extension shell, the CLI) and the store/search/batch services, plus
// the best-effort broadcast Bus for progress and sync notifications.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/flowKKo/chat-central-sub002/internal/batch"
	"github.com/flowKKo/chat-central-sub002/internal/export"
	"github.com/flowKKo/chat-central-sub002/internal/importer"
	"github.com/flowKKo/chat-central-sub002/internal/merge"
	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/obs"
	"github.com/flowKKo/chat-central-sub002/internal/search"
	"github.com/flowKKo/chat-central-sub002/internal/store"
	"github.com/flowKKo/chat-central-sub002/internal/tag"
)

// Action is the closed set of request variants DispatchSurface handles.
const (
	ActionCaptureAPIResponse    = "CAPTURE_API_RESPONSE"
	ActionGetConversations      = "GET_CONVERSATIONS"
	ActionGetMessages           = "GET_MESSAGES"
	ActionGetStats              = "GET_STATS"
	ActionSearch                = "SEARCH"
	ActionSearchWithMatches     = "SEARCH_WITH_MATCHES"
	ActionGetRecentConvos       = "GET_RECENT_CONVERSATIONS"
	ActionToggleFavorite        = "TOGGLE_FAVORITE"
	ActionUpdateTags            = "UPDATE_TAGS"
	ActionGetAllTags            = "GET_ALL_TAGS"
	ActionBatchFetchAndExport   = "BATCH_FETCH_AND_EXPORT"
	ActionBatchFetchCancel      = "BATCH_FETCH_CANCEL"

	eventBatchFetchProgress      = "BATCH_FETCH_PROGRESS"
	eventConversationDetailSync  = "CONVERSATION_DETAIL_SYNCED"
)

// Surface is the single entry point every transport (CLI, extension
// message port) funnels requests through.
type Surface struct {
	Store   store.Store
	Merge   *merge.Engine
	Search  *search.Engine
	Tags    *tag.Service
	Export  *export.Codec
	Import  *importer.Engine
	Batch   *batch.Orchestrator
	Bus     *Bus
}

type envelope struct {
	Success bool            `json:"success"`
	Data    interface{}     `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func successResult(data interface{}) json.RawMessage {
	b, err := encodeEnvelope(envelope{Success: true, Data: data})
	if err != nil {
		return errorResult(model.NewError(model.KindInvalidFormat, "failed to encode response", err))
	}
	return b
}

func errorResult(err error) json.RawMessage {
	msg := "internal error"
	if kind, ok := model.AsKind(err); ok {
		msg = string(kind)
	} else {
		obs.Errorf(context.Background(), "dispatch: internal error: %v", err)
	}
	b, _ := encodeEnvelope(envelope{Success: false, Error: msg})
	return b
}

const invalidFormatMsg = "Invalid message format"

func invalidFormat() json.RawMessage {
	b, _ := encodeEnvelope(envelope{Success: false, Error: invalidFormatMsg})
	return b
}

// Handle dispatches action with payload, returning a JSON envelope that
// is always well-formed: {success:true,data:...} or
// {success:false,error:...}. A malformed payload never reaches a
// service call.
func (s *Surface) Handle(ctx context.Context, action string, payload json.RawMessage) (json.RawMessage, error) {
	switch action {
	case ActionCaptureAPIResponse:
		return s.handleCapture(ctx, payload), nil
	case ActionGetConversations:
		return s.handleGetConversations(ctx, payload), nil
	case ActionGetMessages:
		return s.handleGetMessages(ctx, payload), nil
	case ActionGetStats:
		return s.handleGetStats(ctx), nil
	case ActionSearch:
		return s.handleSearch(ctx, payload, false), nil
	case ActionSearchWithMatches:
		return s.handleSearch(ctx, payload, true), nil
	case ActionGetRecentConvos:
		return s.handleGetRecent(ctx, payload), nil
	case ActionToggleFavorite:
		return s.handleToggleFavorite(ctx, payload), nil
	case ActionUpdateTags:
		return s.handleUpdateTags(ctx, payload), nil
	case ActionGetAllTags:
		return s.handleGetAllTags(ctx), nil
	case ActionBatchFetchAndExport:
		return s.handleBatchFetch(ctx, payload), nil
	case ActionBatchFetchCancel:
		return s.handleBatchCancel(), nil
	default:
		return invalidFormat(), nil
	}
}

type captureMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

type captureRequest struct {
	Platform   string           `json:"platform"`
	OriginalID string           `json:"originalId"`
	Title      string           `json:"title"`
	Preview    string           `json:"preview"`
	Summary    string           `json:"summary"`
	URL        string           `json:"url"`
	CreatedAt  int64            `json:"createdAt"`
	Mode       string           `json:"mode"`
	Messages   []captureMessage `json:"messages"`
}

func (s *Surface) handleCapture(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req captureRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.OriginalID == "" || req.CreatedAt == 0 {
		return invalidFormat()
	}
	platform, err := model.ParsePlatform(req.Platform)
	if err != nil {
		return invalidFormat()
	}
	mode := merge.ModePartial
	if req.Mode == "full" {
		mode = merge.ModeFull
	}

	incoming := model.Conversation{
		Platform:   platform,
		OriginalID: req.OriginalID,
		Title:      req.Title,
		Preview:    req.Preview,
		Summary:    req.Summary,
		URL:        req.URL,
		CreatedAt:  req.CreatedAt,
		UpdatedAt:  req.CreatedAt,
	}
	incoming.NewConversationID()

	if err := merge.MigrateGeminiLegacyID(ctx, s.Store, incoming.ID); err != nil {
		obs.Warnf(ctx, "dispatch: legacy-id migration failed for %s: %v", incoming.ID, err)
	}

	msgs := make([]model.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := model.RoleAssistant
		if m.Role == "user" {
			role = model.RoleUser
		}
		id := m.ID
		if id == "" {
			id = model.NewID()
		}
		msgs = append(msgs, model.Message{
			ID:             id,
			ConversationID: incoming.ID,
			Role:           role,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt,
		})
	}

	merged, err := s.Merge.ApplyDetail(ctx, s.Store, incoming, msgs, mode)
	if err != nil {
		return errorResult(err)
	}

	s.Tags.InvalidateOnClear()
	if s.Bus != nil {
		s.Bus.Publish(Event{Action: eventConversationDetailSync, Payload: map[string]string{"conversationId": merged.ID}})
	}
	return successResult(merged)
}

type listRequest struct {
	Platform     string `json:"platform"`
	FavoriteOnly bool   `json:"favoriteOnly"`
	Tag          string `json:"tag"`
	After        *int64 `json:"after"`
	Before       *int64 `json:"before"`
	Offset       int    `json:"offset"`
	Limit        int    `json:"limit"`
}

func (r listRequest) toFilter() (store.Filter, error) {
	var f store.Filter
	if r.Platform != "" {
		p, err := model.ParsePlatform(r.Platform)
		if err != nil {
			return f, err
		}
		f.Platform = &p
	}
	f.FavoriteOnly = r.FavoriteOnly
	if r.Tag != "" {
		f.Tag = &r.Tag
	}
	if r.After != nil || r.Before != nil {
		f.UpdatedAt = &store.DateRange{After: r.After, Before: r.Before}
	}
	return f, nil
}

func (s *Surface) handleGetConversations(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req listRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return invalidFormat()
		}
	}
	filter, err := req.toFilter()
	if err != nil {
		return invalidFormat()
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	result, err := s.Store.ListConversations(ctx, filter, store.OrderUpdatedAtDesc, store.Page{Offset: req.Offset, Limit: limit})
	if err != nil {
		return errorResult(err)
	}
	return successResult(result)
}

type getMessagesRequest struct {
	ConversationID string `json:"conversationId"`
}

func (s *Surface) handleGetMessages(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req getMessagesRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ConversationID == "" {
		return invalidFormat()
	}
	if err := merge.MigrateGeminiLegacyID(ctx, s.Store, req.ConversationID); err != nil {
		obs.Warnf(ctx, "dispatch: legacy-id migration failed for %s: %v", req.ConversationID, err)
	}
	msgs, err := s.Store.GetMessagesByConversation(ctx, req.ConversationID)
	if err != nil {
		return errorResult(err)
	}
	return successResult(msgs)
}

func (s *Surface) handleGetStats(ctx context.Context) json.RawMessage {
	stats, err := s.Store.Stats(ctx)
	if err != nil {
		return errorResult(err)
	}
	return successResult(stats)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Surface) handleSearch(ctx context.Context, payload json.RawMessage, withMatches bool) json.RawMessage {
	var req searchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return invalidFormat()
	}
	results, matches, err := s.Search.Search(ctx, req.Query, withMatches)
	if err != nil {
		return errorResult(err)
	}
	if !withMatches {
		return successResult(conversationsOnly(results))
	}
	return successResult(buildSearchResults(results, matches))
}

type recentRequest struct {
	Limit int `json:"limit"`
}

func (s *Surface) handleGetRecent(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req recentRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return invalidFormat()
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	result, err := s.Store.ListConversations(ctx, store.Filter{}, store.OrderUpdatedAtDesc, store.Page{Offset: 0, Limit: limit})
	if err != nil {
		return errorResult(err)
	}
	return successResult(result.Conversations)
}

type toggleFavoriteRequest struct {
	ConversationID string `json:"conversationId"`
	Value          *bool  `json:"value,omitempty"`
}

func (s *Surface) handleToggleFavorite(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req toggleFavoriteRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ConversationID == "" {
		return invalidFormat()
	}
	c, err := s.Store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return errorResult(err)
	}
	if c == nil {
		return errorResult(model.NewError(model.KindNotFound, "conversation not found: "+req.ConversationID, nil))
	}

	if req.Value != nil {
		c.IsFavorite = *req.Value
	} else {
		c.IsFavorite = !c.IsFavorite
	}
	if c.IsFavorite {
		now := s.Merge.Now()
		c.FavoriteAt = &now
	} else {
		c.FavoriteAt = nil
	}
	if err := s.Store.UpsertConversation(ctx, *c); err != nil {
		return errorResult(err)
	}
	return successResult(c)
}

type updateTagsRequest struct {
	ConversationID string   `json:"conversationId"`
	Tags           []string `json:"tags"`
}

func (s *Surface) handleUpdateTags(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req updateTagsRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ConversationID == "" {
		return invalidFormat()
	}
	c, err := s.Tags.UpdateTags(ctx, req.ConversationID, req.Tags)
	if err != nil {
		return errorResult(err)
	}
	return successResult(c)
}

func (s *Surface) handleGetAllTags(ctx context.Context) json.RawMessage {
	tags, err := s.Tags.AllTags(ctx)
	if err != nil {
		return errorResult(err)
	}
	return successResult(tags)
}

type batchFetchRequest struct {
	Platform string `json:"platform"`
	Limit    *int   `json:"limit"`
}

func (s *Surface) handleBatchFetch(ctx context.Context, payload json.RawMessage) json.RawMessage {
	var req batchFetchRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Platform == "" {
		return invalidFormat()
	}
	platform, err := model.ParsePlatform(req.Platform)
	if err != nil {
		return invalidFormat()
	}

	progress, err := s.Batch.Run(ctx, platform, req.Limit)
	if err != nil {
		return errorResult(err)
	}

	go func() {
		for p := range progress {
			if s.Bus != nil {
				s.Bus.Publish(Event{Action: eventBatchFetchProgress, Payload: p})
			}
		}
	}()

	return successResult(map[string]bool{"started": true})
}

func (s *Surface) handleBatchCancel() json.RawMessage {
	s.Batch.Cancel()
	return successResult(map[string]bool{"cancelled": true})
}
