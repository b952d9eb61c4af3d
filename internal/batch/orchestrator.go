// Package batch implements BatchOrchestrator: cooperative scheduling
// against an external tab-hosted fetcher, cancellation tokens, per-item
// polling, and a bundled export on completion.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowKKo/chat-central-sub002/internal/config"
	"github.com/flowKKo/chat-central-sub002/internal/export"
	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/obs"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

// Status is the closed set of progress event statuses.
type Status string

const (
	StatusFetching  Status = "fetching"
	StatusDone      Status = "done"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Progress is one broadcast BATCH_FETCH_PROGRESS event.
type Progress struct {
	Status    Status
	Completed int
	Total     int
	Error     string
	Archive   []byte
	Filename  string
}

// Fetcher is the external cooperating process BatchOrchestrator drives:
// a "fetcher context" in which an opaque fetch_detail(url) operation can
// be dispatched. Responses are delivered out-of-band via the normal
// ingest path; Orchestrator never observes them directly, only polls
// the Store.
type Fetcher interface {
	// NewContext creates a fetcher context for platform, returning an
	// opaque context id.
	NewContext(ctx context.Context, platform model.Platform) (string, error)
	// CloseContext tears down a context created by NewContext.
	CloseContext(ctx context.Context, contextID string) error
	// DispatchFetch requests that url's detail be fetched within
	// contextID. The result arrives later via the normal ingest path.
	DispatchFetch(ctx context.Context, contextID, url string) error
}

// Orchestrator drives one batch-fetch pass at a time. Starting a new
// pass replaces the active token; the previous pass's loop observes the
// mismatch at its next yield point and stops, emitting "cancelled".
type Orchestrator struct {
	store    store.Store
	fetcher  Fetcher
	codec    *export.Codec
	cfg      config.Config

	mu          sync.Mutex
	activeToken int64
}

func New(st store.Store, fetcher Fetcher, codec *export.Codec, cfg config.Config) *Orchestrator {
	return &Orchestrator{store: st, fetcher: fetcher, codec: codec, cfg: cfg}
}

// Cancel advances the active token so it no longer matches any running
// pass; an in-flight Run loop observes the mismatch at its next yield
// point.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	o.activeToken++
	o.mu.Unlock()
}

func (o *Orchestrator) newToken() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeToken++
	return o.activeToken
}

func (o *Orchestrator) tokenMatches(t int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeToken == t
}

// Run starts the eight-step batch-fetch algorithm for platform in a
// goroutine, streaming Progress events on the returned channel, which is
// closed when the pass ends (done, error, or cancelled).
func (o *Orchestrator) Run(ctx context.Context, platform model.Platform, limit *int) (<-chan Progress, error) {
	if !platform.Valid() {
		return nil, model.NewError(model.KindValidation, "unknown platform", nil)
	}
	strategy, ok := Strategies(o.cfg)[platform]
	if !ok {
		return nil, model.NewError(model.KindValidation, "no strategy for platform", nil)
	}
	if o.fetcher == nil {
		return nil, model.NewError(model.KindNoContext, "no fetcher configured for this process", nil)
	}

	token := o.newToken()
	progress := make(chan Progress, 8)

	go o.run(ctx, token, platform, limit, strategy, progress)
	return progress, nil
}

func (o *Orchestrator) run(ctx context.Context, token int64, platform model.Platform, limit *int, strategy Strategy, progress chan<- Progress) {
	defer close(progress)

	toFetch, err := o.enumerate(ctx, platform, limit)
	if err != nil {
		progress <- Progress{Status: StatusError, Error: err.Error()}
		return
	}

	if strategy.Precheck != nil {
		if err := strategy.Precheck(ctx, o.store); err != nil {
			progress <- Progress{Status: StatusError, Error: err.Error()}
			return
		}
	}

	contextID, err := o.fetcher.NewContext(ctx, platform)
	if err != nil {
		progress <- Progress{Status: StatusError, Error: model.NewError(model.KindNoContext, "fetcher context unavailable", err).Error()}
		return
	}
	defer o.fetcher.CloseContext(ctx, contextID)

	total := len(toFetch)
	completed := 0
	progress <- Progress{Status: StatusFetching, Completed: completed, Total: total}

	for _, conv := range toFetch {
		if !o.tokenMatches(token) {
			progress <- Progress{Status: StatusCancelled, Completed: completed, Total: total}
			return
		}

		url := detailURL(conv)
		if err := o.dispatchWithRetry(ctx, contextID, platform, url); err != nil {
			obs.Warnf(ctx, "batch: dispatch failed for %s after retry: %v", conv.ID, err)
			completed++
			progress <- Progress{Status: StatusFetching, Completed: completed, Total: total}
			continue
		}

		if err := o.pollForFull(ctx, conv.ID, strategy.PollInterval, strategy.PollTimeout); err != nil {
			obs.Warnf(ctx, "batch: poll timed out for %s: %v", conv.ID, err)
		}

		completed++
		progress <- Progress{Status: StatusFetching, Completed: completed, Total: total}

		select {
		case <-ctx.Done():
			progress <- Progress{Status: StatusCancelled, Completed: completed, Total: total}
			return
		case <-time.After(strategy.FetchInterval):
		}
	}

	if !o.tokenMatches(token) {
		progress <- Progress{Status: StatusCancelled, Completed: completed, Total: total}
		return
	}

	archive, filename, err := o.buildExport(ctx, platform, limit, toFetch)
	if err != nil {
		progress <- Progress{Status: StatusError, Error: err.Error(), Completed: completed, Total: total}
		return
	}
	progress <- Progress{Status: StatusDone, Completed: completed, Total: total, Archive: archive, Filename: filename}
}

func (o *Orchestrator) enumerate(ctx context.Context, platform model.Platform, limit *int) ([]model.Conversation, error) {
	p := platform
	page := store.Page{Offset: 0, Limit: 1 << 20}
	listed, err := o.store.ListConversations(ctx, store.Filter{Platform: &p}, store.OrderUpdatedAtDesc, page)
	if err != nil {
		return nil, err
	}
	var toFetch []model.Conversation
	for _, c := range listed.Conversations {
		if c.DetailStatus != model.DetailFull {
			toFetch = append(toFetch, c)
		}
	}
	if limit != nil && *limit < len(toFetch) {
		toFetch = toFetch[:*limit]
	}
	return toFetch, nil
}

func (o *Orchestrator) dispatchWithRetry(ctx context.Context, contextID string, platform model.Platform, url string) error {
	err := o.fetcher.DispatchFetch(ctx, contextID, url)
	if err == nil {
		return nil
	}
	newContextID, cerr := o.fetcher.NewContext(ctx, platform)
	if cerr != nil {
		return model.NewError(model.KindFetch, "retry context unavailable", cerr)
	}
	defer o.fetcher.CloseContext(ctx, newContextID)
	return o.fetcher.DispatchFetch(ctx, newContextID, url)
}

func (o *Orchestrator) pollForFull(ctx context.Context, conversationID string, interval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		c, err := o.store.GetConversation(ctx, conversationID)
		if err != nil {
			return err
		}
		if c != nil && c.DetailStatus == model.DetailFull {
			return nil
		}
		if time.Now().After(deadline) {
			return model.NewError(model.KindTimeout, "poll timed out for "+conversationID, nil)
		}
		select {
		case <-ctx.Done():
			return model.NewError(model.KindCancelled, "context cancelled during poll", ctx.Err())
		case <-time.After(interval):
		}
	}
}

// buildExport assembles the archive for a completed pass. When limit is
// nil the export covers every conversation on the platform ("full"
// scope); when limit is set, it is restricted to the processed set
// (toFetch, re-fetched fresh from the store to pick up the detail
// just written by the pass), so the archive reflects what was actually
// fetched rather than the whole platform.
func (o *Orchestrator) buildExport(ctx context.Context, platform model.Platform, limit *int, toFetch []model.Conversation) ([]byte, string, error) {
	var conversations []model.Conversation
	scope := "full"

	if limit != nil {
		scope = "selected"
		conversations = make([]model.Conversation, 0, len(toFetch))
		for _, c := range toFetch {
			fresh, err := o.store.GetConversation(ctx, c.ID)
			if err != nil {
				return nil, "", err
			}
			if fresh != nil {
				conversations = append(conversations, *fresh)
			}
		}
	} else {
		p := platform
		page := store.Page{Offset: 0, Limit: 1 << 20}
		listed, err := o.store.ListConversations(ctx, store.Filter{Platform: &p}, store.OrderUpdatedAtDesc, page)
		if err != nil {
			return nil, "", err
		}
		conversations = listed.Conversations
	}

	msgsByConv := make(map[string][]model.Message, len(conversations))
	for _, c := range conversations {
		msgs, err := o.store.GetMessagesByConversation(ctx, c.ID)
		if err != nil {
			return nil, "", err
		}
		msgsByConv[c.ID] = msgs
	}

	archive, _, err := o.codec.Export(conversations, msgsByConv, scope)
	if err != nil {
		return nil, "", err
	}
	return archive, export.Filename(string(platform), time.Now()), nil
}

func detailURL(c model.Conversation) string {
	prefixes := c.Platform.BaseURLPrefixes()
	base := ""
	if len(prefixes) > 0 {
		base = prefixes[0]
	}
	return fmt.Sprintf("%sc/%s", base, c.OriginalID)
}
