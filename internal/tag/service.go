// Package tag implements TagService: the global tag set, per-conversation
// tag updates, and the membership toggle used for UI tag filtering.
package tag

import (
	"context"
	"sync"

	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

// Service wraps a Store with an eagerly-invalidated cache of the global
// tag view, so repeated reads between mutations don't re-scan every
// conversation's tags.
type Service struct {
	store store.Store

	mu       sync.RWMutex
	cache    []string
	cacheSet bool

	filterMu sync.Mutex
	filter   map[string]bool
}

func New(st store.Store) *Service {
	return &Service{store: st, filter: make(map[string]bool)}
}

// AllTags returns the sorted, deduplicated union of tags across every
// conversation, served from cache until the next mutation invalidates it.
func (s *Service) AllTags(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	if s.cacheSet {
		defer s.mu.RUnlock()
		return s.cache, nil
	}
	s.mu.RUnlock()

	tags, err := s.store.AllTags(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache = tags
	s.cacheSet = true
	s.mu.Unlock()
	return tags, nil
}

// UpdateTags canonicalizes the given tags (trim, drop empty, stable
// dedup), persists them onto the conversation, and invalidates the
// global tag view.
func (s *Service) UpdateTags(ctx context.Context, conversationID string, tags []string) (*model.Conversation, error) {
	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.NewError(model.KindNotFound, "conversation not found: "+conversationID, nil)
	}

	c.Tags = model.CanonicalizeTags(tags)
	if err := s.store.UpsertConversation(ctx, *c); err != nil {
		return nil, err
	}
	s.invalidate()
	return c, nil
}

// ToggleTagFilter flips membership of tag in the caller's active filter
// set, a pure UI-state concern (which tags the current search view
// AND-filters by); it has no effect on stored data.
func (s *Service) ToggleTagFilter(tag string) map[string]bool {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()
	if s.filter[tag] {
		delete(s.filter, tag)
	} else {
		s.filter[tag] = true
	}
	out := make(map[string]bool, len(s.filter))
	for k, v := range s.filter {
		out[k] = v
	}
	return out
}

// InvalidateOnClear drops the cached tag view. The store does not call
// it; callers that change conversations outside this service (bulk
// clears, ingest through DispatchSurface) call it to keep the cached
// view consistent.
func (s *Service) InvalidateOnClear() {
	s.invalidate()
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.cacheSet = false
	s.cache = nil
	s.mu.Unlock()
}
