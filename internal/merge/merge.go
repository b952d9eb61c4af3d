// Package merge implements MergeEngine: combining an incoming normalized
// conversation record with any existing one, maintaining the detail-status
// lattice and platform-specific tie-breaks.
package merge

import (
	"regexp"
	"strings"

	"github.com/flowKKo/chat-central-sub002/internal/model"
)

// geminiHandleTitle matches an internal Gemini conversation-handle that
// sometimes leaks into the title field, e.g. "rc_7ab3c".
//
// Known to over-suppress legitimate short titles when combined with the
// length<=6 rule below; kept as-is per design decision, not to be
// loosened without field evidence.
var geminiHandleTitle = regexp.MustCompile(`(?i)^(r|rc|c)_[a-z0-9]+$`)

// Engine merges conversation records per the rules below. It holds no
// state; Now is injectable for deterministic tests.
type Engine struct {
	Now func() int64
}

func New(now func() int64) *Engine {
	return &Engine{Now: now}
}

// Merge combines incoming (I) into existing (E), producing M. If existing
// is nil, incoming is returned as-is (first ingest).
func (e *Engine) Merge(existing *model.Conversation, incoming model.Conversation) model.Conversation {
	if existing == nil {
		return incoming
	}
	E, I := *existing, incoming
	var M model.Conversation

	M.ID = E.ID
	M.Platform = E.Platform
	M.OriginalID = E.OriginalID

	M.CreatedAt = min64(E.CreatedAt, I.CreatedAt)
	M.UpdatedAt = max64(E.UpdatedAt, I.UpdatedAt)
	M.SyncedAt = max64(E.SyncedAt, I.SyncedAt)

	M.MessageCount = maxU32(E.MessageCount, I.MessageCount)

	M.IsFavorite = E.IsFavorite || I.IsFavorite
	switch {
	case !E.IsFavorite && I.IsFavorite:
		if I.FavoriteAt != nil {
			v := *I.FavoriteAt
			M.FavoriteAt = &v
		} else {
			now := e.now()
			M.FavoriteAt = &now
		}
	case !M.IsFavorite:
		M.FavoriteAt = nil
	default:
		M.FavoriteAt = E.FavoriteAt
	}

	M.DetailStatus, M.DetailSyncedAt = mergeDetail(E, I)
	if M.DetailSyncedAt == nil && M.DetailStatus.Rank() > model.DetailNone.Rank() {
		now := e.now()
		M.DetailSyncedAt = &now
	}

	M.Preview = mergePreview(E, I)
	M.Title = mergeTitle(E, I)

	if E.URL != "" {
		M.URL = E.URL
	} else {
		M.URL = I.URL
	}

	M.Summary = I.Summary
	if M.Summary == "" {
		M.Summary = E.Summary
	}

	M.Tags = model.UnionTags(E.Tags, I.Tags)

	return M
}

func (e *Engine) now() int64 {
	if e.Now != nil {
		return e.Now()
	}
	return nowMillis()
}

// Now exposes the engine's clock for callers outside the merge path
// (e.g. DispatchSurface stamping favoriteAt) that need the same
// injectable-for-tests time source.
func (e *Engine) Now() int64 {
	return e.now()
}

// mergeDetail implements the lattice with its demotion exception: a
// newer but less-complete update demotes full to partial rather than
// losing the previously-captured body outright.
func mergeDetail(E, I model.Conversation) (model.DetailStatus, *int64) {
	eRank, iRank := E.DetailStatus.Rank(), I.DetailStatus.Rank()

	if I.UpdatedAt > E.UpdatedAt && E.DetailStatus == model.DetailFull && iRank < eRank {
		return model.DetailPartial, E.DetailSyncedAt
	}

	var status model.DetailStatus
	if iRank >= eRank {
		status = I.DetailStatus
	} else {
		status = E.DetailStatus
	}

	var synced *int64
	if status.Rank() > eRank {
		synced = maxPtr(E.DetailSyncedAt, I.DetailSyncedAt)
	} else {
		synced = E.DetailSyncedAt
	}
	return status, synced
}

func mergePreview(E, I model.Conversation) string {
	if I.UpdatedAt > E.UpdatedAt && I.Preview != "" {
		return I.Preview
	}
	if E.Preview != "" {
		return E.Preview
	}
	return I.Preview
}

func mergeTitle(E, I model.Conversation) string {
	if E.Platform == model.PlatformGemini && E.Title != "" && I.Title != "" {
		if geminiGuardApplies(E.Title, I.Title, I.Preview) {
			return E.Title
		}
	}
	if I.Title != "" {
		return I.Title
	}
	return E.Title
}

func geminiGuardApplies(existingTitle, incomingTitle, incomingPreview string) bool {
	if geminiHandleTitle.MatchString(incomingTitle) {
		return true
	}
	nt, np := normalizeForPrefix(incomingTitle), normalizeForPrefix(incomingPreview)
	if nt != "" && np != "" && (strings.HasPrefix(np, nt) || strings.HasPrefix(nt, np)) {
		return true
	}
	if len([]rune(incomingTitle)) <= 6 && incomingTitle != existingTitle {
		return true
	}
	return false
}

func normalizeForPrefix(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func maxPtr(a, b *int64) *int64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a > *b:
		return a
	default:
		return b
	}
}
