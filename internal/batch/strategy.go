package batch

import (
	"context"
	"time"

	"github.com/flowKKo/chat-central-sub002/internal/config"
	"github.com/flowKKo/chat-central-sub002/internal/model"
	"github.com/flowKKo/chat-central-sub002/internal/store"
)

// Mode selects how the fetcher context obtains a conversation's body:
// dispatching an in-page fetch call, or navigating to the conversation
// (Gemini, which may require a dedicated background context).
type Mode string

const (
	ModeDispatchFetch Mode = "dispatch_fetch"
	ModeNavigate      Mode = "navigate"
)

// Strategy is the per-platform tuning and precondition table.
type Strategy struct {
	Mode          Mode
	PollInterval  time.Duration
	PollTimeout   time.Duration
	FetchInterval time.Duration
	Precheck      func(ctx context.Context, st store.Store) error
}

// Strategies builds the closed per-platform strategy table from cfg.
func Strategies(cfg config.Config) map[model.Platform]Strategy {
	return map[model.Platform]Strategy{
		model.PlatformClaude: {
			Mode:          ModeDispatchFetch,
			PollInterval:  cfg.Claude.PollInterval,
			PollTimeout:   cfg.Claude.PollTimeout,
			FetchInterval: cfg.Claude.FetchInterval,
			Precheck:      claudePrecheck,
		},
		model.PlatformChatGPT: {
			Mode:          ModeDispatchFetch,
			PollInterval:  cfg.ChatGPT.PollInterval,
			PollTimeout:   cfg.ChatGPT.PollTimeout,
			FetchInterval: cfg.ChatGPT.FetchInterval,
		},
		model.PlatformGemini: {
			Mode:          ModeNavigate,
			PollInterval:  cfg.Gemini.PollInterval,
			PollTimeout:   cfg.Gemini.PollTimeout,
			FetchInterval: cfg.Gemini.FetchInterval,
		},
	}
}

// KVClaudeOrgID is the persistent KV key holding the opaque org-id
// extracted from ingested Claude URLs ("/api/organizations/<uuid>/...").
const KVClaudeOrgID = "claude_org_id"

func claudePrecheck(ctx context.Context, st store.Store) error {
	v, ok, err := st.GetKV(ctx, KVClaudeOrgID)
	if err != nil {
		return err
	}
	if !ok || v == "" {
		return model.NewError(model.KindPrecheck, "claude org-id not yet captured", nil)
	}
	return nil
}
