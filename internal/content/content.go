// Package content renders post bodies from the config's channel bindings.
package content

import (
	"context"
	"strings"
	"time"

	"postbot/internal/config"
	"postbot/internal/outcome"
	"postbot/internal/telegram"
)

// Source resolves a schedule id to its configured post. It reads through the
// config manager so a live reload changes bindings without a restart.
type Source struct {
	mgr *config.Manager
}

func New(mgr *config.Manager) *Source {
	return &Source{mgr: mgr}
}

func (s *Source) Compose(_ context.Context, scheduleID string) (*telegram.Post, error) {
	cfg := s.mgr.Get()
	if cfg == nil {
		return nil, outcome.NewError(outcome.CodeInvalidSettings, "no config loaded", nil)
	}
	post, ok := cfg.Posts[scheduleID]
	if !ok {
		return nil, outcome.NewError(outcome.CodeInvalidSettings,
			"no post binding for schedule "+scheduleID, nil)
	}
	if post.ChatID == 0 {
		return nil, outcome.NewError(outcome.CodeInvalidSettings,
			"no channel bound for schedule "+scheduleID, nil)
	}
	return &telegram.Post{
		ChatID:         post.ChatID,
		Text:           expand(post.Text, time.Now()),
		DisablePreview: post.DisablePreview,
	}, nil
}

// expand substitutes the {date} and {time} placeholders. Unknown braces pass
// through untouched.
func expand(text string, now time.Time) string {
	r := strings.NewReplacer(
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("15:04"),
	)
	return r.Replace(text)
}
