package telegram

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Config controls the Bot API publisher.
type Config struct {
	Token string `json:"token" yaml:"token"`

	// RatePerSec caps outgoing sendMessage calls. Telegram throttles bots
	// around 30 msg/s globally; the default stays well under that.
	RatePerSec int `json:"rate_per_sec" yaml:"rate_per_sec"`

	// ParseMode applies to every post ("HTML", "MarkdownV2", or empty).
	ParseMode string `json:"parse_mode" yaml:"parse_mode"`

	// Offline skips the getMe probe on startup. Used by tests.
	Offline bool `json:"-" yaml:"-"`
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 5
	}
	return c
}

// Post is a rendered message ready for delivery.
type Post struct {
	ChatID         int64
	Text           string
	DisablePreview bool
}

// ContentSource renders the post body for a schedule at delivery time.
// Implementations signal non-retryable conditions (missing channel binding,
// broken template) with an *outcome.Error carrying a terminal code; any
// other error is treated as a transient generation failure.
type ContentSource interface {
	Compose(ctx context.Context, scheduleID string) (*Post, error)
}

// sender is the slice of *tele.Bot the publisher uses. Tests substitute it.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	RatePerSec int
	Sent       uint64
	Failed     uint64
	LastSentAt time.Time
}
