package telegram

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	"postbot/internal/outcome"
	logx "postbot/pkg/logx"
)

// Publisher sends scheduled posts to Telegram channels. It implements the
// dispatch queue's Executor.
type Publisher struct {
	cfg     Config
	log     logx.Logger
	source  ContentSource
	bot     sender
	limiter *rate.Limiter

	sent       uint64
	failed     uint64
	lastSentAt atomic.Int64 // unix millis
}

func New(cfg Config, source ContentSource, log logx.Logger) (*Publisher, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if source == nil {
		return nil, errors.New("content source is nil")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Publisher{
		cfg:    cfg,
		log:    log,
		source: source,
		bot:    b,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}, nil
}

// Execute renders and delivers one post. The returned outcome tells the
// dispatch queue whether a retry is worthwhile.
func (p *Publisher) Execute(ctx context.Context, scheduleID string) outcome.Outcome {
	post, err := p.source.Compose(ctx, scheduleID)
	if err != nil {
		atomic.AddUint64(&p.failed, 1)
		if code, ok := outcome.CodeOf(err); ok {
			return outcome.Failure(code, err.Error())
		}
		return outcome.Failuref(outcome.CodeContentGeneration, "compose post: %v", err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		atomic.AddUint64(&p.failed, 1)
		return outcome.Failuref(outcome.CodeRateLimited, "rate limiter: %v", err)
	}

	opts := &tele.SendOptions{
		ParseMode:             p.cfg.ParseMode,
		DisableWebPagePreview: post.DisablePreview,
	}
	if _, err := p.bot.Send(&tele.Chat{ID: post.ChatID}, post.Text, opts); err != nil {
		atomic.AddUint64(&p.failed, 1)
		code := classify(err)
		p.log.Warn("send failed",
			logx.String("schedule", scheduleID),
			logx.Int64("chat", post.ChatID),
			logx.String("code", string(code)),
			logx.Err(err))
		return outcome.Failuref(code, "send post: %v", err)
	}

	atomic.AddUint64(&p.sent, 1)
	p.lastSentAt.Store(time.Now().UnixMilli())
	p.log.Info("post delivered",
		logx.String("schedule", scheduleID), logx.Int64("chat", post.ChatID))
	return outcome.Success()
}

// classify maps a Bot API error onto the retry taxonomy. Flood control and
// chat lookups get specific codes; any 403 means the bot lost access to the
// channel and retrying cannot help.
func classify(err error) outcome.Code {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return outcome.CodeRateLimited
	}
	if errors.Is(err, tele.ErrChatNotFound) {
		return outcome.CodeChannelNotFound
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Code == 403 {
		return outcome.CodeChannelDisconnected
	}
	return outcome.CodeTelegramAPI
}

func (p *Publisher) Snapshot() Snapshot {
	var last time.Time
	if ms := p.lastSentAt.Load(); ms != 0 {
		last = time.UnixMilli(ms)
	}
	return Snapshot{
		RatePerSec: p.cfg.RatePerSec,
		Sent:       atomic.LoadUint64(&p.sent),
		Failed:     atomic.LoadUint64(&p.failed),
		LastSentAt: last,
	}
}
