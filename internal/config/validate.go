package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks constraints the JSON decoder cannot express. It is wired
// as the Watch validator so a bad edit never replaces a good running config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if cfg.Telegram.RatePerSec < 0 {
		return fmt.Errorf("telegram.rate_per_sec must be >= 0")
	}

	durations := []struct {
		path, raw string
	}{
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"scanner.interval", cfg.Scanner.Interval},
		{"dispatch.exec_timeout", cfg.Dispatch.ExecTimeout},
		{"dispatch.initial_delay", cfg.Dispatch.InitialDelay},
		{"dispatch.max_delay", cfg.Dispatch.MaxDelay},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}

	if cfg.Dispatch.Workers < 0 || cfg.Dispatch.QueueSize < 0 || cfg.Dispatch.MaxAttempts < 0 {
		return fmt.Errorf("dispatch: counts must be >= 0")
	}
	if m := cfg.Dispatch.BackoffMultiplier; m != 0 && m < 1 {
		return fmt.Errorf("dispatch.backoff_multiplier must be >= 1")
	}

	for id, post := range cfg.Posts {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("posts: empty schedule id")
		}
		if post.ChatID == 0 {
			return fmt.Errorf("posts.%s: chat_id is required", id)
		}
		if strings.TrimSpace(post.Text) == "" {
			return fmt.Errorf("posts.%s: text is required", id)
		}
	}
	return nil
}

// ScanInterval returns the parsed scanner interval, defaulting to one minute.
func (c *Config) ScanInterval() (time.Duration, error) {
	return ParseDurationOrDefault("scanner.interval", c.Scanner.Interval, time.Minute)
}
