package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const sampleJSON = `{
  "telegram": {"token": "123:abc", "rate_per_sec": 10, "parse_mode": "HTML"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "storage": {"driver": "sqlite", "path": "./postbot.db", "busy_timeout": "5s"},
  "scanner": {"interval": "30s"},
  "dispatch": {"workers": 4, "max_attempts": 3, "initial_delay": "60s", "backoff_multiplier": 2, "max_delay": "1h"},
  "posts": {
    "daily-digest": {"chat_id": -1001234, "text": "Good morning!", "disable_preview": true}
  }
}`

func TestParseJSON(t *testing.T) {
	t.Parallel()

	m := NewManager(writeTemp(t, "config.json", sampleJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.RatePerSec != 10 {
		t.Errorf("telegram section = %+v", cfg.Telegram)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("storage.driver = %q", cfg.Storage.Driver)
	}
	post, ok := cfg.Posts["daily-digest"]
	if !ok || post.ChatID != -1001234 || !post.DisablePreview {
		t.Errorf("posts = %+v", cfg.Posts)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	yml := `
telegram:
  token: "123:abc"
logging:
  level: info
  console: true
storage:
  driver: memory
scanner:
  interval: 1m
dispatch:
  workers: 2
posts:
  promo:
    chat_id: -100999
    text: "New drop at noon"
`
	m := NewManager(writeTemp(t, "config.yaml", yml))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.Posts["promo"].ChatID != -100999 {
		t.Errorf("yaml config = %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	m := NewManager(writeTemp(t, "config.json", `{"telegram": {"token": "t", "pool_timeout": "10s"}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	m := NewManager(writeTemp(t, "config.json", `{"telegram": {"token": "t"}} {"extra": 1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "123:abc"},
			Posts: map[string]PostConfig{
				"p1": {ChatID: -1, Text: "hi"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing token", func(c *Config) { c.Telegram.Token = " " }, "telegram.token"},
		{"bad interval", func(c *Config) { c.Scanner.Interval = "soon" }, "scanner.interval"},
		{"negative delay", func(c *Config) { c.Dispatch.InitialDelay = "-5s" }, "dispatch.initial_delay"},
		{"fractional multiplier", func(c *Config) { c.Dispatch.BackoffMultiplier = 0.5 }, "backoff_multiplier"},
		{"post without chat", func(c *Config) { c.Posts["p1"] = PostConfig{Text: "hi"} }, "chat_id"},
		{"post without text", func(c *Config) { c.Posts["p1"] = PostConfig{ChatID: -1} }, "text"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestScanIntervalDefault(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	d, err := cfg.ScanInterval()
	if err != nil {
		t.Fatalf("scan interval: %v", err)
	}
	if d != time.Minute {
		t.Fatalf("default interval = %v, want 1m", d)
	}

	cfg.Scanner.Interval = "15s"
	d, err = cfg.ScanInterval()
	if err != nil || d != 15*time.Second {
		t.Fatalf("interval = %v err = %v, want 15s", d, err)
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()

	m := NewManager("unused.json")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)

	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("received wrong config pointer")
		}
	default:
		t.Fatal("no config delivered")
	}

	// Full buffer: the newest config replaces the stale one.
	stale, fresh := &Config{}, &Config{}
	m.publish(stale)
	m.publish(fresh)
	select {
	case got := <-ch:
		if got != fresh {
			t.Fatal("expected the newest config after overflow")
		}
	default:
		t.Fatal("no config delivered after overflow")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after unsubscribe")
	}
}
