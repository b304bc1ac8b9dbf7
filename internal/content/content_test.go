package content

import (
	"context"
	"strings"
	"testing"
	"time"

	"postbot/internal/config"
	"postbot/internal/outcome"
)

func managerWith(cfg *config.Config) *config.Manager {
	m := config.NewManager("unused.json")
	m.Commit(cfg)
	return m
}

func TestComposeResolvesBinding(t *testing.T) {
	t.Parallel()

	src := New(managerWith(&config.Config{
		Posts: map[string]config.PostConfig{
			"digest": {ChatID: -100123, Text: "Digest for {date}", DisablePreview: true},
		},
	}))

	post, err := src.Compose(context.Background(), "digest")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if post.ChatID != -100123 || !post.DisablePreview {
		t.Errorf("post = %+v", post)
	}
	want := "Digest for " + time.Now().Format("2006-01-02")
	if post.Text != want {
		t.Errorf("text = %q, want %q", post.Text, want)
	}
}

func TestComposeMissingBindingIsTerminal(t *testing.T) {
	t.Parallel()

	src := New(managerWith(&config.Config{Posts: map[string]config.PostConfig{}}))

	_, err := src.Compose(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error for unbound schedule")
	}
	code, ok := outcome.CodeOf(err)
	if !ok || code != outcome.CodeInvalidSettings {
		t.Fatalf("code = %v ok = %v, want INVALID_SETTINGS", code, ok)
	}
	if code.Retryable() {
		t.Error("missing binding must not be retried")
	}
}

func TestComposeNoConfigLoaded(t *testing.T) {
	t.Parallel()

	src := New(config.NewManager("unused.json"))
	_, err := src.Compose(context.Background(), "any")
	if err == nil || !strings.Contains(err.Error(), "no config loaded") {
		t.Fatalf("err = %v, want no-config error", err)
	}
}

func TestExpandPlaceholders(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 10, 1, 9, 5, 0, 0, time.UTC)
	got := expand("It is {time} on {date}. {unknown} stays.", now)
	want := "It is 09:05 on 2024-10-01. {unknown} stays."
	if got != want {
		t.Fatalf("expand = %q, want %q", got, want)
	}
}
