package outcome

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	t.Parallel()

	terminal := []Code{CodeChannelNotFound, CodeChannelDisconnected, CodeInvalidSettings, CodeConflictWithDeal}
	for _, c := range terminal {
		if c.Retryable() {
			t.Errorf("%s should be terminal", c)
		}
	}
	retryable := []Code{CodeTelegramAPI, CodeRateLimited, CodeContentGeneration, Code("SOMETHING_NEW")}
	for _, c := range retryable {
		if !c.Retryable() {
			t.Errorf("%s should be retryable", c)
		}
	}
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	base := NewError(CodeInvalidSettings, "no channel bound", nil)
	wrapped := fmt.Errorf("compose: %w", base)

	code, ok := CodeOf(wrapped)
	if !ok || code != CodeInvalidSettings {
		t.Fatalf("CodeOf = %v %v, want INVALID_SETTINGS", code, ok)
	}

	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Fatal("plain error should carry no code")
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("template parse")
	e := NewError(CodeContentGeneration, "render failed", inner)
	if !errors.Is(e, inner) {
		t.Fatal("wrapped error lost")
	}
	want := "CONTENT_GENERATION_FAILED: render failed: template parse"
	if e.Error() != want {
		t.Fatalf("message = %q, want %q", e.Error(), want)
	}
}

func TestFailuref(t *testing.T) {
	t.Parallel()

	out := Failuref(CodeRateLimited, "retry after %ds", 17)
	if out.OK || out.Code != CodeRateLimited || out.Message != "retry after 17s" {
		t.Fatalf("outcome = %+v", out)
	}
}
