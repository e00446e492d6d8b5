package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	base := New(KindNotFound, "Game not found")
	wrapped := fmt.Errorf("load game: %w", base)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("expected not_found, got %s", got)
	}
	if !Is(wrapped, KindNotFound) {
		t.Fatalf("Is should match wrapped kind")
	}
	if got := MessageOf(wrapped, "fallback"); got != "Game not found" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected internal, got %s", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %s", got)
	}
	if got := MessageOf(errors.New("boom"), "fallback"); got != "fallback" {
		t.Fatalf("expected fallback message, got %q", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(KindUnavailable, "storage unavailable", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("wrapped error should unwrap to cause")
	}
	if err.Error() != "unavailable: storage unavailable: db down" {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}
