package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(Conflictf("gift already claimed")); got != KindConflict {
		t.Fatalf("expected conflict kind, got %q", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty kind for plain error, got %q", got)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := NotFoundf("gift 42 not found")
	wrapped := fmt.Errorf("claim gift: %w", err)

	if !IsKind(wrapped, KindNotFound) {
		t.Fatalf("expected not-found kind through wrapping")
	}
	if IsKind(wrapped, KindConflict) {
		t.Fatalf("unexpected conflict kind")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindDependency, cause, "identity lookup")

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable via errors.Is")
	}
	if err.Error() != "identity lookup: connection refused" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestIsMatchesByKind(t *testing.T) {
	if !errors.Is(Paymentf("capture declined"), Paymentf("")) {
		t.Fatalf("expected payment errors to match by kind")
	}
	if errors.Is(Paymentf("capture declined"), Validationf("")) {
		t.Fatalf("payment error must not match validation kind")
	}
}
