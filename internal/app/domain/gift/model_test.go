package gift

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusClaimed, StatusExpired, StatusCancelled}

	for _, next := range []Status{StatusClaimed, StatusExpired, StatusCancelled} {
		if !StatusPending.CanTransitionTo(next) {
			t.Fatalf("PENDING must allow transition to %s", next)
		}
	}
	if StatusPending.CanTransitionTo(StatusPending) {
		t.Fatalf("PENDING must not re-enter PENDING")
	}

	for _, from := range []Status{StatusClaimed, StatusExpired, StatusCancelled} {
		if !from.Terminal() {
			t.Fatalf("%s must be terminal", from)
		}
		for _, next := range all {
			if from.CanTransitionTo(next) {
				t.Fatalf("terminal %s must not transition to %s", from, next)
			}
		}
	}
	if StatusPending.Terminal() {
		t.Fatalf("PENDING must not be terminal")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now().UTC()
	g := Gift{SentAt: now, ExpiresAt: now.Add(ClaimWindow)}

	if g.Expired(now) {
		t.Fatalf("gift must not be expired at send time")
	}
	if g.Expired(g.ExpiresAt) {
		t.Fatalf("gift must still be claimable exactly at the deadline")
	}
	if !g.Expired(g.ExpiresAt.Add(time.Second)) {
		t.Fatalf("gift must be expired after the deadline")
	}
}
