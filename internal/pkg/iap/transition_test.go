package iap

import (
	"errors"
	"testing"
	"time"

	"github.com/subsync/subsync/app/models"
)

var (
	t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	t2 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func activeSub() *models.Subscription {
	exp := t1
	return &models.Subscription{
		ID:                    1,
		UserID:                10,
		ProductID:             20,
		Store:                 models.StoreApple,
		OriginalTransactionID: "orig-1",
		Status:                models.SubscriptionStatusActive,
		PurchaseDate:          t0,
		ExpiresDate:           &exp,
		AutoRenew:             true,
		LastEventAt:           t0,
	}
}

func TestApplyTransition_Purchase(t *testing.T) {
	sub := &models.Subscription{Store: models.StoreApple, OriginalTransactionID: "orig-1"}
	exp := t1
	ev := &StoreEvent{Kind: EventPurchased, OccurredAt: t0, ExpiresAt: &exp, IsTrial: true}

	op, err := applyTransition(sub, ev, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op != CascadeGrant {
		t.Fatalf("op = %v, want grant", op)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("status = %q", sub.Status)
	}
	if sub.ExpiresDate == nil || !sub.ExpiresDate.Equal(t1) {
		t.Fatalf("expires = %v", sub.ExpiresDate)
	}
	if !sub.IsTrial {
		t.Fatalf("expected trial flag")
	}
	if !sub.LastEventAt.Equal(t0) {
		t.Fatalf("last event at = %v", sub.LastEventAt)
	}
}

func TestApplyTransition_RenewExtends(t *testing.T) {
	sub := activeSub()
	exp := t2
	ev := &StoreEvent{Kind: EventRenewed, OccurredAt: t1, ExpiresAt: &exp}

	op, err := applyTransition(sub, ev, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op != CascadeExtend {
		t.Fatalf("op = %v, want extend", op)
	}
	if sub.ExpiresDate == nil || !sub.ExpiresDate.Equal(t2) {
		t.Fatalf("expires = %v", sub.ExpiresDate)
	}
}

func TestApplyTransition_RenewOnLapsedIsRestart(t *testing.T) {
	for _, status := range []string{
		models.SubscriptionStatusExpired,
		models.SubscriptionStatusCancelled,
		models.SubscriptionStatusRefunded,
		models.SubscriptionStatusPaused,
	} {
		sub := activeSub()
		sub.Status = status
		exp := t2
		ev := &StoreEvent{Kind: EventRenewed, OccurredAt: t1, ExpiresAt: &exp}

		op, err := applyTransition(sub, ev, false)
		if err != nil {
			t.Fatalf("status %s: unexpected error: %v", status, err)
		}
		if op != CascadeGrant {
			t.Fatalf("status %s: op = %v, want grant (restart)", status, op)
		}
		if sub.Status != models.SubscriptionStatusActive {
			t.Fatalf("status %s: new status = %q", status, sub.Status)
		}
	}
}

func TestApplyTransition_Expired(t *testing.T) {
	sub := activeSub()
	ev := &StoreEvent{Kind: EventExpired, OccurredAt: t1}

	op, err := applyTransition(sub, ev, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op != CascadeForceExpire {
		t.Fatalf("op = %v, want force expire", op)
	}
	if sub.Status != models.SubscriptionStatusExpired {
		t.Fatalf("status = %q", sub.Status)
	}
	if sub.AutoRenew {
		t.Fatalf("auto renew must be off after expiry")
	}
}

func TestApplyTransition_GraceFallbackChain(t *testing.T) {
	// Grace window from the event wins.
	sub := activeSub()
	grace := t2
	op, err := applyTransition(sub, &StoreEvent{Kind: EventEnteredGrace, OccurredAt: t1, GracePeriodExpiresAt: &grace}, false)
	if err != nil || op != CascadeExtend {
		t.Fatalf("op=%v err=%v", op, err)
	}
	if sub.Status != models.SubscriptionStatusGracePeriod {
		t.Fatalf("status = %q", sub.Status)
	}
	if sub.RenewalGracePeriodExpiresDate == nil || !sub.RenewalGracePeriodExpiresDate.Equal(t2) {
		t.Fatalf("grace expiry = %v", sub.RenewalGracePeriodExpiresDate)
	}

	// Falls back to the event expiry, then the stored expiry.
	sub = activeSub()
	exp := t2
	if _, err := applyTransition(sub, &StoreEvent{Kind: EventEnteredGrace, OccurredAt: t1, ExpiresAt: &exp}, false); err != nil {
		t.Fatalf("event expiry fallback: %v", err)
	}
	if sub.RenewalGracePeriodExpiresDate == nil || !sub.RenewalGracePeriodExpiresDate.Equal(t2) {
		t.Fatalf("grace expiry = %v", sub.RenewalGracePeriodExpiresDate)
	}

	sub = activeSub()
	if _, err := applyTransition(sub, &StoreEvent{Kind: EventEnteredGrace, OccurredAt: t1}, false); err != nil {
		t.Fatalf("stored expiry fallback: %v", err)
	}
	if sub.RenewalGracePeriodExpiresDate == nil || !sub.RenewalGracePeriodExpiresDate.Equal(t1) {
		t.Fatalf("grace expiry = %v", sub.RenewalGracePeriodExpiresDate)
	}

	// No expiry anywhere is malformed.
	sub = activeSub()
	sub.ExpiresDate = nil
	if _, err := applyTransition(sub, &StoreEvent{Kind: EventEnteredGrace, OccurredAt: t1}, false); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestApplyTransition_CancelIsSoft(t *testing.T) {
	sub := activeSub()
	ev := &StoreEvent{Kind: EventCancelled, OccurredAt: t1}

	op, err := applyTransition(sub, ev, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op != CascadeNone {
		t.Fatalf("op = %v, cancellation must not touch grants", op)
	}
	if sub.Status != models.SubscriptionStatusCancelled {
		t.Fatalf("status = %q", sub.Status)
	}
	if sub.CancellationDate == nil || !sub.CancellationDate.Equal(t1) {
		t.Fatalf("cancellation date = %v", sub.CancellationDate)
	}
	if sub.AutoRenew {
		t.Fatalf("auto renew must be off after cancel")
	}
	// The paid term is untouched.
	if sub.ExpiresDate == nil || !sub.ExpiresDate.Equal(t1) {
		t.Fatalf("expires = %v", sub.ExpiresDate)
	}
}

func TestApplyTransition_RefundIsHard(t *testing.T) {
	sub := activeSub()
	ev := &StoreEvent{Kind: EventRefunded, OccurredAt: t1}

	op, err := applyTransition(sub, ev, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op != CascadeForceExpire {
		t.Fatalf("op = %v, want force expire", op)
	}
	if sub.Status != models.SubscriptionStatusRefunded {
		t.Fatalf("status = %q", sub.Status)
	}
}

func TestApplyTransition_AutoRenewChange(t *testing.T) {
	sub := activeSub()
	off := false
	op, err := applyTransition(sub, &StoreEvent{Kind: EventAutoRenewChange, OccurredAt: t1, AutoRenew: &off}, false)
	if err != nil || op != CascadeNone {
		t.Fatalf("op=%v err=%v", op, err)
	}
	if sub.AutoRenew {
		t.Fatalf("auto renew should be off")
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("status must not change, got %q", sub.Status)
	}
}

func TestApplyTransition_ExtendedExpiry(t *testing.T) {
	sub := activeSub()
	exp := t2
	op, err := applyTransition(sub, &StoreEvent{Kind: EventExtendedExpiry, OccurredAt: t1, ExpiresAt: &exp}, false)
	if err != nil || op != CascadeExtend {
		t.Fatalf("op=%v err=%v", op, err)
	}
	if sub.ExpiresDate == nil || !sub.ExpiresDate.Equal(t2) {
		t.Fatalf("expires = %v", sub.ExpiresDate)
	}

	// An extension landing on an expired term reactivates it; leaving the
	// status lapsed would hand out grants under a non-entitling status.
	expired := activeSub()
	expired.Status = models.SubscriptionStatusExpired
	op, err = applyTransition(expired, &StoreEvent{Kind: EventExtendedExpiry, OccurredAt: t1, ExpiresAt: &exp}, false)
	if err != nil || op != CascadeExtend {
		t.Fatalf("op=%v err=%v", op, err)
	}
	if expired.Status != models.SubscriptionStatusActive {
		t.Fatalf("status = %q, want active after extension", expired.Status)
	}

	// Cancelled stays cancelled: only the term end moves.
	cancelled := activeSub()
	cancelled.Status = models.SubscriptionStatusCancelled
	if _, err := applyTransition(cancelled, &StoreEvent{Kind: EventExtendedExpiry, OccurredAt: t1, ExpiresAt: &exp}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != models.SubscriptionStatusCancelled {
		t.Fatalf("status = %q, want cancelled preserved", cancelled.Status)
	}

	if _, err := applyTransition(activeSub(), &StoreEvent{Kind: EventExtendedExpiry, OccurredAt: t1}, false); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("extension without expiry: %v", err)
	}
}

func TestApplyTransition_Paused(t *testing.T) {
	sub := activeSub()
	op, err := applyTransition(sub, &StoreEvent{Kind: EventPaused, OccurredAt: t1}, false)
	if err != nil || op != CascadeForceExpire {
		t.Fatalf("op=%v err=%v", op, err)
	}
	if sub.Status != models.SubscriptionStatusPaused {
		t.Fatalf("status = %q", sub.Status)
	}
}

func TestEffectiveExpiry(t *testing.T) {
	sub := activeSub()
	if got := effectiveExpiry(sub); got == nil || !got.Equal(t1) {
		t.Fatalf("effective expiry = %v", got)
	}

	grace := t2
	sub.Status = models.SubscriptionStatusGracePeriod
	sub.RenewalGracePeriodExpiresDate = &grace
	if got := effectiveExpiry(sub); got == nil || !got.Equal(t2) {
		t.Fatalf("grace effective expiry = %v", got)
	}

	sub.ExpiresDate = nil
	if got := effectiveExpiry(sub); got == nil || !got.Equal(t2) {
		t.Fatalf("grace-only effective expiry = %v", got)
	}
}
