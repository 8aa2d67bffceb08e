package iap

import (
	"errors"
	"testing"
	"time"

	"github.com/subsync/subsync/app/models"
)

func appleTx() *AppleTransactionInfo {
	expires := int64(1767225600000) // 2026-01-01
	price := 9.99
	return &AppleTransactionInfo{
		TransactionID:         "tx-2",
		OriginalTransactionID: "orig-1",
		BundleID:              "com.example.app",
		ProductID:             "premium_monthly",
		PurchaseDate:          1764547200000,
		ExpiresDate:           &expires,
		AppAccountToken:       "user-token-1",
		Price:                 &price,
		Currency:              "USD",
	}
}

func TestNormalizeApple_KindMapping(t *testing.T) {
	tests := []struct {
		notificationType string
		want             EventKind
	}{
		{"SUBSCRIBED", EventPurchased},
		{"OFFER_REDEEMED", EventPurchased},
		{"DID_RENEW", EventRenewed},
		{"EXPIRED", EventExpired},
		{"GRACE_PERIOD_EXPIRED", EventExpired},
		{"DID_FAIL_TO_RENEW", EventEnteredGrace},
		{"REVOKE", EventCancelled},
		{"REFUND", EventRefunded},
		{"RENEWAL_EXTENDED", EventExtendedExpiry},
	}

	for _, tt := range tests {
		n := &AppleNotification{
			NotificationType: tt.notificationType,
			SignedDate:       1764633600000,
			Transaction:      appleTx(),
		}
		ev, err := NormalizeApple(n)
		if err != nil {
			t.Fatalf("NormalizeApple(%s) returned error: %v", tt.notificationType, err)
		}
		if ev == nil {
			t.Fatalf("NormalizeApple(%s) returned nil event", tt.notificationType)
		}
		if ev.Kind != tt.want {
			t.Fatalf("NormalizeApple(%s) kind = %q, want %q", tt.notificationType, ev.Kind, tt.want)
		}
		if ev.Store != models.StoreApple {
			t.Fatalf("NormalizeApple(%s) store = %q", tt.notificationType, ev.Store)
		}
	}
}

func TestNormalizeApple_FieldExtraction(t *testing.T) {
	n := &AppleNotification{
		NotificationType: "SUBSCRIBED",
		SignedDate:       1764633600000,
		Transaction:      appleTx(),
	}
	ev, err := NormalizeApple(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev.OriginalTransactionID != "orig-1" || ev.TransactionID != "tx-2" {
		t.Fatalf("transaction ids = %q / %q", ev.OriginalTransactionID, ev.TransactionID)
	}
	if ev.StoreProductID != "premium_monthly" {
		t.Fatalf("store product id = %q", ev.StoreProductID)
	}
	if ev.AppUserToken != "user-token-1" {
		t.Fatalf("app user token = %q", ev.AppUserToken)
	}
	if ev.OccurredAt != time.UnixMilli(1764633600000).UTC() {
		t.Fatalf("occurred at = %v", ev.OccurredAt)
	}
	if ev.ExpiresAt == nil || *ev.ExpiresAt != time.UnixMilli(1767225600000).UTC() {
		t.Fatalf("expires at = %v", ev.ExpiresAt)
	}
	if ev.PricePaid == nil || *ev.PricePaid != 9.99 || ev.Currency != "USD" {
		t.Fatalf("price = %v %q", ev.PricePaid, ev.Currency)
	}
}

func TestNormalizeApple_IntroOffer(t *testing.T) {
	offerType := 1
	tx := appleTx()
	tx.OfferType = &offerType
	n := &AppleNotification{
		NotificationType: "SUBSCRIBED",
		SignedDate:       1764633600000,
		Transaction:      tx,
	}
	ev, err := NormalizeApple(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.IsIntroOffer {
		t.Fatalf("expected intro offer flag")
	}
}

func TestNormalizeApple_AdvisoryTypesDropped(t *testing.T) {
	for _, nt := range []string{"PRICE_INCREASE", "REFUND_DECLINED", "CONSUMPTION_REQUEST", "DID_CHANGE_RENEWAL_PREF", "TEST"} {
		ev, err := NormalizeApple(&AppleNotification{NotificationType: nt})
		if err != nil {
			t.Fatalf("advisory %s returned error: %v", nt, err)
		}
		if ev != nil {
			t.Fatalf("advisory %s returned event %+v", nt, ev)
		}
	}
}

func TestNormalizeApple_UnknownType(t *testing.T) {
	_, err := NormalizeApple(&AppleNotification{NotificationType: "SOMETHING_NEW", Transaction: appleTx()})
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("expected ErrUnsupportedEvent, got %v", err)
	}
}

func TestNormalizeApple_MissingTransaction(t *testing.T) {
	_, err := NormalizeApple(&AppleNotification{NotificationType: "DID_RENEW", SignedDate: 1764633600000})
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestNormalizeApple_RenewalStatusChange(t *testing.T) {
	grace := int64(1767225600000)
	n := &AppleNotification{
		NotificationType: "DID_CHANGE_RENEWAL_STATUS",
		SignedDate:       1764633600000,
		Renewal: &AppleRenewalInfo{
			OriginalTransactionID:  "orig-1",
			AutoRenewStatus:        0,
			GracePeriodExpiresDate: &grace,
			ProductID:              "premium_monthly",
		},
	}
	ev, err := NormalizeApple(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventAutoRenewChange {
		t.Fatalf("kind = %q", ev.Kind)
	}
	if ev.AutoRenew == nil || *ev.AutoRenew {
		t.Fatalf("auto renew = %v, want disabled", ev.AutoRenew)
	}
	// TransactionID falls back to the lineage id when no transaction payload exists.
	if ev.TransactionID != "orig-1" {
		t.Fatalf("transaction id = %q", ev.TransactionID)
	}
	if ev.GracePeriodExpiresAt == nil {
		t.Fatalf("expected grace period expiry")
	}
}

func TestNormalizeApple_RenewalStatusChangeWithoutRenewalInfo(t *testing.T) {
	_, err := NormalizeApple(&AppleNotification{
		NotificationType: "DID_CHANGE_RENEWAL_STATUS",
		SignedDate:       1764633600000,
	})
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestNormalizeApple_OccurredAtFallsBackToPurchaseDate(t *testing.T) {
	n := &AppleNotification{
		NotificationType: "SUBSCRIBED",
		Transaction:      appleTx(),
	}
	ev, err := NormalizeApple(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.OccurredAt != time.UnixMilli(1764547200000).UTC() {
		t.Fatalf("occurred at = %v", ev.OccurredAt)
	}
}

func TestEventKey_Deterministic(t *testing.T) {
	at := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	a := StoreEvent{TransactionID: "tx-1", Kind: EventRenewed, OccurredAt: at}
	b := StoreEvent{TransactionID: "tx-1", Kind: EventRenewed, OccurredAt: at}
	if a.EventKey() != b.EventKey() {
		t.Fatalf("event keys differ: %q vs %q", a.EventKey(), b.EventKey())
	}
	c := StoreEvent{TransactionID: "tx-1", Kind: EventExpired, OccurredAt: at}
	if a.EventKey() == c.EventKey() {
		t.Fatalf("different kinds must produce different keys")
	}
}
