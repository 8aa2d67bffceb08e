package iap

import (
	"errors"
	"testing"
	"time"

	"github.com/subsync/subsync/app/models"
)

func googleSubNotification(notificationType int) *GoogleNotification {
	return &GoogleNotification{
		Version:         "1.0",
		PackageName:     "com.example.app",
		EventTimeMillis: 1764633600000,
		Subscription: &GoogleSubscriptionNotification{
			Version:          "1.0",
			NotificationType: notificationType,
			PurchaseToken:    "token-abc",
			SubscriptionID:   "premium_monthly",
		},
	}
}

func TestNormalizeGoogle_SubscriptionKindMapping(t *testing.T) {
	tests := []struct {
		notificationType int
		want             EventKind
	}{
		{1, EventRenewed},   // RECOVERED
		{2, EventRenewed},   // RENEWED
		{3, EventCancelled}, // CANCELED
		{4, EventPurchased}, // PURCHASED
		{5, EventPaused},    // ON_HOLD
		{6, EventEnteredGrace},
		{7, EventRenewed}, // RESTARTED
		{10, EventPaused},
		{12, EventRefunded}, // REVOKED
		{13, EventExpired},
	}

	for _, tt := range tests {
		n := googleSubNotification(tt.notificationType)
		if tt.want == EventPurchased {
			// Subscription purchases must carry the folded-in term end.
			n.Purchase = &GoogleSubscriptionPurchase{ExpiryTimeMillis: 1767225600000}
		}
		ev, err := NormalizeGoogle(n)
		if err != nil {
			t.Fatalf("NormalizeGoogle(type %d) returned error: %v", tt.notificationType, err)
		}
		if ev == nil {
			t.Fatalf("NormalizeGoogle(type %d) returned nil event", tt.notificationType)
		}
		if ev.Kind != tt.want {
			t.Fatalf("NormalizeGoogle(type %d) kind = %q, want %q", tt.notificationType, ev.Kind, tt.want)
		}
		if ev.Store != models.StoreGoogle {
			t.Fatalf("store = %q", ev.Store)
		}
		if ev.OriginalTransactionID != "token-abc" {
			t.Fatalf("original transaction id = %q", ev.OriginalTransactionID)
		}
	}
}

func TestNormalizeGoogle_AdvisoryTypesDropped(t *testing.T) {
	for _, nt := range []int{8, 9, 11} {
		ev, err := NormalizeGoogle(googleSubNotification(nt))
		if err != nil {
			t.Fatalf("advisory type %d returned error: %v", nt, err)
		}
		if ev != nil {
			t.Fatalf("advisory type %d returned event %+v", nt, ev)
		}
	}

	ev, err := NormalizeGoogle(&GoogleNotification{Test: &GoogleTestNotification{Version: "1.0"}})
	if err != nil || ev != nil {
		t.Fatalf("test notification: ev=%+v err=%v", ev, err)
	}
}

func TestNormalizeGoogle_PurchaseFolding(t *testing.T) {
	micros := int64(4990000)
	paymentState := 2
	n := googleSubNotification(2)
	n.Purchase = &GoogleSubscriptionPurchase{
		ExpiryTimeMillis:            1767225600000,
		AutoRenewing:                true,
		PriceCurrencyCode:           "EUR",
		PriceAmountMicros:           &micros,
		PaymentState:                &paymentState,
		OrderID:                     "GPA.1234-5678",
		ObfuscatedExternalAccountID: "app-user-9",
	}

	ev, err := NormalizeGoogle(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.TransactionID != "GPA.1234-5678" {
		t.Fatalf("transaction id = %q", ev.TransactionID)
	}
	if ev.AppUserToken != "app-user-9" {
		t.Fatalf("app user token = %q", ev.AppUserToken)
	}
	if ev.ExpiresAt == nil || *ev.ExpiresAt != time.UnixMilli(1767225600000).UTC() {
		t.Fatalf("expires at = %v", ev.ExpiresAt)
	}
	if ev.AutoRenew == nil || !*ev.AutoRenew {
		t.Fatalf("auto renew = %v", ev.AutoRenew)
	}
	if ev.PricePaid == nil || *ev.PricePaid != 4.99 || ev.Currency != "EUR" {
		t.Fatalf("price = %v %q", ev.PricePaid, ev.Currency)
	}
	if !ev.IsTrial {
		t.Fatalf("expected trial flag from payment state 2")
	}
}

func TestNormalizeGoogle_TokenFallbacks(t *testing.T) {
	ev, err := NormalizeGoogle(googleSubNotification(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Without purchase details both identifiers fall back to the token.
	if ev.TransactionID != "token-abc" || ev.AppUserToken != "token-abc" {
		t.Fatalf("fallbacks = %q / %q", ev.TransactionID, ev.AppUserToken)
	}
}

func TestNormalizeGoogle_OneTime(t *testing.T) {
	n := &GoogleNotification{
		PackageName:     "com.example.app",
		EventTimeMillis: 1764633600000,
		OneTimeProduct: &GoogleOneTimeProductNotification{
			NotificationType: 1,
			PurchaseToken:    "token-otp",
			SKU:              "lifetime_unlock",
		},
	}
	ev, err := NormalizeGoogle(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventPurchased {
		t.Fatalf("kind = %q", ev.Kind)
	}
	if ev.ExpiresAt != nil {
		t.Fatalf("one-time purchase must not carry an expiry, got %v", ev.ExpiresAt)
	}
	if ev.StoreProductID != "lifetime_unlock" {
		t.Fatalf("store product id = %q", ev.StoreProductID)
	}

	n.OneTimeProduct.NotificationType = 2
	ev, err = NormalizeGoogle(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventRefunded {
		t.Fatalf("cancelled one-time purchase kind = %q, want refunded", ev.Kind)
	}
}

func TestNormalizeGoogle_Malformed(t *testing.T) {
	if _, err := NormalizeGoogle(nil); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("nil notification: %v", err)
	}
	if _, err := NormalizeGoogle(&GoogleNotification{PackageName: "com.example.app"}); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("empty notification: %v", err)
	}

	n := googleSubNotification(4)
	n.Subscription.SubscriptionID = ""
	if _, err := NormalizeGoogle(n); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("missing subscription id: %v", err)
	}

	n = googleSubNotification(4)
	n.EventTimeMillis = 0
	if _, err := NormalizeGoogle(n); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("missing event time: %v", err)
	}

	// A subscription purchase without the folded-in purchase resource has no
	// term end and must not become a lifetime grant.
	if _, err := NormalizeGoogle(googleSubNotification(4)); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("subscription purchase without expiry: %v", err)
	}
}

func TestNormalizeGoogle_UnknownType(t *testing.T) {
	if _, err := NormalizeGoogle(googleSubNotification(42)); !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("expected ErrUnsupportedEvent, got %v", err)
	}
}
