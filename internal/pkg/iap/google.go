package iap

import (
	"fmt"
	"time"

	"github.com/subsync/subsync/app/models"
)

// Google Play Real-time Developer Notification types we model.
// https://developer.android.com/google/play/billing/rtdn-reference
const (
	googleSubRecovered           = 1
	googleSubRenewed             = 2
	googleSubCanceled            = 3
	googleSubPurchased           = 4
	googleSubOnHold              = 5
	googleSubInGracePeriod       = 6
	googleSubRestarted           = 7
	googleSubPriceChangeConfirm  = 8
	googleSubDeferred            = 9
	googleSubPaused              = 10
	googleSubPauseScheduleChange = 11
	googleSubRevoked             = 12
	googleSubExpired             = 13

	googleOneTimePurchased = 1
	googleOneTimeCanceled  = 2
)

// GoogleNotification is an RTDN payload plus the purchase state the caller
// already fetched from the Play Developer API. The engine never talks to
// Google itself.
type GoogleNotification struct {
	Version         string                              `json:"version"`
	PackageName     string                              `json:"packageName"`
	EventTimeMillis int64                               `json:"eventTimeMillis,string"`
	Subscription    *GoogleSubscriptionNotification     `json:"subscriptionNotification,omitempty"`
	OneTimeProduct  *GoogleOneTimeProductNotification   `json:"oneTimeProductNotification,omitempty"`
	Test            *GoogleTestNotification             `json:"testNotification,omitempty"`
	Purchase        *GoogleSubscriptionPurchase         `json:"purchase,omitempty"`
}

type GoogleSubscriptionNotification struct {
	Version          string `json:"version"`
	NotificationType int    `json:"notificationType"`
	PurchaseToken    string `json:"purchaseToken"`
	SubscriptionID   string `json:"subscriptionId"`
}

type GoogleOneTimeProductNotification struct {
	Version          string `json:"version"`
	NotificationType int    `json:"notificationType"`
	PurchaseToken    string `json:"purchaseToken"`
	SKU              string `json:"sku"`
}

type GoogleTestNotification struct {
	Version string `json:"version"`
}

// GoogleSubscriptionPurchase mirrors the Play Developer API purchase
// resource, pre-fetched and folded into the notification by the caller.
type GoogleSubscriptionPurchase struct {
	StartTimeMillis             int64  `json:"startTimeMillis"`
	ExpiryTimeMillis            int64  `json:"expiryTimeMillis"`
	AutoRenewing                bool   `json:"autoRenewing"`
	PriceCurrencyCode           string `json:"priceCurrencyCode,omitempty"`
	PriceAmountMicros           *int64 `json:"priceAmountMicros,omitempty"`
	PaymentState                *int   `json:"paymentState,omitempty"` // 2 = free trial
	OrderID                     string `json:"orderId,omitempty"`
	ObfuscatedExternalAccountID string `json:"obfuscatedExternalAccountId,omitempty"`
	UserCancellationTimeMillis  *int64 `json:"userCancellationTimeMillis,omitempty"`
}

// NormalizeGoogle maps a Google RTDN notification onto the canonical
// StoreEvent. A nil event with nil error means the notification is advisory
// (test, price change, deferral, pause schedule) and was dropped.
func NormalizeGoogle(n *GoogleNotification) (*StoreEvent, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: empty google notification", ErrMalformedEvent)
	}
	if n.Test != nil {
		return nil, nil
	}

	switch {
	case n.Subscription != nil:
		return normalizeGoogleSubscription(n)
	case n.OneTimeProduct != nil:
		return normalizeGoogleOneTime(n)
	default:
		return nil, fmt.Errorf("%w: google notification without subscription or one-time payload", ErrMalformedEvent)
	}
}

func normalizeGoogleSubscription(n *GoogleNotification) (*StoreEvent, error) {
	sn := n.Subscription

	var kind EventKind
	switch sn.NotificationType {
	case googleSubPurchased:
		kind = EventPurchased
	case googleSubRenewed, googleSubRecovered, googleSubRestarted:
		kind = EventRenewed
	case googleSubCanceled:
		kind = EventCancelled
	case googleSubOnHold, googleSubPaused:
		kind = EventPaused
	case googleSubInGracePeriod:
		kind = EventEnteredGrace
	case googleSubRevoked:
		kind = EventRefunded
	case googleSubExpired:
		kind = EventExpired
	case googleSubPriceChangeConfirm, googleSubDeferred, googleSubPauseScheduleChange:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: google subscription notification type %d", ErrUnsupportedEvent, sn.NotificationType)
	}

	ev := &StoreEvent{
		Store:                 models.StoreGoogle,
		Kind:                  kind,
		StoreProductID:        sn.SubscriptionID,
		OriginalTransactionID: sn.PurchaseToken,
		TransactionID:         sn.PurchaseToken,
		AppUserToken:          sn.PurchaseToken,
	}
	if n.EventTimeMillis > 0 {
		ev.OccurredAt = time.UnixMilli(n.EventTimeMillis).UTC()
	}
	applyGooglePurchase(ev, n.Purchase)

	if err := requireIdentity(ev); err != nil {
		return nil, err
	}
	if ev.StoreProductID == "" {
		return nil, fmt.Errorf("%w: google notification without subscription id", ErrMalformedEvent)
	}
	// A subscription purchase always carries a term end. Without the folded-in
	// purchase resource a nil expiry would read as a lifetime grant.
	if kind == EventPurchased && ev.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: google subscription purchase without expiry", ErrMalformedEvent)
	}
	return ev, nil
}

func normalizeGoogleOneTime(n *GoogleNotification) (*StoreEvent, error) {
	on := n.OneTimeProduct

	var kind EventKind
	switch on.NotificationType {
	case googleOneTimePurchased:
		kind = EventPurchased
	case googleOneTimeCanceled:
		// A cancelled one-time purchase means the money went back; for a
		// non-renewing product that is a refund, not a soft cancel.
		kind = EventRefunded
	default:
		return nil, fmt.Errorf("%w: google one-time notification type %d", ErrUnsupportedEvent, on.NotificationType)
	}

	ev := &StoreEvent{
		Store:                 models.StoreGoogle,
		Kind:                  kind,
		StoreProductID:        on.SKU,
		OriginalTransactionID: on.PurchaseToken,
		TransactionID:         on.PurchaseToken,
		AppUserToken:          on.PurchaseToken,
		// One-time purchases have no expiry: entitlements are lifetime.
	}
	if n.EventTimeMillis > 0 {
		ev.OccurredAt = time.UnixMilli(n.EventTimeMillis).UTC()
	}
	if p := n.Purchase; p != nil {
		if p.OrderID != "" {
			ev.TransactionID = p.OrderID
		}
		if p.ObfuscatedExternalAccountID != "" {
			ev.AppUserToken = p.ObfuscatedExternalAccountID
		}
	}

	if err := requireIdentity(ev); err != nil {
		return nil, err
	}
	if ev.StoreProductID == "" {
		return nil, fmt.Errorf("%w: google one-time notification without sku", ErrMalformedEvent)
	}
	return ev, nil
}

func applyGooglePurchase(ev *StoreEvent, p *GoogleSubscriptionPurchase) {
	if p == nil {
		return
	}
	if p.OrderID != "" {
		ev.TransactionID = p.OrderID
	}
	if p.ObfuscatedExternalAccountID != "" {
		ev.AppUserToken = p.ObfuscatedExternalAccountID
	}
	if p.ExpiryTimeMillis > 0 {
		t := time.UnixMilli(p.ExpiryTimeMillis).UTC()
		ev.ExpiresAt = &t
	}
	auto := p.AutoRenewing
	ev.AutoRenew = &auto
	if p.PriceAmountMicros != nil {
		price := float64(*p.PriceAmountMicros) / 1e6
		ev.PricePaid = &price
		ev.Currency = p.PriceCurrencyCode
	}
	if p.PaymentState != nil && *p.PaymentState == 2 {
		ev.IsTrial = true
	}
}
