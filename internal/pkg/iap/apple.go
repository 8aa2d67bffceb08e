package iap

import (
	"fmt"
	"strings"
	"time"

	"github.com/subsync/subsync/app/models"
)

// AppleNotification is an App Store Server Notification (v2) after the
// external decoder has verified the JWS envelopes and decoded their payloads.
// Signature verification never happens here.
type AppleNotification struct {
	NotificationType string                `json:"notificationType"`
	Subtype          string                `json:"subtype,omitempty"`
	NotificationUUID string                `json:"notificationUUID"`
	SignedDate       int64                 `json:"signedDate"` // unix millis
	Transaction      *AppleTransactionInfo `json:"transaction,omitempty"`
	Renewal          *AppleRenewalInfo     `json:"renewal,omitempty"`
}

// AppleTransactionInfo is the decoded signedTransactionInfo payload.
type AppleTransactionInfo struct {
	TransactionID         string   `json:"transactionId"`
	OriginalTransactionID string   `json:"originalTransactionId"`
	BundleID              string   `json:"bundleId"`
	ProductID             string   `json:"productId"`
	PurchaseDate          int64    `json:"purchaseDate"` // unix millis
	ExpiresDate           *int64   `json:"expiresDate,omitempty"`
	RevocationDate        *int64   `json:"revocationDate,omitempty"`
	AppAccountToken       string   `json:"appAccountToken,omitempty"`
	OfferType             *int     `json:"offerType,omitempty"` // 1 = intro offer
	Price                 *float64 `json:"price,omitempty"`
	Currency              string   `json:"currency,omitempty"`
}

// AppleRenewalInfo is the decoded signedRenewalInfo payload.
type AppleRenewalInfo struct {
	OriginalTransactionID  string `json:"originalTransactionId"`
	AutoRenewProductID     string `json:"autoRenewProductId,omitempty"`
	AutoRenewStatus        int    `json:"autoRenewStatus"` // 1 = on
	ExpirationIntent       *int   `json:"expirationIntent,omitempty"`
	GracePeriodExpiresDate *int64 `json:"gracePeriodExpiresDate,omitempty"` // unix millis
	ProductID              string `json:"productId,omitempty"`
}

// Advisory notification types carry no entitlement-relevant change. They are
// acknowledged and dropped without reaching the engine.
var appleAdvisoryTypes = map[string]struct{}{
	"PRICE_INCREASE":          {},
	"REFUND_DECLINED":         {},
	"CONSUMPTION_REQUEST":     {},
	"DID_CHANGE_RENEWAL_PREF": {},
	"TEST":                    {},
}

// NormalizeApple maps an Apple notification onto the canonical StoreEvent.
// A nil event with nil error means the notification is advisory and was
// intentionally dropped.
func NormalizeApple(n *AppleNotification) (*StoreEvent, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: empty apple notification", ErrMalformedEvent)
	}

	nt := strings.ToUpper(strings.TrimSpace(n.NotificationType))
	if _, ok := appleAdvisoryTypes[nt]; ok {
		return nil, nil
	}

	var kind EventKind
	switch nt {
	case "SUBSCRIBED", "OFFER_REDEEMED":
		kind = EventPurchased
	case "DID_RENEW":
		kind = EventRenewed
	case "EXPIRED", "GRACE_PERIOD_EXPIRED":
		kind = EventExpired
	case "DID_FAIL_TO_RENEW":
		kind = EventEnteredGrace
	case "REVOKE":
		kind = EventCancelled
	case "DID_CHANGE_RENEWAL_STATUS":
		kind = EventAutoRenewChange
	case "REFUND":
		kind = EventRefunded
	case "RENEWAL_EXTENDED":
		kind = EventExtendedExpiry
	default:
		return nil, fmt.Errorf("%w: apple notification type %q", ErrUnsupportedEvent, n.NotificationType)
	}

	// DID_CHANGE_RENEWAL_STATUS only carries renewal info; everything else
	// needs the transaction payload for identifiers.
	tx := n.Transaction
	if tx == nil && kind != EventAutoRenewChange {
		return nil, fmt.Errorf("%w: apple %s without transaction info", ErrMalformedEvent, nt)
	}

	ev := &StoreEvent{
		Store: models.StoreApple,
		Kind:  kind,
	}

	if tx != nil {
		ev.StoreProductID = tx.ProductID
		ev.OriginalTransactionID = tx.OriginalTransactionID
		ev.TransactionID = tx.TransactionID
		ev.AppUserToken = tx.AppAccountToken
		ev.PricePaid = tx.Price
		ev.Currency = tx.Currency
		if tx.OfferType != nil && *tx.OfferType == 1 {
			ev.IsIntroOffer = true
		}
		if tx.ExpiresDate != nil {
			t := time.UnixMilli(*tx.ExpiresDate).UTC()
			ev.ExpiresAt = &t
		}
	}

	if r := n.Renewal; r != nil {
		if ev.OriginalTransactionID == "" {
			ev.OriginalTransactionID = r.OriginalTransactionID
		}
		if ev.StoreProductID == "" {
			ev.StoreProductID = r.ProductID
		}
		auto := r.AutoRenewStatus == 1
		ev.AutoRenew = &auto
		if r.GracePeriodExpiresDate != nil {
			t := time.UnixMilli(*r.GracePeriodExpiresDate).UTC()
			ev.GracePeriodExpiresAt = &t
		}
	}

	if ev.TransactionID == "" {
		ev.TransactionID = ev.OriginalTransactionID
	}

	switch {
	case n.SignedDate > 0:
		ev.OccurredAt = time.UnixMilli(n.SignedDate).UTC()
	case tx != nil && tx.PurchaseDate > 0:
		ev.OccurredAt = time.UnixMilli(tx.PurchaseDate).UTC()
	}

	if kind == EventAutoRenewChange && ev.AutoRenew == nil {
		return nil, fmt.Errorf("%w: apple %s without renewal info", ErrMalformedEvent, nt)
	}

	if err := requireIdentity(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func requireIdentity(ev *StoreEvent) error {
	if ev.OriginalTransactionID == "" || ev.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction identifiers", ErrMalformedEvent)
	}
	if ev.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing event timestamp", ErrMalformedEvent)
	}
	return nil
}
