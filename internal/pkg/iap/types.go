package iap

import (
	"fmt"
	"time"
)

// EventKind is the canonical event vocabulary the reconciliation engine
// consumes. The normalizers translate vendor notification types into these;
// nothing past the normalizer ever inspects vendor vocabulary.
type EventKind string

const (
	EventPurchased       EventKind = "purchased"
	EventRenewed         EventKind = "renewed"
	EventExpired         EventKind = "expired"
	EventEnteredGrace    EventKind = "entered_grace"
	EventCancelled       EventKind = "cancelled"
	EventAutoRenewChange EventKind = "auto_renew_changed"
	EventRefunded        EventKind = "refunded"
	EventExtendedExpiry  EventKind = "extended_expiry"
	EventPaused          EventKind = "paused"
)

// StoreEvent is one normalized storefront notification. Timestamps are the
// event-reported times, not processing time.
type StoreEvent struct {
	Store                 string
	Kind                  EventKind
	StoreProductID        string
	OriginalTransactionID string
	TransactionID         string
	OccurredAt            time.Time

	// Optional payload carried by some kinds.
	ExpiresAt            *time.Time
	AutoRenew            *bool
	GracePeriodExpiresAt *time.Time
	PricePaid            *float64
	Currency             string
	IsTrial              bool
	IsIntroOffer         bool

	// AppUserToken identifies the user on first sight of a purchase lineage
	// (Apple appAccountToken, Google obfuscated account id or purchase token).
	AppUserToken string
}

// EventKey identifies the logical event for deduplication. Two deliveries
// with the same store, transaction id, kind and occurred-at are the same
// event and must not be applied twice.
func (ev StoreEvent) EventKey() string {
	return fmt.Sprintf("%s|%s|%d", ev.TransactionID, ev.Kind, ev.OccurredAt.Unix())
}
