package iap

import (
	"fmt"
	"time"

	"github.com/subsync/subsync/app/models"
)

// CascadeOp tells the engine what to do to the user's entitlement grants
// after a subscription transition has been applied.
type CascadeOp int

const (
	// CascadeNone leaves existing grants untouched.
	CascadeNone CascadeOp = iota
	// CascadeGrant creates grants for the product's entitlements, skipping
	// ones that already exist for this subscription.
	CascadeGrant
	// CascadeExtend moves the expiry of this subscription's grants to the
	// subscription's current effective expiry, granting any that are missing.
	CascadeExtend
	// CascadeForceExpire immediately expires this subscription's grants that
	// still carry access.
	CascadeForceExpire
)

// applyTransition applies one normalized event to a subscription row and
// reports the entitlement cascade the engine must run. It is pure: no clock,
// no storage, only the row and the event. Staleness has already been checked
// by the caller.
func applyTransition(sub *models.Subscription, ev *StoreEvent, isNew bool) (CascadeOp, error) {
	// A purchase or renewal on a lapsed lineage is a restart. The old grants
	// were expired, so the cascade must grant fresh ones rather than stretch
	// rows that no longer carry access.
	restarted := !isNew && isLapsed(sub.Status)

	op := CascadeNone

	switch ev.Kind {
	case EventPurchased:
		sub.Status = models.SubscriptionStatusActive
		sub.PurchaseDate = ev.OccurredAt
		sub.ExpiresDate = ev.ExpiresAt
		sub.CancellationDate = nil
		sub.RenewalGracePeriodExpiresDate = nil
		sub.IsTrial = ev.IsTrial
		sub.IsIntroOffer = ev.IsIntroOffer
		applyEventMeta(sub, ev)
		op = CascadeGrant

	case EventRenewed:
		sub.Status = models.SubscriptionStatusActive
		if ev.ExpiresAt != nil {
			sub.ExpiresDate = ev.ExpiresAt
		}
		sub.CancellationDate = nil
		sub.RenewalGracePeriodExpiresDate = nil
		sub.IsTrial = ev.IsTrial
		applyEventMeta(sub, ev)
		if restarted || isNew {
			op = CascadeGrant
		} else {
			op = CascadeExtend
		}

	case EventExpired:
		sub.Status = models.SubscriptionStatusExpired
		sub.AutoRenew = false
		sub.RenewalGracePeriodExpiresDate = nil
		op = CascadeForceExpire

	case EventEnteredGrace:
		// Billing retry keeps the user entitled until the grace window ends.
		graceEnd := ev.GracePeriodExpiresAt
		if graceEnd == nil {
			graceEnd = ev.ExpiresAt
		}
		if graceEnd == nil {
			graceEnd = sub.ExpiresDate
		}
		if graceEnd == nil {
			return CascadeNone, fmt.Errorf("%w: grace period without any expiry", ErrMalformedEvent)
		}
		sub.Status = models.SubscriptionStatusGracePeriod
		sub.RenewalGracePeriodExpiresDate = graceEnd
		applyEventMeta(sub, ev)
		op = CascadeExtend

	case EventCancelled:
		// Soft: the user keeps access until the paid term lapses. Only the
		// renewal intent changes.
		t := ev.OccurredAt
		sub.Status = models.SubscriptionStatusCancelled
		sub.CancellationDate = &t
		sub.AutoRenew = false
		op = CascadeNone

	case EventAutoRenewChange:
		if ev.AutoRenew != nil {
			sub.AutoRenew = *ev.AutoRenew
		}
		op = CascadeNone

	case EventRefunded:
		// Hard: money went back, access goes with it.
		t := ev.OccurredAt
		sub.Status = models.SubscriptionStatusRefunded
		sub.CancellationDate = &t
		sub.AutoRenew = false
		op = CascadeForceExpire

	case EventExtendedExpiry:
		if ev.ExpiresAt == nil {
			return CascadeNone, fmt.Errorf("%w: expiry extension without new expiry", ErrMalformedEvent)
		}
		sub.ExpiresDate = ev.ExpiresAt
		// An extension onto an already expired term revives it. Other
		// statuses keep their renewal intent.
		if sub.Status == models.SubscriptionStatusExpired {
			sub.Status = models.SubscriptionStatusActive
		}
		op = CascadeExtend

	case EventPaused:
		// Account hold and pause both suspend access until the store reports
		// a recovery or restart.
		sub.Status = models.SubscriptionStatusPaused
		op = CascadeForceExpire

	default:
		return CascadeNone, fmt.Errorf("%w: event kind %q", ErrUnsupportedEvent, ev.Kind)
	}

	sub.LastEventAt = ev.OccurredAt
	return op, nil
}

// isLapsed reports whether a status means the user's grants have already been
// revoked or expired.
func isLapsed(status string) bool {
	switch status {
	case models.SubscriptionStatusExpired,
		models.SubscriptionStatusCancelled,
		models.SubscriptionStatusRefunded,
		models.SubscriptionStatusPaused:
		return true
	default:
		return false
	}
}

// effectiveExpiry is the instant until which the subscription entitles the
// user. Grace periods stretch it past the nominal term end. Nil means
// lifetime.
func effectiveExpiry(sub *models.Subscription) *time.Time {
	if sub.Status == models.SubscriptionStatusGracePeriod && sub.RenewalGracePeriodExpiresDate != nil {
		if sub.ExpiresDate == nil || sub.RenewalGracePeriodExpiresDate.After(*sub.ExpiresDate) {
			return sub.RenewalGracePeriodExpiresDate
		}
	}
	return sub.ExpiresDate
}

func applyEventMeta(sub *models.Subscription, ev *StoreEvent) {
	if ev.TransactionID != "" {
		sub.StoreTransactionID = ev.TransactionID
	}
	if ev.AutoRenew != nil {
		sub.AutoRenew = *ev.AutoRenew
	}
	if ev.PricePaid != nil {
		sub.PricePaid = ev.PricePaid
	}
	if ev.Currency != "" {
		sub.Currency = ev.Currency
	}
}
