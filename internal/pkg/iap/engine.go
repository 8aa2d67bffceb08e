package iap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/subsync/subsync/app/models"
)

// Engine applies normalized store events to subscriptions and cascades the
// outcome into entitlement grants. All writes for one purchase lineage are
// serialized and run inside a single DB transaction.
type Engine struct {
	repo       Repository
	locks      *keyedMutex
	invalidate func(userID uint)
	now        func() time.Time
}

// Result reports what processing an event did.
type Result struct {
	// Duplicate means the event was already applied and nothing changed.
	Duplicate bool
	// Stale means the event was older than the last applied one and was
	// discarded.
	Stale bool
	// Subscription is the row after the transition, nil for duplicates and
	// stale events.
	Subscription *models.Subscription
}

// NewEngine creates an engine from an injected repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{
		repo:  repo,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// NewEngineFromDB creates an engine from a GORM DB handle.
func NewEngineFromDB(db *gorm.DB) *Engine {
	return NewEngine(NewRepository(db))
}

// SetCacheInvalidator registers a callback run after a user's entitlements
// changed, used to drop cached entitlement checks.
func (e *Engine) SetCacheInvalidator(fn func(userID uint)) {
	e.invalidate = fn
}

// Event kinds that may establish a subscription row we have never seen.
// Renewals and expirations are tolerated because the storefront may deliver
// them for lineages that predate this system.
func createsIfAbsent(kind EventKind) bool {
	switch kind {
	case EventPurchased, EventRenewed, EventExpired:
		return true
	default:
		return false
	}
}

// Process applies one normalized event. rawPayload is the vendor notification
// body, persisted for audit and replay. Duplicate deliveries and stale events
// return a Result, not an error; taxonomy errors are wrapped sentinels the
// caller maps onto HTTP codes.
func (e *Engine) Process(ctx context.Context, ev *StoreEvent, rawPayload []byte) (*Result, error) {
	_ = ctx
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", ErrMalformedEvent)
	}
	if ev.Store != models.StoreApple && ev.Store != models.StoreGoogle {
		return nil, fmt.Errorf("%w: store %q", ErrMalformedEvent, ev.Store)
	}
	if err := requireIdentity(ev); err != nil {
		return nil, err
	}

	record := &models.StoreWebhookEvent{
		Store:       ev.Store,
		EventKey:    ev.EventKey(),
		EventType:   string(ev.Kind),
		PayloadJSON: string(rawPayload),
	}
	created, stored, err := e.repo.CreateWebhookEventIfNotExists(record)
	if err != nil {
		return nil, err
	}
	// A prior delivery that finished cleanly makes this one a no-op. A prior
	// attempt that failed gets reprocessed under the stored row.
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return &Result{Duplicate: true}, nil
	}

	unlock := e.locks.Lock(ev.Store + "|" + ev.OriginalTransactionID)
	defer unlock()

	result := &Result{}
	err = e.repo.Transaction(func(tx Repository) error {
		sub, isNew, err := e.locateSubscription(tx, ev)
		if err != nil {
			return err
		}

		// Out-of-order delivery: an event older than the last applied one
		// must not rewind state.
		if !isNew && ev.OccurredAt.Before(sub.LastEventAt) {
			return errStaleEvent
		}

		op, err := applyTransition(sub, ev, isNew)
		if err != nil {
			return err
		}
		if err := tx.UpsertSubscription(sub); err != nil {
			return err
		}
		if err := e.cascade(tx, sub, ev, op); err != nil {
			return err
		}

		result.Subscription = sub
		return nil
	})

	switch {
	case err == nil:
		if markErr := e.repo.MarkWebhookProcessed(stored.ID, ""); markErr != nil {
			return nil, markErr
		}
		if e.invalidate != nil && result.Subscription != nil {
			e.invalidate(result.Subscription.UserID)
		}
		return result, nil

	case errors.Is(err, errStaleEvent):
		// Discarded by design; the delivery itself is done.
		if markErr := e.repo.MarkWebhookProcessed(stored.ID, ""); markErr != nil {
			return nil, markErr
		}
		result.Stale = true
		return result, nil

	default:
		// Record the failure so a redelivery reprocesses instead of
		// short-circuiting on the dedup row.
		_ = e.repo.MarkWebhookProcessed(stored.ID, err.Error())
		return nil, err
	}
}

// locateSubscription finds the lineage row for the event, materializing the
// subscription (and if needed the user) when the event kind tolerates a first
// sight.
func (e *Engine) locateSubscription(tx Repository, ev *StoreEvent) (*models.Subscription, bool, error) {
	sub, err := tx.SubscriptionByOriginalTransaction(ev.Store, ev.OriginalTransactionID)
	if err == nil {
		return sub, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if !createsIfAbsent(ev.Kind) {
		return nil, false, fmt.Errorf("%w: %s %s", ErrSubscriptionNotFound, ev.Store, ev.OriginalTransactionID)
	}

	product, err := tx.ProductByStoreID(ev.Store, ev.StoreProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: %s %q", ErrUnknownProduct, ev.Store, ev.StoreProductID)
		}
		return nil, false, err
	}

	user, err := e.locateUser(tx, ev)
	if err != nil {
		return nil, false, err
	}

	return &models.Subscription{
		UserID:                user.ID,
		ProductID:             product.ID,
		Store:                 ev.Store,
		OriginalTransactionID: ev.OriginalTransactionID,
		PurchaseDate:          ev.OccurredAt,
	}, true, nil
}

// locateUser resolves the app user token to a user, creating one on first
// purchase. Tolerated create kinds other than a purchase must not invent
// users out of thin air.
func (e *Engine) locateUser(tx Repository, ev *StoreEvent) (*models.User, error) {
	if ev.AppUserToken == "" {
		if ev.Kind == EventPurchased {
			return nil, fmt.Errorf("%w: purchase without app user token", ErrMalformedEvent)
		}
		return nil, fmt.Errorf("%w: no user for %s %s", ErrSubscriptionNotFound, ev.Store, ev.OriginalTransactionID)
	}

	user, err := tx.UserByAppUserID(ev.AppUserToken)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &models.User{AppUserID: ev.AppUserToken}
	if err := tx.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// cascade mirrors the subscription transition onto the user's grants.
func (e *Engine) cascade(tx Repository, sub *models.Subscription, ev *StoreEvent, op CascadeOp) error {
	if op == CascadeNone {
		return nil
	}

	grants, err := tx.GrantsBySubscription(sub.ID)
	if err != nil {
		return err
	}

	if op == CascadeForceExpire {
		at := ev.OccurredAt
		for _, g := range grants {
			if g.ExpiresAt != nil && !g.ExpiresAt.After(at) {
				continue
			}
			if err := tx.UpdateGrantExpiry(g.ID, &at); err != nil {
				return err
			}
		}
		return nil
	}

	ents, err := tx.EntitlementsForProduct(sub.ProductID)
	if err != nil {
		return err
	}

	target := effectiveExpiry(sub)
	now := e.now()

	// Latest grant per entitlement; expired ones from an earlier term do not
	// count, a restart gets fresh rows.
	active := make(map[uint]models.UserEntitlement, len(grants))
	for _, g := range grants {
		if !g.IsActiveAt(now) {
			continue
		}
		active[g.EntitlementID] = g
	}

	for _, ent := range ents {
		if g, ok := active[ent.ID]; ok {
			if err := tx.UpdateGrantExpiry(g.ID, target); err != nil {
				return err
			}
			continue
		}
		subID := sub.ID
		grant := &models.UserEntitlement{
			UserID:         sub.UserID,
			EntitlementID:  ent.ID,
			SubscriptionID: &subID,
			StartsAt:       ev.OccurredAt,
			ExpiresAt:      target,
		}
		if err := tx.CreateUserEntitlement(grant); err != nil {
			return err
		}
	}
	return nil
}
