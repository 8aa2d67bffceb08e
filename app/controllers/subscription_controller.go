package controllers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/subsync/subsync/app/models"
	"github.com/subsync/subsync/app/repository"
	"github.com/subsync/subsync/internal/pkg/iap"
)

// HandleGetSubscription returns a single subscription by ID
func HandleGetSubscription(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid subscription id")
	}

	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetByID(id)
	if err != nil {
		return notFoundOrInternal(c, err, "subscription")
	}
	return c.JSON(sub)
}

// HandleListSubscriptions returns a paginated subscription list
func HandleListSubscriptions(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetSubscriptionRepository()

	subs, err := repo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	total, err := repo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"subscriptions": subs, "total": total, "offset": offset, "limit": limit})
}

// HandleListUserSubscriptions returns all subscriptions of one user
func HandleListUserSubscriptions(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid user id")
	}

	repos := repository.GetGlobalFactory()
	if _, err := repos.GetUserRepository().GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "user")
	}

	subs, err := repos.GetSubscriptionRepository().GetByUserID(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"user_id": id, "subscriptions": subs})
}

// HandleListActiveUserSubscriptions returns the subscriptions of one user
// that still carry access.
func HandleListActiveUserSubscriptions(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid user id")
	}

	repos := repository.GetGlobalFactory()
	if _, err := repos.GetUserRepository().GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "user")
	}

	subs, err := repos.GetSubscriptionRepository().GetActiveByUserID(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"user_id": id, "subscriptions": subs})
}

// HandleCancelSubscription marks a subscription cancelled from the management
// side. The change runs through the reconciliation engine like any store
// event, so ordering, dedup and the entitlement cascade hold.
func HandleCancelSubscription(c *fiber.Ctx) error {
	return applyAdminEvent(c, iap.EventCancelled)
}

// HandleRefundSubscription revokes a subscription and its grants immediately,
// mirroring a storefront refund.
func HandleRefundSubscription(c *fiber.Ctx) error {
	return applyAdminEvent(c, iap.EventRefunded)
}

func applyAdminEvent(c *fiber.Ctx, kind iap.EventKind) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid subscription id")
	}

	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetByID(id)
	if err != nil {
		return notFoundOrInternal(c, err, "subscription")
	}

	txID := sub.StoreTransactionID
	if txID == "" {
		txID = sub.OriginalTransactionID
	}
	ev := &iap.StoreEvent{
		Store:                 sub.Store,
		Kind:                  kind,
		OriginalTransactionID: sub.OriginalTransactionID,
		TransactionID:         txID,
		OccurredAt:            time.Now().UTC().Truncate(time.Second),
	}
	payload, _ := json.Marshal(fiber.Map{
		"source":          "admin",
		"subscription_id": sub.ID,
		"action":          string(kind),
	})

	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	res, err := GetIAPEngine().Process(ctx, ev, payload)
	if err != nil {
		return webhookErrorResponse(c, err)
	}
	if res.Duplicate || res.Stale {
		// Already in the requested state or outrun by a newer store event.
		return c.JSON(fiber.Map{"ok": true, "unchanged": true, "subscription": sub})
	}
	return c.JSON(fiber.Map{"ok": true, "subscription": res.Subscription})
}

// HandleListWebhookEvents exposes the stored notification log
func HandleListWebhookEvents(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	store := c.Query("store")
	if store != "" && store != models.StoreApple && store != models.StoreGoogle {
		return jsonError(c, fiber.StatusBadRequest, "invalid_store", "store must be apple or google")
	}

	repo := repository.GetGlobalFactory().GetWebhookEventRepository()
	events, err := repo.List(store, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	total, err := repo.Count(store)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"events": events, "total": total, "offset": offset, "limit": limit})
}
