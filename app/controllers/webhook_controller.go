package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/subsync/subsync/internal/pkg/iap"
)

const webhookProcessTimeout = 15 * time.Second

// HandleAppleWebhook ingests App Store Server Notifications (v2). The JWS
// envelopes are decoded upstream; this endpoint receives the decoded payload.
func HandleAppleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	var n iap.AppleNotification
	if err := json.Unmarshal(rawBody, &n); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed notification body")
	}

	ev, err := iap.NormalizeApple(&n)
	if err != nil {
		return webhookErrorResponse(c, err)
	}
	if ev == nil {
		// Advisory notification, acknowledged without processing.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	return processStoreEvent(c, ev, rawBody)
}

// googlePubSubEnvelope is the Cloud Pub/Sub push wrapper Google delivers
// RTDN messages in. Direct JSON bodies are accepted too.
type googlePubSubEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// HandleGoogleWebhook ingests Google Play Real-time Developer Notifications,
// either as the raw notification JSON or wrapped in a Pub/Sub push envelope.
func HandleGoogleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	payload := rawBody
	var envelope googlePubSubEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err == nil && envelope.Message.Data != "" {
		decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed pub/sub data")
		}
		payload = decoded
	}

	var n iap.GoogleNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed notification body")
	}

	ev, err := iap.NormalizeGoogle(&n)
	if err != nil {
		return webhookErrorResponse(c, err)
	}
	if ev == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	return processStoreEvent(c, ev, payload)
}

func processStoreEvent(c *fiber.Ctx, ev *iap.StoreEvent, rawPayload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	res, err := GetIAPEngine().Process(ctx, ev, rawPayload)
	if err != nil {
		return webhookErrorResponse(c, err)
	}

	switch {
	case res.Duplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case res.Stale:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "stale": true})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

// webhookErrorResponse maps the processing error taxonomy onto HTTP codes.
// 4xx tells the store not to retry; 409 and 5xx invite redelivery.
func webhookErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, iap.ErrUnsupportedEvent):
		return jsonError(c, fiber.StatusBadRequest, "unsupported_event", err.Error())
	case errors.Is(err, iap.ErrMalformedEvent):
		return jsonError(c, fiber.StatusBadRequest, "malformed_event", err.Error())
	case errors.Is(err, iap.ErrUnknownProduct):
		return jsonError(c, fiber.StatusNotFound, "unknown_product", err.Error())
	case errors.Is(err, iap.ErrSubscriptionNotFound):
		return jsonError(c, fiber.StatusConflict, "subscription_not_found", err.Error())
	default:
		log.Printf("webhook processing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "processing_failed", "event processing failed")
	}
}
