package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/subsync/subsync/app/controllers"
)

// WebhookRouter installs the storefront notification endpoints. They sit
// outside the API rate limiter: a throttled 429 would make the stores back
// off and delay entitlement updates.
type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	controllers.InitializeIAPEngine()

	webhooks := app.Group("/webhooks")
	webhooks.Post("/apple", controllers.HandleAppleWebhook)
	webhooks.Post("/google", controllers.HandleGoogleWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
