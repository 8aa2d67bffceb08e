package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/subsync/subsync/app/controllers"
	"github.com/subsync/subsync/internal/pkg/cache"
	"github.com/subsync/subsync/internal/pkg/env"
	"github.com/subsync/subsync/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	controllers.InitializeIAPEngine()

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/ping", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"message": "pong"})
	})

	// Read endpoints the client apps use
	v1.Get("/users/:id/entitlements/check", controllers.HandleCheckUserEntitlements)
	v1.Get("/users/:id/entitlements/:entitlement_id", controllers.HandleCheckUserEntitlement)
	v1.Get("/users/:id/entitlements", controllers.HandleListUserEntitlements)
	v1.Get("/users/:id/subscriptions/active", controllers.HandleListActiveUserSubscriptions)
	v1.Get("/users/:id/subscriptions", controllers.HandleListUserSubscriptions)
	v1.Get("/products", controllers.HandleListProducts)
	v1.Get("/products/:id", controllers.HandleGetProduct)
	v1.Get("/entitlements", controllers.HandleListEntitlements)
	v1.Get("/entitlements/:id", controllers.HandleGetEntitlement)

	// Management endpoints behind the admin API key
	admin := v1.Group("", middleware.AdminAPIKeyMiddleware())

	admin.Post("/users", controllers.HandleCreateUser)
	admin.Get("/users", controllers.HandleListUsers)
	admin.Get("/users/app_id/:app_user_id", controllers.HandleGetUserByAppID)
	admin.Get("/users/:id", controllers.HandleGetUser)
	admin.Put("/users/:id", controllers.HandleUpdateUser)
	admin.Delete("/users/:id", controllers.HandleDeleteUser)
	admin.Post("/users/:id/entitlements/:entitlement_id/revoke", controllers.HandleRevokeUserEntitlement)

	admin.Post("/products", controllers.HandleCreateProduct)
	admin.Put("/products/:id", controllers.HandleUpdateProduct)
	admin.Delete("/products/:id", controllers.HandleDeleteProduct)
	admin.Put("/products/:id/entitlements", controllers.HandleSetProductEntitlements)
	admin.Post("/products/:id/entitlements", controllers.HandleAddProductEntitlement)
	admin.Delete("/products/:id/entitlements/:entitlement_id", controllers.HandleRemoveProductEntitlement)

	admin.Post("/entitlements/grant", controllers.HandleGrantEntitlement)
	admin.Post("/entitlements", controllers.HandleCreateEntitlement)
	admin.Put("/entitlements/:id", controllers.HandleUpdateEntitlement)
	admin.Delete("/entitlements/:id", controllers.HandleDeleteEntitlement)

	admin.Get("/subscriptions", controllers.HandleListSubscriptions)
	admin.Get("/subscriptions/:id", controllers.HandleGetSubscription)
	admin.Post("/subscriptions/:id/cancel", controllers.HandleCancelSubscription)
	admin.Post("/subscriptions/:id/refund", controllers.HandleRefundSubscription)

	admin.Get("/webhook-events", controllers.HandleListWebhookEvents)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// newLimiterStorage backs the rate limiter with Redis so limits hold across
// instances. Falls back to the cache connection settings.
func newLimiterStorage() *redisstorage.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client := cache.GetClient(); client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1, // Separate database for rate limiting (cache uses DB 0)
		Reset:    false,
	})
}
