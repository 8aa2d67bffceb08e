package controllers

import (
	"errors"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/subsync/subsync/internal/pkg/cache"
	"github.com/subsync/subsync/internal/pkg/database"
	"github.com/subsync/subsync/internal/pkg/iap"
)

var (
	engineOnce sync.Once
	iapEngine  *iap.Engine
)

// InitializeIAPEngine wires the reconciliation engine to the database and the
// entitlement cache. Called once during router installation.
func InitializeIAPEngine() {
	engineOnce.Do(func() {
		iapEngine = iap.NewEngineFromDB(database.GetDB())
		iapEngine.SetCacheInvalidator(cache.InvalidateUserEntitlements)
	})
}

// GetIAPEngine returns the shared reconciliation engine
func GetIAPEngine() *iap.Engine {
	if iapEngine == nil {
		InitializeIAPEngine()
	}
	return iapEngine
}

// parseIDParam reads a positive numeric path parameter
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// parsePagination reads offset/limit query parameters with sane bounds
func parsePagination(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit = c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return offset, limit
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// notFoundOrInternal maps a repository read error onto 404 or 500
func notFoundOrInternal(c *fiber.Ctx, err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusNotFound, "not_found", what+" not found")
	}
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
}
