package controllers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/subsync/subsync/app/models"
	"github.com/subsync/subsync/app/repository"
	"github.com/subsync/subsync/internal/pkg/cache"
)

const entitlementCacheTTL = 60 * time.Second

type entitlementRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// entitlementCheckResponse is what the apps poll to gate features
type entitlementCheckResponse struct {
	UserID       uint      `json:"user_id"`
	Entitlements []string  `json:"entitlements"`
	CheckedAt    time.Time `json:"checked_at"`
}

// HandleCreateEntitlement adds an entitlement definition
func HandleCreateEntitlement(c *fiber.Ctx) error {
	var req entitlementRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed request body")
	}

	ent := models.Entitlement{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	if err := ent.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	repo := repository.GetGlobalFactory().GetEntitlementRepository()
	if err := repo.Create(&ent); err != nil {
		return jsonError(c, fiber.StatusConflict, "create_failed", "entitlement could not be created")
	}
	return c.Status(fiber.StatusCreated).JSON(ent)
}

// HandleGetEntitlement returns a single entitlement definition
func HandleGetEntitlement(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid entitlement id")
	}

	ent, err := repository.GetGlobalFactory().GetEntitlementRepository().GetByID(id)
	if err != nil {
		return notFoundOrInternal(c, err, "entitlement")
	}
	return c.JSON(ent)
}

// HandleListEntitlements returns a paginated entitlement list
func HandleListEntitlements(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetEntitlementRepository()

	ents, err := repo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	total, err := repo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"entitlements": ents, "total": total, "offset": offset, "limit": limit})
}

// HandleUpdateEntitlement updates an entitlement definition
func HandleUpdateEntitlement(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid entitlement id")
	}

	repo := repository.GetGlobalFactory().GetEntitlementRepository()
	ent, err := repo.GetByID(id)
	if err != nil {
		return notFoundOrInternal(c, err, "entitlement")
	}

	var req entitlementRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed request body")
	}
	if req.Name != "" {
		ent.Name = strings.TrimSpace(req.Name)
	}
	if req.Description != "" {
		ent.Description = req.Description
	}
	if err := ent.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	if err := repo.Update(ent); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "update_failed", "entitlement could not be updated")
	}
	return c.JSON(ent)
}

// HandleDeleteEntitlement removes an entitlement definition
func HandleDeleteEntitlement(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid entitlement id")
	}

	repo := repository.GetGlobalFactory().GetEntitlementRepository()
	if _, err := repo.GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "entitlement")
	}
	if err := repo.Delete(id); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "delete_failed", "entitlement could not be deleted")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// activeEntitlementCheck resolves the entitlement names a user currently
// holds, through the Redis cache. The engine drops the cache entry the moment
// a webhook changes the user's grants, so a short TTL suffices.
func activeEntitlementCheck(userID uint) (*entitlementCheckResponse, error) {
	cacheKey := cache.UserEntitlementsKey(userID)
	if cached, err := cache.Get(cacheKey); err == nil && cached != "" {
		var resp entitlementCheckResponse
		if err := json.Unmarshal([]byte(cached), &resp); err == nil {
			return &resp, nil
		}
	}

	repos := repository.GetGlobalFactory()
	now := time.Now()
	grants, err := repos.GetUserEntitlementRepository().GetActiveByUserID(userID, now)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(grants))
	names := make([]string, 0, len(grants))
	entRepo := repos.GetEntitlementRepository()
	for _, g := range grants {
		if _, ok := seen[g.EntitlementID]; ok {
			continue
		}
		seen[g.EntitlementID] = struct{}{}
		ent, err := entRepo.GetByID(g.EntitlementID)
		if err != nil {
			continue
		}
		names = append(names, ent.Name)
	}

	resp := &entitlementCheckResponse{UserID: userID, Entitlements: names, CheckedAt: now}
	if payload, err := json.Marshal(resp); err == nil {
		_ = cache.Set(cacheKey, payload, entitlementCacheTTL)
	}
	return resp, nil
}

// HandleCheckUserEntitlements returns the entitlement names a user currently holds
func HandleCheckUserEntitlements(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid user id")
	}

	repos := repository.GetGlobalFactory()
	if _, err := repos.GetUserRepository().GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "user")
	}

	resp, err := activeEntitlementCheck(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(resp)
}

// HandleCheckUserEntitlement answers whether a user holds one specific
// entitlement right now. This is the hot path the apps gate features on.
func HandleCheckUserEntitlement(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid user id")
	}
	entID, err := parseIDParam(c, "entitlement_id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid entitlement id")
	}

	repos := repository.GetGlobalFactory()
	if _, err := repos.GetUserRepository().GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "user")
	}
	ent, err := repos.GetEntitlementRepository().GetByID(entID)
	if err != nil {
		return notFoundOrInternal(c, err, "entitlement")
	}

	resp, err := activeEntitlementCheck(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	active := false
	for _, name := range resp.Entitlements {
		if name == ent.Name {
			active = true
			break
		}
	}
	return c.JSON(fiber.Map{
		"user_id":     id,
		"entitlement": ent.Name,
		"active":      active,
		"checked_at":  resp.CheckedAt,
	})
}

type grantRequest struct {
	UserID        uint       `json:"user_id"`
	EntitlementID uint       `json:"entitlement_id"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// HandleGrantEntitlement issues a manual grant with no owning subscription
// (support credits, promotions).
func HandleGrantEntitlement(c *fiber.Ctx) error {
	var req grantRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed request body")
	}
	if req.UserID == 0 || req.EntitlementID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "user_id and entitlement_id are required")
	}

	repos := repository.GetGlobalFactory()
	if _, err := repos.GetUserRepository().GetByID(req.UserID); err != nil {
		return notFoundOrInternal(c, err, "user")
	}
	if _, err := repos.GetEntitlementRepository().GetByID(req.EntitlementID); err != nil {
		return notFoundOrInternal(c, err, "entitlement")
	}

	grant := models.UserEntitlement{
		UserID:        req.UserID,
		EntitlementID: req.EntitlementID,
		StartsAt:      time.Now(),
		ExpiresAt:     req.ExpiresAt,
	}
	if err := repos.GetUserEntitlementRepository().Create(&grant); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "create_failed", "grant could not be created")
	}
	cache.InvalidateUserEntitlements(req.UserID)
	return c.Status(fiber.StatusCreated).JSON(grant)
}

// HandleRevokeUserEntitlement expires all active grants of one entitlement
// for a user, manual and subscription-owned alike.
func HandleRevokeUserEntitlement(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid user id")
	}
	entID, err := parseIDParam(c, "entitlement_id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid entitlement id")
	}

	repos := repository.GetGlobalFactory()
	if _, err := repos.GetUserRepository().GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "user")
	}
	if _, err := repos.GetEntitlementRepository().GetByID(entID); err != nil {
		return notFoundOrInternal(c, err, "entitlement")
	}

	now := time.Now()
	ueRepo := repos.GetUserEntitlementRepository()
	grants, err := ueRepo.GetActiveByUserAndEntitlement(id, entID, now)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	for _, g := range grants {
		if err := ueRepo.UpdateExpiry(g.ID, &now); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "update_failed", "grant could not be revoked")
		}
	}
	cache.InvalidateUserEntitlements(id)
	return c.JSON(fiber.Map{"user_id": id, "entitlement_id": entID, "revoked": len(grants)})
}

// HandleListUserEntitlements returns the full grant history for a user,
// expired rows included.
func HandleListUserEntitlements(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid user id")
	}

	repos := repository.GetGlobalFactory()
	if _, err := repos.GetUserRepository().GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "user")
	}

	grants, err := repos.GetUserEntitlementRepository().GetByUserID(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"user_id": id, "grants": grants})
}
