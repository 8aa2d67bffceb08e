package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/subsync/subsync/app/models"
	"github.com/subsync/subsync/app/repository"
)

type productRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	AppleProductID  string   `json:"apple_product_id"`
	GoogleProductID string   `json:"google_product_id"`
	Type            string   `json:"type"`
	PriceUSD        *float64 `json:"price_usd"`
	DurationDays    *int     `json:"duration_days"`
}

type productEntitlementsRequest struct {
	EntitlementIDs []uint `json:"entitlement_ids"`
}

// HandleCreateProduct adds a catalog entry
func HandleCreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed request body")
	}

	product := models.Product{
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		AppleProductID:  strings.TrimSpace(req.AppleProductID),
		GoogleProductID: strings.TrimSpace(req.GoogleProductID),
		Type:            req.Type,
		PriceUSD:        req.PriceUSD,
		DurationDays:    req.DurationDays,
	}
	if product.Type == "" {
		product.Type = models.ProductTypeSubscription
	}
	if err := product.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	repo := repository.GetGlobalFactory().GetProductRepository()
	if err := repo.Create(&product); err != nil {
		return jsonError(c, fiber.StatusConflict, "create_failed", "product could not be created")
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleGetProduct returns a single product with its entitlements
func HandleGetProduct(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid product id")
	}

	repo := repository.GetGlobalFactory().GetProductRepository()
	product, err := repo.GetByID(id)
	if err != nil {
		return notFoundOrInternal(c, err, "product")
	}
	ents, err := repo.GetEntitlements(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"product": product, "entitlements": ents})
}

// HandleListProducts returns a paginated product list
func HandleListProducts(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetProductRepository()

	products, err := repo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	total, err := repo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"products": products, "total": total, "offset": offset, "limit": limit})
}

// HandleUpdateProduct updates a catalog entry
func HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid product id")
	}

	repo := repository.GetGlobalFactory().GetProductRepository()
	product, err := repo.GetByID(id)
	if err != nil {
		return notFoundOrInternal(c, err, "product")
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed request body")
	}
	if req.Name != "" {
		product.Name = strings.TrimSpace(req.Name)
	}
	if req.Description != "" {
		product.Description = req.Description
	}
	if req.AppleProductID != "" {
		product.AppleProductID = strings.TrimSpace(req.AppleProductID)
	}
	if req.GoogleProductID != "" {
		product.GoogleProductID = strings.TrimSpace(req.GoogleProductID)
	}
	if req.Type != "" {
		product.Type = req.Type
	}
	if req.PriceUSD != nil {
		product.PriceUSD = req.PriceUSD
	}
	if req.DurationDays != nil {
		product.DurationDays = req.DurationDays
	}
	if err := product.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	if err := repo.Update(product); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "update_failed", "product could not be updated")
	}
	return c.JSON(product)
}

// HandleDeleteProduct removes a catalog entry
func HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid product id")
	}

	repo := repository.GetGlobalFactory().GetProductRepository()
	if _, err := repo.GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "product")
	}
	if err := repo.Delete(id); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "delete_failed", "product could not be deleted")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type productEntitlementRequest struct {
	EntitlementID uint `json:"entitlement_id"`
}

// HandleAddProductEntitlement attaches one entitlement to a product
func HandleAddProductEntitlement(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid product id")
	}

	repo := repository.GetGlobalFactory().GetProductRepository()
	if _, err := repo.GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "product")
	}

	var req productEntitlementRequest
	if err := c.BodyParser(&req); err != nil || req.EntitlementID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "entitlement_id is required")
	}
	if _, err := repository.GetGlobalFactory().GetEntitlementRepository().GetByID(req.EntitlementID); err != nil {
		return notFoundOrInternal(c, err, "entitlement")
	}

	if err := repo.AddEntitlement(id, req.EntitlementID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "update_failed", "entitlement could not be attached")
	}

	ents, err := repo.GetEntitlements(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"product_id": id, "entitlements": ents})
}

// HandleRemoveProductEntitlement detaches one entitlement from a product.
// Existing grants are untouched; the change applies to future cascades.
func HandleRemoveProductEntitlement(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid product id")
	}
	entID, err := parseIDParam(c, "entitlement_id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid entitlement id")
	}

	repo := repository.GetGlobalFactory().GetProductRepository()
	if _, err := repo.GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "product")
	}

	if err := repo.RemoveEntitlement(id, entID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "delete_failed", "entitlement could not be detached")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleSetProductEntitlements replaces the entitlement set a product confers.
// Existing grants are untouched; the change applies to future cascades.
func HandleSetProductEntitlements(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid product id")
	}

	repo := repository.GetGlobalFactory().GetProductRepository()
	if _, err := repo.GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "product")
	}

	var req productEntitlementsRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed request body")
	}

	entRepo := repository.GetGlobalFactory().GetEntitlementRepository()
	for _, entID := range req.EntitlementIDs {
		if _, err := entRepo.GetByID(entID); err != nil {
			return notFoundOrInternal(c, err, "entitlement")
		}
	}

	if err := repo.SetEntitlements(id, req.EntitlementIDs); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "update_failed", "entitlements could not be set")
	}

	ents, err := repo.GetEntitlements(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"product_id": id, "entitlements": ents})
}
