package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/subsync/subsync/app/models"
	"github.com/subsync/subsync/app/repository"
)

type userRequest struct {
	AppUserID string `json:"app_user_id"`
	Email     string `json:"email"`
}

// HandleCreateUser registers an app user so store purchases can be attached
// to it before the first webhook arrives.
func HandleCreateUser(c *fiber.Ctx) error {
	var req userRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed request body")
	}

	user := models.User{
		AppUserID: strings.TrimSpace(req.AppUserID),
		Email:     strings.TrimSpace(req.Email),
	}
	if err := user.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if err := repo.Create(&user); err != nil {
		return jsonError(c, fiber.StatusConflict, "create_failed", "user could not be created")
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleGetUser returns a single user by ID
func HandleGetUser(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid user id")
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(id)
	if err != nil {
		return notFoundOrInternal(c, err, "user")
	}
	return c.JSON(user)
}

// HandleGetUserByAppID resolves a user by the app-level identifier the mobile
// clients embed in store purchases.
func HandleGetUserByAppID(c *fiber.Ctx) error {
	appUserID := strings.TrimSpace(c.Params("app_user_id"))
	if appUserID == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid app user id")
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByAppUserID(appUserID)
	if err != nil {
		return notFoundOrInternal(c, err, "user")
	}
	return c.JSON(user)
}

// HandleListUsers returns a paginated user list
func HandleListUsers(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetUserRepository()

	users, err := repo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	total, err := repo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "database error")
	}
	return c.JSON(fiber.Map{"users": users, "total": total, "offset": offset, "limit": limit})
}

// HandleUpdateUser updates the mutable user fields
func HandleUpdateUser(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid user id")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(id)
	if err != nil {
		return notFoundOrInternal(c, err, "user")
	}

	var req userRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "malformed request body")
	}
	if req.AppUserID != "" {
		user.AppUserID = strings.TrimSpace(req.AppUserID)
	}
	if req.Email != "" {
		user.Email = strings.TrimSpace(req.Email)
	}
	if err := user.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	if err := repo.Update(user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "update_failed", "user could not be updated")
	}
	return c.JSON(user)
}

// HandleDeleteUser soft deletes a user
func HandleDeleteUser(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "invalid user id")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByID(id); err != nil {
		return notFoundOrInternal(c, err, "user")
	}
	if err := repo.Delete(id); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "delete_failed", "user could not be deleted")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
