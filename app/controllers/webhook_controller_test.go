package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/subsync/subsync/internal/pkg/iap"
)

func TestWebhookErrorResponseStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unsupported", iap.ErrUnsupportedEvent, fiber.StatusBadRequest},
		{"malformed", iap.ErrMalformedEvent, fiber.StatusBadRequest},
		{"unknown product", iap.ErrUnknownProduct, fiber.StatusNotFound},
		{"subscription not found", iap.ErrSubscriptionNotFound, fiber.StatusConflict},
		{"internal", assert.AnError, fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		app := fiber.New()
		app.Get("/t", func(c *fiber.Ctx) error {
			return webhookErrorResponse(c, tt.err)
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/t", nil))
		assert.NoError(t, err, tt.name)
		assert.Equal(t, tt.wantStatus, resp.StatusCode, tt.name)
	}
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	var gotOffset, gotLimit int
	app.Get("/t", func(c *fiber.Ctx) error {
		gotOffset, gotLimit = parsePagination(c)
		return c.SendStatus(fiber.StatusOK)
	})

	_, err := app.Test(httptest.NewRequest("GET", "/t?offset=10&limit=25", nil))
	assert.NoError(t, err)
	assert.Equal(t, 10, gotOffset)
	assert.Equal(t, 25, gotLimit)

	_, err = app.Test(httptest.NewRequest("GET", "/t?offset=-5&limit=9999", nil))
	assert.NoError(t, err)
	assert.Equal(t, 0, gotOffset)
	assert.Equal(t, 50, gotLimit)
}

func TestParseIDParam(t *testing.T) {
	app := fiber.New()
	app.Get("/t/:id", func(c *fiber.Ctx) error {
		id, err := parseIDParam(c, "id")
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		return c.JSON(fiber.Map{"id": id})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/t/42", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, bad := range []string{"0", "-1", "abc"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/t/"+bad, nil))
		assert.NoError(t, err, bad)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, bad)
	}
}
