package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paginationFor(t *testing.T, target string) (limit, skip int) {
	t.Helper()

	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		limit, skip = ParsePagination(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	return limit, skip
}

func TestParsePagination(t *testing.T) {
	limit, skip := paginationFor(t, "/items")
	assert.Equal(t, DefaultPageLimit, limit)
	assert.Equal(t, 0, skip)

	limit, skip = paginationFor(t, "/items?limit=5&skip=40")
	assert.Equal(t, 5, limit)
	assert.Equal(t, 40, skip)

	// Clamped to the maximum.
	limit, _ = paginationFor(t, "/items?limit=500")
	assert.Equal(t, MaxPageLimit, limit)

	// Junk and non-positive values fall back to the defaults.
	limit, skip = paginationFor(t, "/items?limit=abc&skip=-3")
	assert.Equal(t, DefaultPageLimit, limit)
	assert.Equal(t, 0, skip)

	limit, _ = paginationFor(t, "/items?limit=0")
	assert.Equal(t, DefaultPageLimit, limit)
}

func TestGetClientIP(t *testing.T) {
	app := fiber.New()
	var got string
	app.Get("/ip", func(c *fiber.Ctx) error {
		got = GetClientIP(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("CF-Connecting-IP", "198.51.100.7")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	_, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", got)

	req = httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	_, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", got)
}
