package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paginationFor(t *testing.T, target string) (page, perPage, offset int) {
	t.Helper()
	app := fiber.New()
	app.Get("/list", func(c *fiber.Ctx) error {
		page, perPage, offset = parsePagination(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	return page, perPage, offset
}

func TestParsePaginationDefaults(t *testing.T) {
	page, perPage, offset := paginationFor(t, "/list")
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPerPage, perPage)
	assert.Equal(t, 0, offset)
}

func TestParsePaginationOffset(t *testing.T) {
	page, perPage, offset := paginationFor(t, "/list?page=3&per_page=10")
	assert.Equal(t, 3, page)
	assert.Equal(t, 10, perPage)
	assert.Equal(t, 20, offset)
}

func TestParsePaginationClamps(t *testing.T) {
	page, perPage, _ := paginationFor(t, "/list?page=0&per_page=9999")
	assert.Equal(t, 1, page)
	assert.Equal(t, maxPerPage, perPage)

	_, perPage, _ = paginationFor(t, "/list?per_page=-1")
	assert.Equal(t, defaultPerPage, perPage)
}

func TestGetClientIP(t *testing.T) {
	var ipv4, ipv6 string
	app := fiber.New()
	app.Get("/ip", func(c *fiber.Ctx) error {
		ipv4, ipv6 = GetClientIP(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/ip", nil)
	req.Header.Set("CF-Connecting-IP", "203.0.113.7")
	req.Header.Set("X-Forwarded-For", "2001:db8::1, 198.51.100.2")
	_, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.7", ipv4)
	assert.Equal(t, "2001:db8::1", ipv6)
}

func TestGetClientIPMappedV4(t *testing.T) {
	var ipv4 string
	app := fiber.New()
	app.Get("/ip", func(c *fiber.Ctx) error {
		ipv4, _ = GetClientIP(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/ip", nil)
	req.Header.Set("X-Real-IP", "::ffff:192.0.2.10")
	_, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, "192.0.2.10", ipv4)
}
