package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// parsePagination reads page and per_page query parameters and returns the
// clamped values plus the matching offset.
func parsePagination(c *fiber.Ctx) (page, perPage, offset int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage = c.QueryInt("per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, (page - 1) * perPage
}

// GetClientIP determines the actual client IP address considering proxies.
// Returns both IPv4 and IPv6 addresses if available.
func GetClientIP(c *fiber.Ctx) (string, string) {
	// Cloudflare and standard proxy headers first, then the socket address.
	candidates := []string{strings.TrimSpace(c.Get("CF-Connecting-IP"))}
	for _, part := range strings.Split(c.Get("X-Forwarded-For"), ",") {
		candidates = append(candidates, strings.TrimSpace(part))
	}
	candidates = append(candidates, strings.TrimSpace(c.Get("X-Real-IP")), c.IP())

	ipv4, ipv6 := "", ""
	for _, ip := range candidates {
		if ip == "" {
			continue
		}
		// ::ffff: mapped addresses are IPv4 in disguise.
		if strings.HasPrefix(ip, "::ffff:") && strings.Contains(ip, ".") {
			ip = strings.TrimPrefix(ip, "::ffff:")
		}
		if strings.Contains(ip, ":") {
			if ipv6 == "" {
				ipv6 = ip
			}
		} else if ipv4 == "" {
			ipv4 = ip
		}
		if ipv4 != "" && ipv6 != "" {
			break
		}
	}
	return ipv4, ipv6
}
