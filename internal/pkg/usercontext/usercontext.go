package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

// ContextKey is the Locals key the auth middleware stores the caller under.
const ContextKey = "USER_CONTEXT"

// UserContext carries the authenticated caller through a request.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	Role       string `json:"role"`
}

// GetUserContext retrieves the user context from fiber context.
// Returns a default anonymous context if none is set.
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(ContextKey); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// IsProducer reports whether the caller may manage beats and see payouts.
// Admins count as producers.
func IsProducer(c *fiber.Ctx) bool {
	ctx := GetUserContext(c)
	return ctx.IsLoggedIn && (ctx.Role == models.ROLE_PRODUCER || ctx.IsAdmin)
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
