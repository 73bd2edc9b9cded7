package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/usercontext"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/utils"
)

// HandleGetAccount returns account information for the authenticated user.
func HandleGetAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	account, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	grants, err := repository.GetGlobalFactory().GetEntitlementRepository().ListByUser(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}

	return c.JSON(fiber.Map{
		"id":                 account.ID,
		"username":           account.Name,
		"email":              account.Email,
		"avatar_url":         utils.GetGravatarURL(account.Email, 200),
		"role":               account.Role,
		"status":             account.Status,
		"is_producer":        account.IsProducer(),
		"created_at":         account.CreatedAt.UTC().Format(time.RFC3339),
		"has_api_key":        account.HasActiveAPIKey(),
		"api_key_prefix":     account.APIKeyPrefix,
		"api_key_created_at": formatTimePtr(account.APIKeyCreatedAt),
		"entitlement_count":  len(grants),
	})
}

// HandleListPurchases returns the caller's completed purchases, newest first.
func HandleListPurchases(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	_, perPage, offset := parsePagination(c)
	purchases, err := repository.GetGlobalFactory().GetPurchaseRepository().ListByBuyer(userCtx.UserID, offset, perPage)
	if err != nil {
		log.Errorf("[Account] List purchases failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load purchases"})
	}

	return c.JSON(fiber.Map{"purchases": purchases})
}

// HandleListEntitlements returns every download grant the caller holds.
func HandleListEntitlements(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	grants, err := repository.GetGlobalFactory().GetEntitlementRepository().ListByUser(userCtx.UserID)
	if err != nil {
		log.Errorf("[Account] List entitlements failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}

	return c.JSON(fiber.Map{"entitlements": grants})
}

// HandleIssueAPIKey exchanges email and password for a fresh API key. The
// raw key is returned exactly once; only its hash is stored. Issuing a new
// key invalidates the previous one.
func HandleIssueAPIKey(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "email and password are required"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid credentials"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}
	if !user.CheckPassword(req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid credentials"})
	}
	if !user.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
	}
	if user.HasActiveAPIKey() {
		log.Infof("[Account] Replacing API key %s... for user %d", user.APIKeyPrefix, user.ID)
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		log.Errorf("[Account] API key generation failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not generate API key"})
	}
	if err := repo.Update(user); err != nil {
		log.Errorf("[Account] API key persist failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not store API key"})
	}

	log.Infof("[Account] Issued new API key %s... for user %d", user.APIKeyPrefix, user.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key":    rawKey,
		"prefix":     user.APIKeyPrefix,
		"created_at": formatTimePtr(user.APIKeyCreatedAt),
	})
}

// HandleRevokeAPIKey clears the caller's API key.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	user.RevokeAPIKey()
	if err := repo.Update(user); err != nil {
		log.Errorf("[Account] API key revoke failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not revoke API key"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
