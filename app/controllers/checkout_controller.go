package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/checkout"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/config"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/database"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/licensing"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/payments"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/usercontext"
)

// CheckoutController starts and abandons hosted checkouts.
type CheckoutController struct {
	service *checkout.Service
}

func NewCheckoutController(service *checkout.Service) *CheckoutController {
	return &CheckoutController{service: service}
}

// Global checkout controller instance
var checkoutController *CheckoutController

// InitializeCheckoutController initializes the global checkout controller
func InitializeCheckoutController() {
	cfg := config.Get()
	db := database.GetDB()
	resolver := licensing.NewResolver(repository.GetGlobalFactory().GetLicenseRepository())
	client := payments.NewClient(cfg.Payments)
	checkoutController = NewCheckoutController(
		checkout.NewService(db, checkout.NewLockManager(db), resolver, client),
	)
}

// GetCheckoutController returns the global checkout controller instance
func GetCheckoutController() *CheckoutController {
	if checkoutController == nil {
		InitializeCheckoutController()
	}
	return checkoutController
}

// HandleStartCheckout - Adapter for POST /api/v1/checkout
func HandleStartCheckout(c *fiber.Ctx) error {
	return GetCheckoutController().HandleStartCheckout(c)
}

// HandleAbandonCheckout - Adapter for DELETE /api/v1/checkout/:beatUUID
func HandleAbandonCheckout(c *fiber.Ctx) error {
	return GetCheckoutController().HandleAbandonCheckout(c)
}

// HandleStartCheckout opens a processor session for the requested beat and
// license. Exclusive intents reserve the beat first, so a 409 here means
// another buyer already holds it.
func (cc *CheckoutController) HandleStartCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req struct {
		BeatUUID    string `json:"beat_uuid"`
		LicenseID   uint   `json:"license_id"`
		LicenseName string `json:"license_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if strings.TrimSpace(req.BeatUUID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "beat_uuid is required"})
	}

	result, err := cc.service.Start(c.Context(), checkout.StartInput{
		BuyerID:     userCtx.UserID,
		BeatUUID:    req.BeatUUID,
		LicenseID:   req.LicenseID,
		LicenseName: req.LicenseName,
	})
	if err != nil {
		switch {
		case errs.Is(err, errs.ErrLockHeld):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "beat_locked", "message": "Another buyer is checking out this beat"})
		case errs.Is(err, errs.ErrBeatUnavailable):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "beat_unavailable", "message": "This beat can no longer be purchased"})
		case errs.Is(err, errs.ErrLicenseIncompatible):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "license_incompatible", "message": "The chosen license does not cover this sale"})
		case errs.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Beat not found"})
		default:
			log.Errorf("[Checkout] Start failed for beat %s, buyer %d: %v", req.BeatUUID, userCtx.UserID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not start checkout"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleAbandonCheckout drops the caller's reservation on a beat.
func (cc *CheckoutController) HandleAbandonCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	beatUUID := c.Params("uuid")
	if beatUUID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Beat UUID missing"})
	}

	if err := cc.service.Abandon(beatUUID, userCtx.UserID); err != nil {
		log.Errorf("[Checkout] Abandon failed for beat %s, buyer %d: %v", beatUUID, userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not abandon checkout"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
