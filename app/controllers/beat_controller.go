package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/metrics/counter"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/sharecode"
)

// HandleListBeats returns the public catalog, newest first. Sold and
// archived beats are not listed.
// Query: genre, producer_id, exclusive, max_price_cents, page, per_page
func HandleListBeats(c *fiber.Ctx) error {
	filter := repository.BeatFilter{
		Genre: c.Query("genre"),
	}
	if v, err := strconv.ParseUint(c.Query("producer_id"), 10, 64); err == nil {
		filter.ProducerID = uint(v)
	}
	if v, err := strconv.ParseBool(c.Query("exclusive")); err == nil {
		filter.ExclusiveOnly = v
	}
	if v, err := strconv.ParseInt(c.Query("max_price_cents"), 10, 64); err == nil && v > 0 {
		filter.MaxPriceCents = v
	}

	page, perPage, offset := parsePagination(c)

	repo := repository.GetGlobalFactory().GetBeatRepository()
	beats, err := repo.ListAvailable(filter, offset, perPage)
	if err != nil {
		log.Errorf("[Catalog] List failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load catalog"})
	}
	total, err := repo.CountAvailable(filter)
	if err != nil {
		log.Errorf("[Catalog] Count failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load catalog"})
	}

	return c.JSON(fiber.Map{
		"beats":    beats,
		"page":     page,
		"per_page": perPage,
		"total":    total,
	})
}

// HandleGetBeat returns a single listing by its public identifier.
func HandleGetBeat(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if uuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Beat UUID missing"})
	}

	beat, err := repository.GetGlobalFactory().GetBeatRepository().GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Beat not found"})
		}
		log.Errorf("[Catalog] Load beat %s failed: %v", uuid, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load beat"})
	}

	return c.JSON(beat)
}

// HandleBeatPlay counts one preview play. The increment goes to Redis and is
// flushed to the beats table in batches, so the response does not wait on
// the database.
func HandleBeatPlay(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if uuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Beat UUID missing"})
	}

	beat, err := repository.GetGlobalFactory().GetBeatRepository().GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Beat not found"})
		}
		log.Errorf("[Catalog] Load beat %s failed: %v", uuid, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load beat"})
	}

	if err := counter.AddBeatPlay(beat.ID); err != nil {
		// A lost play count is not worth a failed request.
		log.Warnf("[Catalog] Could not count play for beat %d: %v", beat.ID, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// HandleResolveShareCode resolves a short share code from a storefront link
// to the beat it names. Codes that do not decode or point at nothing are a
// plain 404 so guessed links leak no information.
func HandleResolveShareCode(c *fiber.Ctx) error {
	beatID := sharecode.ParseBeat(c.Params("code"))
	if beatID == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Beat not found"})
	}

	beat, err := repository.GetGlobalFactory().GetBeatRepository().GetByID(beatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Beat not found"})
		}
		log.Errorf("[Catalog] Resolve share code %q failed: %v", c.Params("code"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load beat"})
	}

	return c.JSON(beat)
}

// HandleListLicenses returns the license catalog for the storefront.
func HandleListLicenses(c *fiber.Ctx) error {
	licenses, err := repository.GetGlobalFactory().GetLicenseRepository().List()
	if err != nil {
		log.Errorf("[Catalog] List licenses failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load licenses"})
	}
	return c.JSON(fiber.Map{"licenses": licenses})
}
