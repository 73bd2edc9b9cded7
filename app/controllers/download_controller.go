package controllers

import (
	"errors"
	"path"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/audiostore"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/entitlements"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/metrics/counter"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/usercontext"
)

// HandleBeatDownload hands out a presigned object URL for a purchased beat.
// The format query parameter picks mp3, wav or stems; what the buyer's
// license does not cover is refused regardless of what exists in the bucket.
func HandleBeatDownload(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	beatUUID := c.Params("uuid")
	if beatUUID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Beat UUID missing"})
	}

	format, ok := entitlements.ParseFormat(c.Query("format"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown download format"})
	}

	beat, err := repository.GetGlobalFactory().GetBeatRepository().GetByUUID(beatUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Beat not found"})
		}
		log.Errorf("[Download] Load beat %s failed: %v", beatUUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load beat"})
	}

	entitlement, err := repository.GetGlobalFactory().GetEntitlementRepository().GetByUserAndBeat(userCtx.UserID, beat.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not_entitled", "message": "No purchase grants access to this beat"})
		}
		log.Errorf("[Download] Entitlement lookup failed for user %d, beat %d: %v", userCtx.UserID, beat.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not check entitlement"})
	}

	if !entitlements.Covers(&entitlement.License, format) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "format_not_licensed", "message": "Your license does not include this format"})
	}

	client, err := audiostore.GetClient()
	if err != nil {
		log.Errorf("[Download] Audio store unavailable: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Downloads are temporarily unavailable"})
	}

	objectKey := deliveryObjectKey(beat, format)
	exists, err := client.ObjectExists(objectKey)
	if err != nil {
		log.Errorf("[Download] Object check failed for %s: %v", objectKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not prepare download"})
	}
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "format_unavailable", "message": "This format has not been uploaded for this beat"})
	}

	url, err := client.PresignDownload(c.Context(), objectKey, audiostore.DefaultPresignExpiry)
	if err != nil {
		log.Errorf("[Download] Presign failed for %s: %v", objectKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not prepare download"})
	}

	if err := counter.AddBeatDownload(beat.ID); err != nil {
		log.Warnf("[Download] Could not count download for beat %d: %v", beat.ID, err)
	}

	return c.JSON(fiber.Map{
		"download_url":    url,
		"format":          string(format),
		"expires_in_secs": int(audiostore.DefaultPresignExpiry.Seconds()),
	})
}

// deliveryObjectKey maps a licensed format onto the object key convention
// (<kind>/YYYY/MM/<uuid>.<ext>). The master's stored key anchors the date
// segment; siblings only differ in kind and extension.
func deliveryObjectKey(beat *models.Beat, format entitlements.Format) string {
	master := beat.AudioPath
	switch format {
	case entitlements.FormatWAV:
		return swapExt(master, ".wav")
	case entitlements.FormatStems:
		return swapKind(swapExt(master, ".zip"), audiostore.KindStems)
	default:
		return swapExt(master, ".mp3")
	}
}

func swapExt(objectKey, ext string) string {
	return strings.TrimSuffix(objectKey, path.Ext(objectKey)) + ext
}

func swapKind(objectKey, kind string) string {
	parts := strings.SplitN(objectKey, "/", 2)
	if len(parts) != 2 {
		return kind + "/" + objectKey
	}
	return kind + "/" + parts[1]
}
