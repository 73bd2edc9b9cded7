package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/audiostore"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/database"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/jobqueue"
)

// HandleContractCallback receives the contract service's "document is ready"
// call. It stores the object key on the purchase and queues the buyer email.
// The route sits behind the service token middleware; callers are machines,
// not users.
func HandleContractCallback(c *fiber.Ctx) error {
	// purchase_id comes back as the same opaque string the notifier sent out.
	var req struct {
		PurchaseID   string `json:"purchase_id"`
		ContractPath string `json:"contract_path"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	purchaseID, err := strconv.ParseUint(strings.TrimSpace(req.PurchaseID), 10, 64)
	if err != nil || purchaseID == 0 || strings.TrimSpace(req.ContractPath) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "purchase_id and contract_path are required"})
	}

	purchase, err := repository.GetGlobalFactory().GetPurchaseRepository().GetByID(uint(purchaseID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Purchase not found"})
		}
		log.Errorf("[Contracts] Load purchase %d failed: %v", purchaseID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load purchase"})
	}

	// The contract service writes under its own prefix; anything else is a
	// confused caller, and the path ends up in buyer-facing mail.
	contractPath := strings.TrimSpace(req.ContractPath)
	if !strings.HasPrefix(contractPath, audiostore.KindContract+"/") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "contract_path must sit under the contracts prefix"})
	}
	if err := database.GetDB().Model(&models.BeatPurchase{}).
		Where("id = ?", purchase.ID).
		Update("contract_path", contractPath).Error; err != nil {
		log.Errorf("[Contracts] Store contract path on purchase %d failed: %v", purchase.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not store contract path"})
	}

	// The email worker claims the send lease itself, so queueing twice for
	// the same purchase cannot double-send.
	job, err := jobqueue.GetManager().GetQueue().EnqueueContractEmail(purchase.ID, purchase.UUID)
	if err != nil {
		log.Errorf("[Contracts] Enqueue contract email for purchase %d failed: %v", purchase.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not queue contract email"})
	}

	log.Infof("[Contracts] Contract ready for purchase %d, email job %s queued", purchase.ID, job.ID)
	return c.JSON(fiber.Map{"ok": true, "job_id": job.ID})
}
