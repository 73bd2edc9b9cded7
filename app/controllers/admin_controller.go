package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/coverart"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/database"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/env"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/jobqueue"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/usercontext"
)

// AdminController handles admin-related HTTP requests using repository pattern
type AdminController struct {
	repos *repository.Repositories
}

// NewAdminController creates a new admin controller with repository dependencies
func NewAdminController(repos *repository.Repositories) *AdminController {
	return &AdminController{
		repos: repos,
	}
}

// countCompletedSales returns the number of completed purchases (no repository
// method exists for the marketplace-wide count)
func countCompletedSales() (int64, error) {
	var cnt int64
	err := database.GetDB().Model(&models.BeatPurchase{}).Where("status = ?", models.PurchaseStatusCompleted).Count(&cnt).Error
	return cnt, err
}

// handleError handles errors consistently. The underlying error only shows
// up in the response body in dev.
func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[Admin] %s: %v", message, err)
	if env.IsDev() && err != nil {
		message = message + ": " + err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": message})
}

// HandleDashboard returns the marketplace totals and the most recent accounts.
func (ac *AdminController) HandleDashboard(c *fiber.Ctx) error {
	totalUsers, err := ac.repos.User.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get user count", err)
	}

	availableBeats, err := ac.repos.Beat.CountAvailable(repository.BeatFilter{})
	if err != nil {
		return ac.handleError(c, "Failed to get beat count", err)
	}

	var completedSales int64
	if cnt, err := countCompletedSales(); err == nil {
		completedSales = cnt
	} else {
		log.Errorf("[Admin] Failed to count completed sales: %v", err)
	}

	recentUsers, err := ac.repos.User.List(0, 5)
	if err != nil {
		return ac.handleError(c, "Failed to get recent users", err)
	}

	return c.JSON(fiber.Map{
		"total_users":     totalUsers,
		"available_beats": availableBeats,
		"completed_sales": completedSales,
		"recent_users":    recentUsers,
	})
}

// HandleUsers lists accounts page by page for user management.
func (ac *AdminController) HandleUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := 20
	offset := (page - 1) * perPage

	totalUsers, err := ac.repos.User.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get user count", err)
	}

	users, err := ac.repos.User.List(offset, perPage)
	if err != nil {
		return ac.handleError(c, "Failed to list users", err)
	}

	totalPages := int(totalUsers) / perPage
	if int(totalUsers)%perPage > 0 {
		totalPages++
	}

	return c.JSON(fiber.Map{
		"users":       users,
		"page":        page,
		"total_pages": totalPages,
		"total":       totalUsers,
	})
}

// HandleUserCreate provisions an account. There is no self-service signup
// here; accounts are created by support staff or synced over from the
// storefront platform.
func (ac *AdminController) HandleUserCreate(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if len(req.Password) < 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Password must have at least 6 characters"})
	}

	user, err := models.CreateUser(strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Validation failed: " + err.Error()})
	}
	if req.Role != "" {
		switch req.Role {
		case models.ROLE_USER, models.ROLE_PRODUCER, models.ROLE_ADMIN:
			user.Role = req.Role
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown role"})
		}
	}

	if err := ac.repos.User.Create(user); err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == 1062 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Email already registered"})
		}
		return ac.handleError(c, "Failed to create user", err)
	}

	log.Infof("[Admin] User %d created with role %s", user.ID, user.Role)
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleUserUpdate changes account fields. Role changes are how producer
// onboarding happens: support flips an account to "producer" here once the
// payout paperwork is through.
func (ac *AdminController) HandleUserUpdate(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid user id"})
	}

	user, err := ac.repos.User.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return ac.handleError(c, "Failed to load user", err)
	}

	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Role     *string `json:"role"`
		Status   *string `json:"status"`
		Password *string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Status != nil {
		switch *req.Status {
		case models.STATUS_ACTIVE, models.STATUS_INACTIVE, models.STATUS_DISABLED:
			user.Status = *req.Status
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown status"})
		}
	}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Password must have at least 6 characters"})
		}
		if err := user.SetPassword(*req.Password); err != nil {
			return ac.handleError(c, "Failed to hash password", err)
		}
	}

	if err := user.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Validation failed: " + err.Error()})
	}

	if err := ac.repos.User.Update(user); err != nil {
		return ac.handleError(c, "Failed to update user", err)
	}

	log.Infof("[Admin] User %d updated (role=%s status=%s)", user.ID, user.Role, user.Status)
	return c.JSON(user)
}

// HandleUserDelete removes an account. Self-deletion is rejected so an admin
// cannot lock themselves out mid-session.
func (ac *AdminController) HandleUserDelete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid user id"})
	}

	if usercontext.GetUserID(c) == uint(id) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "unprocessable", "message": "You cannot delete your own account"})
	}

	if err := ac.repos.User.Delete(uint(id)); err != nil {
		return ac.handleError(c, "Failed to delete user", err)
	}

	log.Infof("[Admin] User %d deleted by admin %d", id, usercontext.GetUserID(c))
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleBeatTakedown pulls a listing from the marketplace entirely, for
// rights disputes and content removal requests. The row is soft deleted, so
// the beat drops out of the catalog and out of download resolution; cover
// variants leave the public directory. Masters stay on disk and in the
// object store in case the dispute resolves.
func (ac *AdminController) HandleBeatTakedown(c *fiber.Ctx) error {
	beat, err := ac.repos.Beat.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Beat not found"})
		}
		return ac.handleError(c, "Failed to load beat", err)
	}

	if err := ac.repos.Beat.Delete(beat.ID); err != nil {
		return ac.handleError(c, "Failed to delete beat", err)
	}
	coverart.Remove(beat.UUID)

	log.Infof("[Admin] Beat %s (%q) taken down by admin %d", beat.UUID, beat.Title, usercontext.GetUserID(c))
	return c.SendStatus(fiber.StatusNoContent)
}

// HandlePurchaseRefund records a processor-side refund: the purchase flips to
// refunded and the buyer's download grant goes away. The beat itself is not
// touched; relisting an exclusive after a refund is the producer's decision.
// Refunding an already refunded purchase is a no-op.
func (ac *AdminController) HandlePurchaseRefund(c *fiber.Ctx) error {
	purchase, err := ac.repos.Purchase.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Purchase not found"})
		}
		return ac.handleError(c, "Failed to load purchase", err)
	}

	changed, err := ac.repos.Purchase.MarkRefunded(purchase.ID)
	if err != nil {
		return ac.handleError(c, "Failed to record refund", err)
	}
	if changed {
		purchase.Status = models.PurchaseStatusRefunded
		log.Infof("[Admin] Purchase %s refunded by admin %d, entitlement revoked (buyer %d, beat %d)",
			purchase.UUID, usercontext.GetUserID(c), purchase.BuyerID, purchase.BeatID)
	}

	return c.JSON(fiber.Map{"purchase": purchase, "changed": changed})
}

// HandleJobQueueStatus reports queue depth and per-status job counters so an
// operator can see whether background work is keeping up.
func (ac *AdminController) HandleJobQueueStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()

	pending, err := queue.GetQueueSize(ctx)
	if err != nil {
		return ac.handleError(c, "Could not read queue state", err)
	}
	processing, err := queue.GetProcessingSize(ctx)
	if err != nil {
		return ac.handleError(c, "Could not read queue state", err)
	}
	stats, err := queue.GetJobStats(ctx)
	if err != nil {
		return ac.handleError(c, "Could not read queue state", err)
	}

	return c.JSON(fiber.Map{
		"running":    manager.IsRunning(),
		"pending":    pending,
		"processing": processing,
		"by_status":  stats,
	})
}
