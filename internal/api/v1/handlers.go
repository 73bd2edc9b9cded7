package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to the controllers to keep behavior consistent with the rest
	// of the application.
	"github.com/beatmarkt/BeatMarkt/app/controllers"
)

// Pong is the health check response body.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer carries the public v1 handler set.
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetBeats lists the public catalog.
func (s *APIServer) GetBeats(c *fiber.Ctx) error {
	return controllers.HandleListBeats(c)
}

// GetBeat returns one listing by UUID.
func (s *APIServer) GetBeat(c *fiber.Ctx) error {
	return controllers.HandleGetBeat(c)
}

// PostBeatPlay counts a preview play.
func (s *APIServer) PostBeatPlay(c *fiber.Ctx) error {
	return controllers.HandleBeatPlay(c)
}

// GetSharedBeat resolves a short share code to its beat.
func (s *APIServer) GetSharedBeat(c *fiber.Ctx) error {
	return controllers.HandleResolveShareCode(c)
}

// GetLicenses lists the license catalog.
func (s *APIServer) GetLicenses(c *fiber.Ctx) error {
	return controllers.HandleListLicenses(c)
}

// PostCheckout starts a hosted checkout.
// Security is enforced via API key middleware attached at registration.
func (s *APIServer) PostCheckout(c *fiber.Ctx) error {
	return controllers.HandleStartCheckout(c)
}

// DeleteCheckout abandons the caller's reservation on a beat.
func (s *APIServer) DeleteCheckout(c *fiber.Ctx) error {
	return controllers.HandleAbandonCheckout(c)
}

// GetDownload hands out a presigned download URL for a purchased beat.
func (s *APIServer) GetDownload(c *fiber.Ctx) error {
	return controllers.HandleBeatDownload(c)
}

// GetAccount returns the caller's account information.
func (s *APIServer) GetAccount(c *fiber.Ctx) error {
	return controllers.HandleGetAccount(c)
}

// GetAccountPurchases lists the caller's purchases.
func (s *APIServer) GetAccountPurchases(c *fiber.Ctx) error {
	return controllers.HandleListPurchases(c)
}

// GetAccountEntitlements lists the caller's download grants.
func (s *APIServer) GetAccountEntitlements(c *fiber.Ctx) error {
	return controllers.HandleListEntitlements(c)
}

// PostAccountAPIKey exchanges credentials for a fresh API key. This is the
// one account route that cannot sit behind the key middleware.
func (s *APIServer) PostAccountAPIKey(c *fiber.Ctx) error {
	return controllers.HandleIssueAPIKey(c)
}

// DeleteAccountAPIKey revokes the caller's API key.
func (s *APIServer) DeleteAccountAPIKey(c *fiber.Ctx) error {
	return controllers.HandleRevokeAPIKey(c)
}

// GetProducerPayouts returns the caller's sales summary.
func (s *APIServer) GetProducerPayouts(c *fiber.Ctx) error {
	return controllers.HandleProducerPayouts(c)
}

// GetProducerBeats lists the caller's own listings.
func (s *APIServer) GetProducerBeats(c *fiber.Ctx) error {
	return controllers.HandleProducerBeats(c)
}

// PostProducerBeat creates a listing from a multipart upload.
func (s *APIServer) PostProducerBeat(c *fiber.Ctx) error {
	return controllers.HandleProducerBeatUpload(c)
}

// PatchProducerBeat edits one of the caller's listings.
func (s *APIServer) PatchProducerBeat(c *fiber.Ctx) error {
	return controllers.HandleProducerBeatUpdate(c)
}

// GetProducerSales lists the caller's sales one line per purchase.
func (s *APIServer) GetProducerSales(c *fiber.Ctx) error {
	return controllers.HandleProducerSales(c)
}

// GetAdminDashboard returns marketplace totals.
func (s *APIServer) GetAdminDashboard(c *fiber.Ctx) error {
	return controllers.HandleAdminDashboard(c)
}

// GetAdminUsers lists accounts for user management.
func (s *APIServer) GetAdminUsers(c *fiber.Ctx) error {
	return controllers.HandleAdminUsers(c)
}

// PostAdminUser provisions an account.
func (s *APIServer) PostAdminUser(c *fiber.Ctx) error {
	return controllers.HandleAdminUserCreate(c)
}

// PatchAdminUser updates account fields, role and status included.
func (s *APIServer) PatchAdminUser(c *fiber.Ctx) error {
	return controllers.HandleAdminUserUpdate(c)
}

// DeleteAdminUser removes an account.
func (s *APIServer) DeleteAdminUser(c *fiber.Ctx) error {
	return controllers.HandleAdminUserDelete(c)
}

// DeleteAdminBeat takes a listing down.
func (s *APIServer) DeleteAdminBeat(c *fiber.Ctx) error {
	return controllers.HandleAdminBeatTakedown(c)
}

// PostAdminPurchaseRefund records a processor-side refund for a purchase.
func (s *APIServer) PostAdminPurchaseRefund(c *fiber.Ctx) error {
	return controllers.HandleAdminPurchaseRefund(c)
}

// GetAdminJobs reports background job queue health.
func (s *APIServer) GetAdminJobs(c *fiber.Ctx) error {
	return controllers.HandleAdminJobQueueStatus(c)
}
