package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/constants"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/middleware"
)

// RegisterHandlers attaches the v1 routes to the given router. Catalog
// reads are public; everything that acts on behalf of a user requires an
// API key, and producer and admin routes additionally require that role.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	// public catalog
	router.Get("/beats", s.GetBeats)
	router.Get("/beats/:uuid", s.GetBeat)
	router.Post("/beats/:uuid/play", s.PostBeatPlay)
	router.Get("/"+constants.SharePath+"/:code", s.GetSharedBeat)
	router.Get("/licenses", s.GetLicenses)

	// credential exchange, the only unauthenticated account route
	router.Post("/account/api-key", s.PostAccountAPIKey)

	authed := router.Group("", middleware.APIKeyAuthMiddleware())
	authed.Get("/account", s.GetAccount)
	authed.Delete("/account/api-key", s.DeleteAccountAPIKey)
	authed.Get("/account/purchases", s.GetAccountPurchases)
	authed.Get("/account/entitlements", s.GetAccountEntitlements)
	authed.Post("/checkout", s.PostCheckout)
	authed.Delete("/checkout/:uuid", s.DeleteCheckout)
	authed.Get("/downloads/:uuid", s.GetDownload)

	producer := authed.Group("/producer", middleware.RequireProducer)
	producer.Get("/payouts", s.GetProducerPayouts)
	producer.Get("/sales", s.GetProducerSales)
	producer.Get("/beats", s.GetProducerBeats)
	producer.Post("/beats", s.PostProducerBeat)
	producer.Patch("/beats/:uuid", s.PatchProducerBeat)

	admin := authed.Group("/admin", middleware.RequireAdmin)
	admin.Get("/dashboard", s.GetAdminDashboard)
	admin.Get("/users", s.GetAdminUsers)
	admin.Post("/users", s.PostAdminUser)
	admin.Patch("/users/:id", s.PatchAdminUser)
	admin.Delete("/users/:id", s.DeleteAdminUser)
	admin.Delete("/beats/:uuid", s.DeleteAdminBeat)
	admin.Post("/purchases/:uuid/refund", s.PostAdminPurchaseRefund)
	admin.Get("/jobs", s.GetAdminJobs)
}
