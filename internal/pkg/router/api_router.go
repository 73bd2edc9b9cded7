package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/beatmarkt/BeatMarkt/app/controllers"
	apiv1 "github.com/beatmarkt/BeatMarkt/internal/api/v1"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/constants"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/ratelimit"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// Build the controller singletons before any request can hit them.
	controllers.InitializeWebhookController()
	controllers.InitializeCheckoutController()
	controllers.InitializeAdminController()

	api := app.Group(constants.APIRoute)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "BeatMarkt API",
		})
	})

	// Payment processor webhook. Rate limited per source, generous enough
	// for honest redelivery bursts.
	api.Post(constants.PaymentWebhook,
		ratelimit.New(240, time.Minute, clientKey),
		controllers.HandlePaymentWebhook)

	// API v1 routes
	v1 := api.Group(constants.APIV1Route, ratelimit.New(300, time.Minute, clientKey))
	apiServer := apiv1.NewAPIServer()
	apiv1.RegisterHandlers(v1, apiServer)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// clientKey buckets limiter counters by the real client address, not the
// proxy in front of it.
func clientKey(c *fiber.Ctx) string {
	ipv4, ipv6 := controllers.GetClientIP(c)
	if ipv4 != "" {
		return ipv4
	}
	if ipv6 != "" {
		return ipv6
	}
	return c.IP()
}
