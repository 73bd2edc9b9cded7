package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs one route surface on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App) {
	// The public API surface first, then the service-to-service routes.
	setup(app, NewApiRouter(), NewInternalRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
