package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/beatmarkt/BeatMarkt/app/controllers"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/config"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/constants"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/middleware"
)

// InternalRouter carries the service-to-service routes. These never face
// the public internet; the service token is a second fence, not the first.
type InternalRouter struct {
}

func (h InternalRouter) InstallRouter(app *fiber.App) {
	internal := app.Group(constants.InternalRoute,
		middleware.ServiceTokenMiddleware(config.Get().Contracts.CallbackToken))

	internal.Post(constants.ContractsCallback, controllers.HandleContractCallback)
}

func NewInternalRouter() *InternalRouter {
	return &InternalRouter{}
}
