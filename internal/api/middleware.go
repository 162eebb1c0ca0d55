package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/csvdash/internal/services"
)

const (
	sessionCookieName    = "csvdash_session"
	flashCookieName      = "csvdash_flash"
	contextControllerKey = "dashboard_controller"
)

func currentController(c *fiber.Ctx) (*services.DashboardController, bool) {
	controller, ok := c.Locals(contextControllerKey).(*services.DashboardController)
	return controller, ok && controller != nil
}
