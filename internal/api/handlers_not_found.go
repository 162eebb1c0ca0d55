package api

import (
	"fmt"
	"html/template"

	"github.com/gofiber/fiber/v2"
)

func (handler *Handler) NotFound(c *fiber.Ctx) error {
	if isAPIRequest(c) || acceptsJSON(c) {
		return apiError(c, fiber.StatusNotFound, "not found")
	}

	if isHTMX(c) {
		c.Status(fiber.StatusNotFound)
		return c.SendString(fmt.Sprintf("<div class=\"status-error\">%s</div>", template.HTMLEscapeString("Page not found")))
	}

	c.Status(fiber.StatusNotFound)
	return handler.render(c, "not_found", fiber.Map{
		"Title": "CSV Upload Dashboard | Page Not Found",
		"Path":  c.Path(),
	})
}
