package api

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/csvdash/internal/services"
)

func apiError(c *fiber.Ctx, status int, message string) error {
	if isHTMX(c) {
		return c.Status(status).SendString(fmt.Sprintf("<div class=\"status-error\">%s</div>", template.HTMLEscapeString(message)))
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// statusForError maps dashboard failures to the HTTP status and error text of
// the JSON API.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNoFileSelected):
		return fiber.StatusBadRequest, services.ErrNoFileSelected.Error()
	case errors.Is(err, services.ErrEmptyExport):
		return fiber.StatusBadRequest, services.ErrEmptyExport.Error()
	case errors.Is(err, errUploadTooLarge):
		return fiber.StatusRequestEntityTooLarge, errUploadTooLarge.Error()
	case errors.Is(err, services.ErrUploadInProgress):
		return fiber.StatusConflict, services.ErrUploadInProgress.Error()
	case errors.Is(err, services.ErrSessionExpired):
		return fiber.StatusGone, services.ErrSessionExpired.Error()
	case errors.Is(err, services.ErrUploadRejected):
		return fiber.StatusUnprocessableEntity, services.ErrUploadRejected.Error()
	case errors.Is(err, services.ErrServerError):
		return fiber.StatusBadGateway, services.ErrServerError.Error()
	default:
		return fiber.StatusInternalServerError, "internal error"
	}
}

func apiErrorFor(c *fiber.Ctx, err error) error {
	status, message := statusForError(err)
	return apiError(c, status, message)
}

func acceptsJSON(c *fiber.Ctx) bool {
	return strings.Contains(strings.ToLower(c.Get("Accept")), "application/json")
}

func isAPIRequest(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/")
}

func isHTMX(c *fiber.Ctx) bool {
	return strings.EqualFold(c.Get("HX-Request"), "true")
}

func csrfToken(c *fiber.Ctx) string {
	token, _ := c.Locals("csrf").(string)
	return token
}

func setExportAttachmentHeaders(c *fiber.Ctx, contentType string, filename string) {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
}
