package api

import (
	"bytes"
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
)

func (handler *Handler) Health(c *fiber.Ctx) error {
	analysisStatus := "ok"
	if handler.probe != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthProbeTimeout)
		defer cancel()
		if err := handler.probe.Ping(ctx); err != nil {
			log.Printf("analysis service probe failed: %v", err)
			analysisStatus = "unreachable"
		}
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"analysis": analysisStatus,
		"sessions": handler.workspaces.Len(),
	})
}

func (handler *Handler) render(c *fiber.Ctx, name string, data fiber.Map) error {
	tmpl, ok := handler.templates[name]
	if !ok {
		return c.Status(fiber.StatusInternalServerError).SendString("template not found")
	}
	payload := handler.withTemplateDefaults(c, data)
	var output bytes.Buffer
	if err := tmpl.ExecuteTemplate(&output, "base", payload); err != nil {
		log.Printf("render %s: %v", name, err)
		return c.Status(fiber.StatusInternalServerError).SendString("failed to render template")
	}
	c.Type("html", "utf-8")
	return c.Send(output.Bytes())
}

func (handler *Handler) withTemplateDefaults(c *fiber.Ctx, data fiber.Map) fiber.Map {
	if data == nil {
		data = fiber.Map{}
	}
	if _, ok := data["Title"]; !ok {
		data["Title"] = "CSV Upload Dashboard"
	}
	if _, ok := data["CSRFToken"]; !ok {
		data["CSRFToken"] = csrfToken(c)
	}
	return data
}
