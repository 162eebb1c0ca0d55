package api

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/csvdash/internal/models"
	"github.com/terraincognita07/csvdash/internal/services"
)

func (handler *Handler) GetHistory(c *fiber.Ctx) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	records, err := controller.History()
	if err != nil {
		log.Printf("[session %s] load history failed: %v", controller.SessionID(), err)
		return apiError(c, fiber.StatusInternalServerError, "failed to load history")
	}
	if records == nil {
		records = []models.SummaryRecord{}
	}
	return c.JSON(fiber.Map{"history": records, "count": len(records)})
}

func (handler *Handler) GetSummary(c *fiber.Ctx) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	response := fiber.Map{
		"summary":   nil,
		"chart":     nil,
		"selected":  nil,
		"uploading": controller.Uploading(),
	}
	if file, ok := controller.SelectedFile(); ok {
		response["selected"] = fiber.Map{"name": file.Name, "size": file.Size()}
	}
	if summary, ok := controller.ActiveSummary(); ok {
		response["summary"] = summary
		if chart, ok := services.BuildDistributionChart(summary); ok {
			response["chart"] = chart
		}
	}
	return c.JSON(response)
}

func (handler *Handler) ClearHistoryPage(c *fiber.Ctx) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	if err := controller.ClearHistory(); err != nil {
		log.Printf("[session %s] clear history failed: %v", controller.SessionID(), err)
		return handler.redirectWithNotice(c, "", services.NoticeUnexpected)
	}
	return handler.redirectWithNotice(c, services.NoticeHistoryCleared, "")
}

func (handler *Handler) ClearHistoryAPI(c *fiber.Ctx) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	if err := controller.ClearHistory(); err != nil {
		log.Printf("[session %s] clear history failed: %v", controller.SessionID(), err)
		return apiError(c, fiber.StatusInternalServerError, "failed to clear history")
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (handler *Handler) ReloadHistoryPage(c *fiber.Ctx) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	if err := controller.FetchHistory(c.UserContext()); err != nil {
		log.Printf("[session %s] reload history failed: %v", controller.SessionID(), err)
		return handler.redirectWithNotice(c, "", services.NoticeHistoryFailed)
	}
	return handler.redirectWithNotice(c, services.NoticeHistoryReloaded, "")
}

func (handler *Handler) ReloadHistoryAPI(c *fiber.Ctx) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	if err := controller.FetchHistory(c.UserContext()); err != nil {
		log.Printf("[session %s] reload history failed: %v", controller.SessionID(), err)
		return apiError(c, fiber.StatusBadGateway, services.ErrServerError.Error())
	}
	return handler.GetHistory(c)
}
