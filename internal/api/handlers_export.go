package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/csvdash/internal/services"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type exportFormat struct {
	contentType string
	filename    string
	build       func(controller *services.DashboardController) ([]byte, error)
}

var (
	csvExport = exportFormat{
		contentType: "text/csv; charset=utf-8",
		filename:    services.HistoryExportFilename,
		build: func(controller *services.DashboardController) ([]byte, error) {
			output, err := controller.ExportCSV()
			return []byte(output), err
		},
	}
	workbookExport = exportFormat{
		contentType: workbookContentType,
		filename:    services.HistoryWorkbookExportFilename,
		build: func(controller *services.DashboardController) ([]byte, error) {
			return controller.ExportWorkbook()
		},
	}
	jsonExport = exportFormat{
		contentType: fiber.MIMEApplicationJSON,
		filename:    services.HistoryJSONExportFilename,
		build: func(controller *services.DashboardController) ([]byte, error) {
			return controller.ExportJSON()
		},
	}
)

func (handler *Handler) ExportCSVPage(c *fiber.Ctx) error {
	return handler.exportPage(c, csvExport)
}

func (handler *Handler) ExportWorkbookPage(c *fiber.Ctx) error {
	return handler.exportPage(c, workbookExport)
}

func (handler *Handler) ExportCSV(c *fiber.Ctx) error {
	return handler.exportAPI(c, csvExport)
}

func (handler *Handler) ExportWorkbook(c *fiber.Ctx) error {
	return handler.exportAPI(c, workbookExport)
}

func (handler *Handler) ExportJSON(c *fiber.Ctx) error {
	return handler.exportAPI(c, jsonExport)
}

// exportPage answers the dashboard buttons: the file on success, otherwise a
// notification on the dashboard.
func (handler *Handler) exportPage(c *fiber.Ctx, format exportFormat) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	payload, err := format.build(controller)
	if err != nil {
		if !errors.Is(err, services.ErrEmptyExport) {
			log.Printf("[session %s] export %s failed: %v", controller.SessionID(), format.filename, err)
		}
		return handler.redirectWithNotice(c, "", handler.notifications.MessageForError(err))
	}

	setExportAttachmentHeaders(c, format.contentType, format.filename)
	return c.Send(payload)
}

func (handler *Handler) exportAPI(c *fiber.Ctx, format exportFormat) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	payload, err := format.build(controller)
	if err != nil {
		if !errors.Is(err, services.ErrEmptyExport) {
			log.Printf("[session %s] export %s failed: %v", controller.SessionID(), format.filename, err)
		}
		return apiErrorFor(c, err)
	}

	setExportAttachmentHeaders(c, format.contentType, format.filename)
	return c.Send(payload)
}
