package api

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, handler *Handler) {
	registerPageRoutes(app, handler)
	registerAPIRoutes(app, handler)
	app.Use(handler.NotFound)
}

func registerPageRoutes(app *fiber.App, handler *Handler) {
	app.Get("/healthz", handler.Health)
	app.Get("/favicon.ico", sendNoContent)

	app.Get("/", handler.SessionRequired, handler.ShowDashboard)
	app.Get("/dashboard", handler.SessionRequired, handler.ShowDashboard)
	app.Post("/upload", handler.SessionRequired, handler.UploadPage)
	app.Post("/history/clear", handler.SessionRequired, handler.ClearHistoryPage)
	app.Post("/history/reload", handler.SessionRequired, handler.ReloadHistoryPage)
	app.Get("/export/csv", handler.SessionRequired, handler.ExportCSVPage)
	app.Get("/export/xlsx", handler.SessionRequired, handler.ExportWorkbookPage)
}

func registerAPIRoutes(app *fiber.App, handler *Handler) {
	api := app.Group("/api", handler.SessionRequired)

	api.Post("/upload", handler.UploadAPI)
	api.Get("/summary", handler.GetSummary)

	history := api.Group("/history")
	history.Get("", handler.GetHistory)
	history.Delete("", handler.ClearHistoryAPI)
	history.Post("/reload", handler.ReloadHistoryAPI)

	export := api.Group("/export")
	export.Get("/csv", handler.ExportCSV)
	export.Get("/xlsx", handler.ExportWorkbook)
	export.Get("/json", handler.ExportJSON)
}

func sendNoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
