package api

import (
	"log"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/csvdash/internal/models"
	"github.com/terraincognita07/csvdash/internal/services"
)

type averageRow struct {
	Column string
	Value  float64
}

type historyItem struct {
	Position   int
	UploadedAt string
	Rows       int
	Columns    int
	Message    string
	Success    bool
}

type selectedFileView struct {
	Name string
	Size string
}

func (handler *Handler) ShowDashboard(c *fiber.Ctx) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	flash := handler.popFlashCookie(c)
	data := fiber.Map{
		"Notice":    handler.notifications.ResolveNotice(flash.Notice, c.Query("notice")),
		"Error":     flash.Error,
		"Uploading": controller.Uploading(),
	}

	if file, ok := controller.SelectedFile(); ok {
		data["SelectedFile"] = selectedFileView{Name: file.Name, Size: file.HumanSize()}
	}

	if summary, ok := controller.ActiveSummary(); ok {
		data["Summary"] = summary
		data["Averages"] = buildAverageRows(summary)
		if chart, ok := services.BuildDistributionChart(summary); ok {
			data["Chart"] = chart
		}
	}

	records, err := controller.History()
	if err != nil {
		log.Printf("[session %s] load history failed: %v", controller.SessionID(), err)
		data["Error"] = services.NoticeHistoryFailed
	}
	data["History"] = handler.buildHistoryItems(records)

	return handler.render(c, "dashboard", data)
}

func buildAverageRows(summary models.SummaryRecord) []averageRow {
	rows := make([]averageRow, 0, len(summary.Averages))
	for column, value := range summary.Averages {
		rows = append(rows, averageRow{Column: column, Value: value})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Column < rows[j].Column
	})
	return rows
}

func (handler *Handler) buildHistoryItems(records []models.SummaryRecord) []historyItem {
	items := make([]historyItem, 0, len(records))
	for index, record := range records {
		items = append(items, historyItem{
			Position:   index + 1,
			UploadedAt: handler.formatUploadedAt(record.UploadedAt),
			Rows:       record.Rows,
			Columns:    record.Columns,
			Message:    record.Message,
			Success:    record.Success,
		})
	}
	return items
}

// formatUploadedAt shows RFC 3339 timestamps in the configured zone and
// passes anything else through untouched.
func (handler *Handler) formatUploadedAt(raw string) string {
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}
	return parsed.In(handler.location).Format("2006-01-02 15:04:05")
}
