package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/terraincognita07/csvdash/internal/analysis"
	"github.com/terraincognita07/csvdash/internal/db"
	"github.com/terraincognita07/csvdash/internal/services"
)

const (
	FormatCSV      = "csv"
	FormatWorkbook = "xlsx"
)

var errUnknownFormat = errors.New("unknown export format")

type Settings struct {
	AnalysisBaseURL string
	AnalysisTimeout time.Duration
	DBPath          string
	Stdout          io.Writer
}

func (settings Settings) stdout() io.Writer {
	if settings.Stdout == nil {
		return os.Stdout
	}
	return settings.Stdout
}

// openController builds a one-off dashboard session backed by the history store.
func openController(settings Settings) (*services.DashboardController, func(), error) {
	database, err := db.OpenSQLite(settings.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("database init failed: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("database init failed: %w", err)
	}

	sessionID := "cli-" + uuid.NewString()
	repositories := db.NewRepositories(database)
	client := analysis.NewClient(settings.AnalysisBaseURL, settings.AnalysisTimeout)
	controller := services.NewDashboardController(sessionID, client, repositories.History)

	cleanup := func() {
		_ = repositories.History.ClearRecords(sessionID)
		_ = sqlDB.Close()
	}
	return controller, cleanup, nil
}

// RunUploadCommand uploads each file in order and prints its summary. Every
// file is attempted; the returned error lists the ones that failed.
func RunUploadCommand(ctx context.Context, settings Settings, paths []string) error {
	if len(paths) == 0 {
		return errors.New("at least one CSV file is required")
	}

	controller, cleanup, err := openController(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	out := settings.stdout()
	var failures []error
	for _, path := range paths {
		if err := uploadFile(ctx, controller, path, out); err != nil {
			fmt.Fprintf(out, "❌ %s: %s (%v)\n", path, services.NoticeUploadFailed, err)
			failures = append(failures, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(failures...)
}

func uploadFile(ctx context.Context, controller *services.DashboardController, path string, out io.Writer) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	file := services.SelectedFile{Name: filepath.Base(path), Content: content}
	if err := controller.SelectFile(file); err != nil {
		return err
	}

	record, err := controller.Upload(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ %s (%s): %s\n", file.Name, file.HumanSize(), services.NoticeUploadSucceeded)
	fmt.Fprintf(out, "   rows: %d, columns: %d\n", record.Rows, record.Columns)
	if len(record.ColumnNames) > 0 {
		fmt.Fprintf(out, "   column names: %s\n", strings.Join(record.ColumnNames, ", "))
	}
	if chart, ok := services.BuildDistributionChart(record); ok {
		fmt.Fprintf(out, "   %s:\n", chart.Title)
		for _, bar := range chart.Bars {
			fmt.Fprintf(out, "     %s: %d\n", bar.Label, bar.Count)
		}
	}
	return nil
}

// RunExportCommand fetches the upload history from the analysis service and
// writes the flattened export. Nothing is written for an empty history.
func RunExportCommand(ctx context.Context, settings Settings, args []string) error {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	flags.SetOutput(settings.stdout())
	output := flags.String("o", "", "output file (default upload_history_flattened.<format>)")
	format := flags.String("format", FormatCSV, "export format: csv or xlsx")
	if err := flags.Parse(args); err != nil {
		return err
	}

	normalizedFormat := strings.ToLower(strings.TrimSpace(*format))
	path := strings.TrimSpace(*output)
	switch normalizedFormat {
	case FormatCSV:
		if path == "" {
			path = services.HistoryExportFilename
		}
	case FormatWorkbook:
		if path == "" {
			path = services.HistoryWorkbookExportFilename
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, *format)
	}

	controller, cleanup, err := openController(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := controller.FetchHistory(ctx); err != nil {
		return fmt.Errorf("%w: %w", services.ErrServerError, err)
	}

	payload, err := buildExport(controller, normalizedFormat)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	fmt.Fprintf(settings.stdout(), "✅ Exported upload history to %s (%s)\n", path, humanize.Bytes(uint64(len(payload))))
	return nil
}

func buildExport(controller *services.DashboardController, format string) ([]byte, error) {
	if format == FormatWorkbook {
		return controller.ExportWorkbook()
	}
	output, err := controller.ExportCSV()
	if err != nil {
		return nil, err
	}
	return []byte(output), nil
}
