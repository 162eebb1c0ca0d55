package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/terraincognita07/csvdash/internal/analysis"
	"github.com/terraincognita07/csvdash/internal/api"
	"github.com/terraincognita07/csvdash/internal/cli"
	"github.com/terraincognita07/csvdash/internal/config"
	"github.com/terraincognita07/csvdash/internal/db"
	"github.com/terraincognita07/csvdash/internal/services"
)

const usage = `usage:
  csvdash                                   run the dashboard server
  csvdash upload FILE...                    upload CSV files and print their summaries
  csvdash export [-o path] [-format csv|xlsx] write the flattened upload history`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config init failed: %v", err)
	}
	time.Local = cfg.Location

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1], os.Args[2:]); err != nil {
			log.Fatalf("%s failed: %v", os.Args[1], err)
		}
		return
	}

	runServer(cfg)
}

func runCommand(cfg config.Config, command string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings := cli.Settings{
		AnalysisBaseURL: cfg.AnalysisBaseURL,
		AnalysisTimeout: cfg.AnalysisTimeout,
		DBPath:          cfg.DBPath,
	}

	switch strings.ToLower(strings.TrimSpace(command)) {
	case "upload":
		return cli.RunUploadCommand(ctx, settings, args)
	case "export":
		return cli.RunExportCommand(ctx, settings, args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func runServer(cfg config.Config) {
	secretKey, err := config.ResolveSecretKey(cfg.SecretKey)
	if err != nil {
		log.Fatalf("config init failed: %v", err)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	client := analysis.NewClient(cfg.AnalysisBaseURL, cfg.AnalysisTimeout)
	repositories := db.NewRepositories(database)
	workspaces := services.NewWorkspaces(client, repositories.History, cfg.MaxSessions)

	handler, err := api.NewHandler(workspaces, client, api.Options{
		SecretKey:     secretKey,
		TemplateDir:   filepath.Join("internal", "templates"),
		CookieSecure:  cfg.CookieSecure,
		MaxUploadSize: cfg.MaxUploadSize,
		Location:      cfg.Location,
	})
	if err != nil {
		log.Fatalf("handler init failed: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "csvdash",
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit(cfg.MaxUploadSize),
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	app.Use(csrf.New(csrfMiddlewareConfig(cfg.CookieSecure)))

	app.Static("/static", filepath.Join("web", "static"))
	api.RegisterRoutes(app, handler)

	lifecycleCtx, cancelLifecycle := context.WithCancel(context.Background())
	defer cancelLifecycle()
	workspaces.Start(lifecycleCtx, services.DefaultWorkspaceSweepInterval, services.DefaultWorkspaceIdleTTL)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-sigCtx.Done()
		cancelLifecycle()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("server shutdown failed: %v", err)
		}
	}()

	log.Printf("csvdash listening on http://0.0.0.0:%s (analysis: %s, tz: %s)", cfg.Port, client.BaseURL(), cfg.Location.String())
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// bodyLimit leaves room for the multipart envelope around the largest accepted file.
func bodyLimit(maxUploadSize int64) int {
	return int(maxUploadSize) + 1<<20
}

func csrfMiddlewareConfig(cookieSecure bool) csrf.Config {
	return csrf.Config{
		KeyLookup:      "form:csrf_token",
		CookieName:     "csvdash_csrf",
		CookieSameSite: "Lax",
		CookieHTTPOnly: true,
		CookieSecure:   cookieSecure,
		ContextKey:     "csrf",
		Next:           skipCSRF,
	}
}

// skipCSRF exempts the JSON API and probes; page forms always carry the token.
func skipCSRF(c *fiber.Ctx) bool {
	path := c.Path()
	return strings.HasPrefix(path, "/api/") || path == "/healthz"
}
