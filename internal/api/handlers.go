package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/terraincognita07/csvdash/internal/services"
)

const (
	defaultMaxUploadSize = 10 << 20
	sessionTokenTTL      = 24 * time.Hour
	healthProbeTimeout   = 3 * time.Second
)

// AnalysisProbe reports whether the analysis service answers.
type AnalysisProbe interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	workspaces    *services.Workspaces
	probe         AnalysisProbe
	notifications *services.NotificationService
	secretKey     []byte
	cookieCodec   *secureCookieCodec
	cookieSecure  bool
	maxUploadSize int64
	location      *time.Location
	templates     map[string]*template.Template
}

type Options struct {
	SecretKey     string
	TemplateDir   string
	CookieSecure  bool
	MaxUploadSize int64
	Location      *time.Location
}

type FlashPayload struct {
	Notice string `json:"notice,omitempty"`
	Error  string `json:"error,omitempty"`
}

func NewHandler(workspaces *services.Workspaces, probe AnalysisProbe, options Options) (*Handler, error) {
	if workspaces == nil {
		return nil, errors.New("workspaces are required")
	}
	if strings.TrimSpace(options.SecretKey) == "" {
		return nil, errors.New("secret key is required")
	}
	if options.MaxUploadSize <= 0 {
		options.MaxUploadSize = defaultMaxUploadSize
	}
	if options.Location == nil {
		options.Location = time.Local
	}

	codec, err := newSecureCookieCodec([]byte(options.SecretKey))
	if err != nil {
		return nil, err
	}

	funcMap := template.FuncMap{
		"formatFloat": func(value float64) string {
			return humanize.FormatFloat("#,###.##", value)
		},
		"formatCount": func(value int64) string {
			return humanize.Comma(value)
		},
		"formatPercent": func(value float64) string {
			return fmt.Sprintf("%.1f", value)
		},
		"joinNames": func(names []string) string {
			return strings.Join(names, ", ")
		},
	}

	templates := make(map[string]*template.Template)
	for _, page := range []string{"dashboard", "not_found"} {
		parsed, err := template.New("base").Funcs(funcMap).ParseFiles(
			filepath.Join(options.TemplateDir, "base.html"),
			filepath.Join(options.TemplateDir, page+".html"),
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		templates[page] = parsed
	}

	return &Handler{
		workspaces:    workspaces,
		probe:         probe,
		notifications: services.NewNotificationService(),
		secretKey:     []byte(options.SecretKey),
		cookieCodec:   codec,
		cookieSecure:  options.CookieSecure,
		maxUploadSize: options.MaxUploadSize,
		location:      options.Location,
		templates:     templates,
	}, nil
}
