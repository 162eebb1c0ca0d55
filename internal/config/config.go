package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = "8080"
	DefaultAnalysisBaseURL = "http://127.0.0.1:8000"
	DefaultAnalysisTimeout = 30 * time.Second
	DefaultMaxUploadSize   = 10 << 20
	DefaultMaxSessions     = 1000

	defaultDotEnvPath  = ".env"
	minSecretKeyLength = 32
)

var insecureSecretKeys = map[string]struct{}{
	"change_me_in_production":                    {},
	"replace_with_at_least_32_random_characters": {},
}

// Config is the resolved runtime configuration of the dashboard.
type Config struct {
	Port            string
	SecretKey       string
	AnalysisBaseURL string
	AnalysisTimeout time.Duration
	MaxUploadSize   int64
	MaxSessions     int
	DBPath          string
	CookieSecure    bool
	Location        *time.Location
}

// fileConfig mirrors the optional YAML file. Every key matches the lower-cased
// environment variable of the same setting.
type fileConfig struct {
	Port            string `yaml:"port"`
	SecretKey       string `yaml:"secret_key"`
	AnalysisBaseURL string `yaml:"analysis_base_url"`
	AnalysisTimeout string `yaml:"analysis_timeout"`
	MaxUploadSize   string `yaml:"max_upload_size"`
	MaxSessions     string `yaml:"max_sessions"`
	DBPath          string `yaml:"db_path"`
	CookieSecure    string `yaml:"cookie_secure"`
	TZ              string `yaml:"tz"`
}

// source resolves one setting: process environment first, then the dotenv
// file, then the YAML file.
type source struct {
	dotenv map[string]string
}

// Load reads the YAML file named by CONFIG_PATH, if any, and lets the dotenv
// file (DOTENV_PATH, default ".env") and then environment variables override
// it. The secret key is checked by the server only, with ResolveSecretKey.
func Load() (Config, error) {
	file, err := loadFile(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return Config{}, err
	}

	dotenv, err := loadDotEnv(os.Getenv("DOTENV_PATH"))
	if err != nil {
		return Config{}, err
	}
	settings := source{dotenv: dotenv}
	setting := settings.lookup

	port, err := ResolvePort(setting("PORT", file.Port))
	if err != nil {
		return Config{}, err
	}

	timeout, err := resolveTimeout(setting("ANALYSIS_TIMEOUT", file.AnalysisTimeout))
	if err != nil {
		return Config{}, err
	}

	maxUploadSize, err := resolveMaxUploadSize(setting("MAX_UPLOAD_SIZE", file.MaxUploadSize))
	if err != nil {
		return Config{}, err
	}

	maxSessions, err := resolveMaxSessions(setting("MAX_SESSIONS", file.MaxSessions))
	if err != nil {
		return Config{}, err
	}

	cookieSecure, err := resolveBool("COOKIE_SECURE", setting("COOKIE_SECURE", file.CookieSecure))
	if err != nil {
		return Config{}, err
	}

	baseURL := setting("ANALYSIS_BASE_URL", file.AnalysisBaseURL)
	if baseURL == "" {
		baseURL = DefaultAnalysisBaseURL
	}

	return Config{
		Port:            port,
		SecretKey:       setting("SECRET_KEY", file.SecretKey),
		AnalysisBaseURL: strings.TrimRight(baseURL, "/"),
		AnalysisTimeout: timeout,
		MaxUploadSize:   maxUploadSize,
		MaxSessions:     maxSessions,
		DBPath:          setting("DB_PATH", file.DBPath),
		CookieSecure:    cookieSecure,
		Location:        loadLocation(setting("TZ", file.TZ)),
	}, nil
}

func loadFile(path string) (fileConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return fileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

// loadDotEnv reads KEY=value pairs without touching the process environment.
// The default file is optional; an explicit DOTENV_PATH must exist.
func loadDotEnv(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	explicit := path != ""
	if !explicit {
		path = defaultDotEnvPath
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read dotenv file %s: %w", path, err)
	}
	return values, nil
}

func (settings source) lookup(key string, fileValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if value := strings.TrimSpace(settings.dotenv[key]); value != "" {
		return value
	}
	return strings.TrimSpace(fileValue)
}

func ResolvePort(raw string) (string, error) {
	if raw == "" {
		return DefaultPort, nil
	}

	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("invalid PORT %q: must be a number between 1 and 65535", raw)
	}
	return strconv.Itoa(port), nil
}

func ResolveSecretKey(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("SECRET_KEY is required")
	}
	if _, insecure := insecureSecretKeys[raw]; insecure {
		return "", errors.New("SECRET_KEY uses an insecure placeholder value")
	}
	if len(raw) < minSecretKeyLength {
		return "", fmt.Errorf("SECRET_KEY must be at least %d characters", minSecretKeyLength)
	}
	return raw, nil
}

func resolveTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return DefaultAnalysisTimeout, nil
	}

	timeout, err := time.ParseDuration(raw)
	if err != nil || timeout <= 0 {
		return 0, fmt.Errorf("invalid ANALYSIS_TIMEOUT %q", raw)
	}
	return timeout, nil
}

// resolveMaxUploadSize accepts plain byte counts as well as sizes like "10 MiB".
func resolveMaxUploadSize(raw string) (int64, error) {
	if raw == "" {
		return DefaultMaxUploadSize, nil
	}

	size, err := humanize.ParseBytes(raw)
	if err != nil || size == 0 || size > 1<<40 {
		return 0, fmt.Errorf("invalid MAX_UPLOAD_SIZE %q", raw)
	}
	return int64(size), nil
}

func resolveMaxSessions(raw string) (int, error) {
	if raw == "" {
		return DefaultMaxSessions, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("invalid MAX_SESSIONS %q: must be a positive number", raw)
	}
	return limit, nil
}

func resolveBool(key string, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return value, nil
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}

	location, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("invalid TZ %q, falling back to UTC", name)
		return time.UTC
	}
	return location
}
