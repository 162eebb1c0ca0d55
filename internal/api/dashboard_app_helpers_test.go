package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/terraincognita07/csvdash/internal/analysis"
	"github.com/terraincognita07/csvdash/internal/db"
	"github.com/terraincognita07/csvdash/internal/services"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

// fakeAnalysisService stands in for the analysis service over HTTP.
type fakeAnalysisService struct {
	mu sync.Mutex

	uploadStatus int
	uploadBody   string
	summaries    string
	pingStatus   int

	uploadedNames    []string
	uploadedContents []string
	summaryCalls     int
}

func newFakeAnalysisService() *fakeAnalysisService {
	return &fakeAnalysisService{
		uploadStatus: http.StatusOK,
		uploadBody:   `{"success":true,"rows":10,"columns":3,"column_names":["x","y","z"],"message":"ok","averages":{"x":1.5},"type_distribution":{"TypeA":2,"TypeB":3}}`,
		summaries:    `[]`,
		pingStatus:   http.StatusOK,
	}
}

func (fake *fakeAnalysisService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/upload/":
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"file field missing"}`)
			return
		}
		content, _ := io.ReadAll(file)
		_ = file.Close()
		fake.uploadedNames = append(fake.uploadedNames, header.Filename)
		fake.uploadedContents = append(fake.uploadedContents, string(content))

		w.WriteHeader(fake.uploadStatus)
		_, _ = io.WriteString(w, fake.uploadBody)
	case "/api/summaries/":
		fake.summaryCalls++
		_, _ = io.WriteString(w, fake.summaries)
	case "/api/summary/test/":
		w.WriteHeader(fake.pingStatus)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fake *fakeAnalysisService) set(update func(fake *fakeAnalysisService)) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	update(fake)
}

func (fake *fakeAnalysisService) uploads() []string {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return append([]string(nil), fake.uploadedNames...)
}

func (fake *fakeAnalysisService) summaryRequests() int {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.summaryCalls
}

type dashboardTestApp struct {
	app        *fiber.App
	handler    *Handler
	workspaces *services.Workspaces
	analysis   *fakeAnalysisService
}

func newDashboardTestApp(t *testing.T) *dashboardTestApp {
	t.Helper()
	return newDashboardTestAppWithSessionLimit(t, services.DefaultMaxWorkspaces)
}

func newDashboardTestAppWithSessionLimit(t *testing.T, maxSessions int) *dashboardTestApp {
	t.Helper()

	_, testFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("resolve current test file path")
	}
	templatesDir := filepath.Join(filepath.Dir(filepath.Dir(testFile)), "templates")

	fake := newFakeAnalysisService()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	database, err := db.OpenSQLite(fmt.Sprintf("file:api-%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("open sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	client := analysis.NewClient(server.URL, 5*time.Second)
	workspaces := services.NewWorkspaces(client, db.NewRepositories(database).History, maxSessions)

	handler, err := NewHandler(workspaces, client, Options{
		SecretKey:     testSecretKey,
		TemplateDir:   templatesDir,
		MaxUploadSize: 1 << 20,
		Location:      time.UTC,
	})
	if err != nil {
		t.Fatalf("init handler: %v", err)
	}

	app := fiber.New()
	RegisterRoutes(app, handler)
	return &dashboardTestApp{app: app, handler: handler, workspaces: workspaces, analysis: fake}
}

func (testApp *dashboardTestApp) do(t *testing.T, request *http.Request, cookies ...string) *http.Response {
	t.Helper()

	values := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		if cookie != "" {
			values = append(values, cookie)
		}
	}
	if len(values) > 0 {
		request.Header.Set("Cookie", strings.Join(values, "; "))
	}
	response, err := testApp.app.Test(request, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", request.Method, request.URL.Path, err)
	}
	t.Cleanup(func() {
		_ = response.Body.Close()
	})
	return response
}

// startSession opens the dashboard once and returns the session cookie header value.
func (testApp *dashboardTestApp) startSession(t *testing.T) string {
	t.Helper()

	response := testApp.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected dashboard status 200, got %d", response.StatusCode)
	}
	cookie := responseCookie(response.Cookies(), sessionCookieName)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie on first visit")
	}
	return cookie.Name + "=" + cookie.Value
}

func multipartUploadRequest(t *testing.T, path string, filename string, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(part, content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	request := httptest.NewRequest(http.MethodPost, path, &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func responseCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func readBody(t *testing.T, response *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return string(body)
}

func readAPIError(t *testing.T, response *http.Response) string {
	t.Helper()

	payload := map[string]string{}
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload["error"]
}

func (testApp *dashboardTestApp) decodeFlash(t *testing.T, response *http.Response) FlashPayload {
	t.Helper()

	cookie := responseCookie(response.Cookies(), flashCookieName)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected flash cookie in response")
	}
	plaintext, err := testApp.handler.cookieCodec.open(flashCookiePurpose, cookie.Value)
	if err != nil {
		t.Fatalf("open flash cookie: %v", err)
	}
	payload := FlashPayload{}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		t.Fatalf("decode flash payload: %v", err)
	}
	return payload
}
