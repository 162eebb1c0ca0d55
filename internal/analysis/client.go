package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/terraincognita07/csvdash/internal/models"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const (
	uploadPath    = "/api/upload/"
	summariesPath = "/api/summaries/"
	pingPath      = "/api/summary/test/"

	uploadFieldName  = "file"
	maxResponseBytes = 4 << 20
)

var errUnexpectedPayload = errors.New("unexpected analysis payload")

// StatusError reports a non-2xx answer from the analysis service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (err *StatusError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("analysis service returned status %d", err.StatusCode)
	}
	return fmt.Sprintf("analysis service returned status %d: %s", err.StatusCode, err.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	summaries  singleflight.Group
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (client *Client) BaseURL() string {
	return client.baseURL
}

// Upload posts the file as the multipart field "file" and decodes the summary
// the service computed for it.
func (client *Client) Upload(ctx context.Context, filename string, content []byte) (models.SummaryRecord, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(uploadFieldName, filename)
	if err != nil {
		return models.SummaryRecord{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return models.SummaryRecord{}, fmt.Errorf("build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return models.SummaryRecord{}, fmt.Errorf("build upload form: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+uploadPath, &body)
	if err != nil {
		return models.SummaryRecord{}, fmt.Errorf("build upload request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.Header.Set("Accept", "application/json")

	payload, err := client.do(request)
	if err != nil {
		return models.SummaryRecord{}, err
	}
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return models.SummaryRecord{}, fmt.Errorf("decode upload response: %w", errUnexpectedPayload)
	}
	return models.DecodeSummaryRecord(payload), nil
}

// FetchSummaries returns the summaries in the order the service lists them.
// Concurrent callers share one in-flight request; each decodes its own copy.
func (client *Client) FetchSummaries(ctx context.Context) ([]models.SummaryRecord, error) {
	shared, err, _ := client.summaries.Do(summariesPath, func() (any, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+summariesPath, nil)
		if err != nil {
			return nil, fmt.Errorf("build summaries request: %w", err)
		}
		request.Header.Set("Accept", "application/json")
		return client.do(request)
	})
	if err != nil {
		return nil, err
	}

	payload := shared.([]byte)
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsArray() {
		return nil, fmt.Errorf("decode summaries response: %w", errUnexpectedPayload)
	}

	records := make([]models.SummaryRecord, 0)
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode summaries response: %w", err)
	}
	return records, nil
}

func (client *Client) Ping(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+pingPath, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	_, err = client.do(request)
	return err
}

func (client *Client) do(request *http.Request) ([]byte, error) {
	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", request.Method, request.URL.Path, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", request.URL.Path, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: response.StatusCode, Message: serviceErrorMessage(payload)}
	}
	return payload, nil
}

func serviceErrorMessage(payload []byte) string {
	if !gjson.ValidBytes(payload) {
		return ""
	}
	for _, field := range []string{"error", "detail", "message"} {
		if value := gjson.GetBytes(payload, field); value.Type == gjson.String {
			return strings.TrimSpace(value.Str)
		}
	}
	return ""
}
