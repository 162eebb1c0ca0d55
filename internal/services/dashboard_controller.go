package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/terraincognita07/csvdash/internal/models"
)

var (
	ErrServerError      = errors.New("analysis server error")
	ErrUploadRejected   = errors.New("upload rejected by analysis service")
	ErrNoFileSelected   = errors.New("no file selected")
	ErrUploadInProgress = errors.New("upload already in progress")
	ErrSessionExpired   = errors.New("dashboard session expired")
)

type SummaryAnalyzer interface {
	Upload(ctx context.Context, filename string, content []byte) (models.SummaryRecord, error)
	FetchSummaries(ctx context.Context) ([]models.SummaryRecord, error)
}

type HistoryStore interface {
	ListRecords(sessionID string) ([]models.SummaryRecord, error)
	PrependRecord(sessionID string, record models.SummaryRecord) error
	ReplaceRecords(sessionID string, records []models.SummaryRecord) error
	ClearRecords(sessionID string) error
}

type SelectedFile struct {
	Name    string
	Content []byte
}

func (file SelectedFile) Size() int64 {
	return int64(len(file.Content))
}

func (file SelectedFile) HumanSize() string {
	return humanize.Bytes(uint64(file.Size()))
}

// DashboardController owns the state of one dashboard session: the selected
// file, the summary of the last successful upload and the upload history.
// Upload, FetchHistory and ClearHistory never interleave, and at most one
// upload is outstanding at a time.
type DashboardController struct {
	sessionID string
	analyzer  SummaryAnalyzer
	history   HistoryStore

	operations  sync.Mutex
	retired     bool
	uploading   atomic.Bool
	initialLoad sync.Once
	lastSeen    atomic.Int64

	state    sync.RWMutex
	selected *SelectedFile
	active   *models.SummaryRecord
}

func NewDashboardController(sessionID string, analyzer SummaryAnalyzer, history HistoryStore) *DashboardController {
	controller := &DashboardController{
		sessionID: sessionID,
		analyzer:  analyzer,
		history:   history,
	}
	controller.touch()
	return controller
}

func (controller *DashboardController) SessionID() string {
	return controller.sessionID
}

func (controller *DashboardController) SelectFile(file SelectedFile) error {
	file.Name = strings.TrimSpace(file.Name)
	if file.Name == "" {
		return ErrNoFileSelected
	}

	controller.state.Lock()
	defer controller.state.Unlock()
	controller.selected = &file
	return nil
}

func (controller *DashboardController) SelectedFile() (SelectedFile, bool) {
	controller.state.RLock()
	defer controller.state.RUnlock()
	if controller.selected == nil {
		return SelectedFile{}, false
	}
	return *controller.selected, true
}

func (controller *DashboardController) ActiveSummary() (models.SummaryRecord, bool) {
	controller.state.RLock()
	defer controller.state.RUnlock()
	if controller.active == nil {
		return models.SummaryRecord{}, false
	}
	return *controller.active, true
}

func (controller *DashboardController) Uploading() bool {
	return controller.uploading.Load()
}

// Upload sends the selected file to the analysis service. History, the active
// summary and the selection change only when the service accepted the file.
func (controller *DashboardController) Upload(ctx context.Context) (models.SummaryRecord, error) {
	if !controller.uploading.CompareAndSwap(false, true) {
		return models.SummaryRecord{}, ErrUploadInProgress
	}
	defer controller.uploading.Store(false)

	controller.operations.Lock()
	defer controller.operations.Unlock()
	if controller.retired {
		return models.SummaryRecord{}, ErrSessionExpired
	}
	controller.touch()

	file, ok := controller.SelectedFile()
	if !ok {
		return models.SummaryRecord{}, ErrNoFileSelected
	}

	record, err := controller.analyzer.Upload(ctx, file.Name, file.Content)
	if err != nil {
		return models.SummaryRecord{}, fmt.Errorf("%w: %w", ErrServerError, err)
	}
	if !record.Success {
		return models.SummaryRecord{}, ErrUploadRejected
	}

	if err := controller.history.PrependRecord(controller.sessionID, record); err != nil {
		return models.SummaryRecord{}, fmt.Errorf("store upload history: %w", err)
	}

	controller.state.Lock()
	controller.active = &record
	controller.selected = nil
	controller.state.Unlock()

	return record, nil
}

// FetchHistory replaces the history with the summaries the service lists.
func (controller *DashboardController) FetchHistory(ctx context.Context) error {
	controller.operations.Lock()
	defer controller.operations.Unlock()
	if controller.retired {
		return ErrSessionExpired
	}
	controller.touch()

	records, err := controller.analyzer.FetchSummaries(ctx)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	if err := controller.history.ReplaceRecords(controller.sessionID, records); err != nil {
		return fmt.Errorf("store fetched history: %w", err)
	}
	return nil
}

// EnsureLoaded runs the initial history fetch once per session. A failed fetch
// leaves the history empty.
func (controller *DashboardController) EnsureLoaded(ctx context.Context) {
	controller.initialLoad.Do(func() {
		if err := controller.FetchHistory(ctx); err != nil {
			log.Printf("[session %s] initial history fetch failed: %v", controller.sessionID, err)
		}
	})
}

func (controller *DashboardController) ClearHistory() error {
	controller.operations.Lock()
	defer controller.operations.Unlock()
	controller.touch()

	if err := controller.history.ClearRecords(controller.sessionID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (controller *DashboardController) History() ([]models.SummaryRecord, error) {
	controller.touch()
	records, err := controller.history.ListRecords(controller.sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return records, nil
}

func (controller *DashboardController) ExportCSV() (string, error) {
	records, err := controller.History()
	if err != nil {
		return "", err
	}
	return ExportHistoryCSV(records)
}

func (controller *DashboardController) ExportWorkbook() ([]byte, error) {
	records, err := controller.History()
	if err != nil {
		return nil, err
	}
	return BuildHistoryWorkbook(records)
}

func (controller *DashboardController) ExportJSON() ([]byte, error) {
	records, err := controller.History()
	if err != nil {
		return nil, err
	}
	return BuildHistoryJSON(records)
}

func (controller *DashboardController) touch() {
	controller.lastSeen.Store(time.Now().UnixNano())
}

func (controller *DashboardController) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, controller.lastSeen.Load()))
}
