package services

import (
	"errors"
	"strings"
)

const (
	NoticeUploadSucceeded = "Upload successful"
	NoticeUploadFailed    = "Upload failed"
	NoticeSelectFile      = "Please select a CSV file"
	NoticeUploadBusy      = "An upload is already in progress"
	NoticeNothingToExport = "No data to export!"
	NoticeHistoryCleared  = "History cleared"
	NoticeHistoryReloaded = "History reloaded"
	NoticeHistoryFailed   = "Could not load upload history"
	NoticeSessionExpired  = "Your session expired, please upload the file again"
	NoticeUnexpected      = "Something went wrong"
)

type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// MessageForError picks the notification shown to the user when a dashboard
// operation fails.
func (service *NotificationService) MessageForError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoFileSelected):
		return NoticeSelectFile
	case errors.Is(err, ErrUploadInProgress):
		return NoticeUploadBusy
	case errors.Is(err, ErrSessionExpired):
		return NoticeSessionExpired
	case errors.Is(err, ErrServerError), errors.Is(err, ErrUploadRejected):
		return NoticeUploadFailed
	case errors.Is(err, ErrEmptyExport):
		return NoticeNothingToExport
	default:
		return NoticeUnexpected
	}
}

func (service *NotificationService) ResolveNotice(flashMessage string, queryMessage string) string {
	return firstNonEmptyTrimmed(flashMessage, queryMessage)
}

func firstNonEmptyTrimmed(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
