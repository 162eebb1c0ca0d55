package api

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/csvdash/internal/services"
)

const uploadFieldName = "file"

var errUploadTooLarge = errors.New("file too large")

// UploadPage handles the dashboard form. A request without a file re-sends the
// file kept from an earlier failed attempt.
func (handler *Handler) UploadPage(c *fiber.Ctx) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	if err := handler.selectUploadedFile(c, controller); err != nil {
		return handler.redirectWithNotice(c, "", handler.uploadFailureNotice(err))
	}

	if _, err := controller.Upload(c.UserContext()); err != nil {
		handler.logUploadFailure(controller, err)
		return handler.redirectWithNotice(c, "", handler.uploadFailureNotice(err))
	}
	return handler.redirectWithNotice(c, services.NoticeUploadSucceeded, "")
}

func (handler *Handler) UploadAPI(c *fiber.Ctx) error {
	controller, ok := currentController(c)
	if !ok {
		return apiError(c, fiber.StatusInternalServerError, "session unavailable")
	}

	if err := handler.selectUploadedFile(c, controller); err != nil {
		return apiErrorFor(c, err)
	}

	record, err := controller.Upload(c.UserContext())
	if err != nil {
		handler.logUploadFailure(controller, err)
		return apiErrorFor(c, err)
	}
	return c.JSON(record)
}

// selectUploadedFile moves the multipart file, when present, into the session
// selection. A missing file keeps the current selection.
func (handler *Handler) selectUploadedFile(c *fiber.Ctx, controller *services.DashboardController) error {
	header, err := c.FormFile(uploadFieldName)
	if err != nil {
		return nil
	}
	if header.Size > handler.maxUploadSize {
		return errUploadTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open uploaded file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, handler.maxUploadSize+1))
	if err != nil {
		return fmt.Errorf("read uploaded file: %w", err)
	}
	if int64(len(content)) > handler.maxUploadSize {
		return errUploadTooLarge
	}

	return controller.SelectFile(services.SelectedFile{Name: header.Filename, Content: content})
}

func (handler *Handler) uploadFailureNotice(err error) string {
	if errors.Is(err, errUploadTooLarge) {
		return fmt.Sprintf("%s: file exceeds the upload limit", services.NoticeUploadFailed)
	}
	return handler.notifications.MessageForError(err)
}

func (handler *Handler) logUploadFailure(controller *services.DashboardController, err error) {
	switch {
	case errors.Is(err, services.ErrNoFileSelected), errors.Is(err, services.ErrUploadInProgress), errors.Is(err, services.ErrSessionExpired):
		return
	default:
		log.Printf("[session %s] upload failed: %v", controller.SessionID(), err)
	}
}
