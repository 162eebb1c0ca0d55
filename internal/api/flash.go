package api

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const flashCookiePurpose = "flash"

func (handler *Handler) setFlashCookie(c *fiber.Ctx, payload FlashPayload) {
	payload.Notice = strings.TrimSpace(payload.Notice)
	payload.Error = strings.TrimSpace(payload.Error)
	if payload.Notice == "" && payload.Error == "" {
		handler.clearFlashCookie(c)
		return
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		return
	}
	sealed, err := handler.cookieCodec.seal(flashCookiePurpose, serialized)
	if err != nil {
		log.Printf("seal flash cookie: %v", err)
		return
	}

	c.Cookie(&fiber.Cookie{
		Name:     flashCookieName,
		Value:    sealed,
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
		Expires:  time.Now().Add(5 * time.Minute),
	})
}

func (handler *Handler) popFlashCookie(c *fiber.Ctx) FlashPayload {
	raw := strings.TrimSpace(c.Cookies(flashCookieName))
	if raw == "" {
		return FlashPayload{}
	}
	handler.clearFlashCookie(c)

	plaintext, err := handler.cookieCodec.open(flashCookiePurpose, raw)
	if err != nil {
		return FlashPayload{}
	}

	payload := FlashPayload{}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return FlashPayload{}
	}
	payload.Notice = strings.TrimSpace(payload.Notice)
	payload.Error = strings.TrimSpace(payload.Error)
	return payload
}

func (handler *Handler) clearFlashCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
		Expires:  time.Now().Add(-1 * time.Hour),
	})
}

// redirectWithNotice stores the outcome of a form action and sends the browser
// back to the dashboard.
func (handler *Handler) redirectWithNotice(c *fiber.Ctx, notice string, failure string) error {
	handler.setFlashCookie(c, FlashPayload{Notice: notice, Error: failure})
	return c.Redirect("/", fiber.StatusSeeOther)
}
