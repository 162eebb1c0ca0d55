package api

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errInvalidSessionToken = errors.New("invalid session token")

type sessionClaims struct {
	jwt.RegisteredClaims
}

// SessionRequired attaches the dashboard controller of the browser session to
// the request, starting a new session when the cookie is missing or invalid.
func (handler *Handler) SessionRequired(c *fiber.Ctx) error {
	sessionID, err := handler.sessionIDFromRequest(c)
	if err != nil {
		sessionID = uuid.NewString()
		if err := handler.setSessionCookie(c, sessionID); err != nil {
			log.Printf("issue session cookie: %v", err)
			return apiError(c, fiber.StatusInternalServerError, "failed to start session")
		}
		// API clients often never send the cookie back; their history is only
		// fetched once they return with it.
		if isAPIRequest(c) {
			c.Locals(contextControllerKey, handler.workspaces.Attach(sessionID))
			return c.Next()
		}
	}

	controller := handler.workspaces.Open(c.UserContext(), sessionID)
	c.Locals(contextControllerKey, controller)
	return c.Next()
}

func (handler *Handler) sessionIDFromRequest(c *fiber.Ctx) (string, error) {
	rawToken := strings.TrimSpace(c.Cookies(sessionCookieName))
	if rawToken == "" {
		return "", errInvalidSessionToken
	}
	return handler.parseSessionToken(rawToken)
}

func (handler *Handler) parseSessionToken(rawToken string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return handler.secretKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", errInvalidSessionToken
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", errInvalidSessionToken
	}
	return claims.Subject, nil
}

func (handler *Handler) buildSessionToken(sessionID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = sessionTokenTTL
	}
	now := time.Now()

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(handler.secretKey)
}

func (handler *Handler) setSessionCookie(c *fiber.Ctx, sessionID string) error {
	token, err := handler.buildSessionToken(sessionID, sessionTokenTTL)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
		Expires:  time.Now().Add(sessionTokenTTL),
	})
	return nil
}
