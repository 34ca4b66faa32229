package middleware

import (
	"net/http"
	"time"

	"github.com/deppfellow/case-unboxing/internal/validation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// UnboxerCookie holds the anonymous visitor id.
	UnboxerCookie = "unboxerId"

	// UnboxerIDKey caches the resolved id in the echo context.
	UnboxerIDKey = "unboxer_id"

	unboxerCookieMaxAge = 365 * 24 * time.Hour
)

// UnboxerID returns the anonymous id of the visitor.
//
// A cookie value matching the UUID format is reused. Otherwise a new UUID is
// generated and written back as an HttpOnly cookie valid for one year,
// replacing any malformed value. Repeated calls within one request return
// the same id and set the cookie at most once.
func UnboxerID(c echo.Context) string {
	if id, ok := c.Get(UnboxerIDKey).(string); ok && id != "" {
		return id
	}

	id, ok := existingUnboxerID(c)
	if !ok {
		id = uuid.New().String()
		c.SetCookie(&http.Cookie{
			Name:     UnboxerCookie,
			Value:    id,
			Path:     "/",
			Expires:  time.Now().Add(unboxerCookieMaxAge),
			MaxAge:   int(unboxerCookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   c.Scheme() == "https",
			SameSite: http.SameSiteLaxMode,
		})
	}

	c.Set(UnboxerIDKey, id)
	return id
}

// existingUnboxerID reads the cookie without ever setting it.
func existingUnboxerID(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(UnboxerCookie)
	if err != nil || !validation.IsValidUUID(cookie.Value) {
		return "", false
	}
	return cookie.Value, true
}
