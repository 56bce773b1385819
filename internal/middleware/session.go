package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iyilikvakfi/donation-service/internal/services/cart"
)

const (
	// SessionCookie is the cart session cookie name
	SessionCookie = "cart_session"

	// SessionHeader is the fallback header for API clients without cookies
	SessionHeader = "X-Session-Id"

	// SessionKey is the gin context key the resolved session is stored under
	SessionKey = "cart_session_id"

	sessionCookieMaxAge = 24 * 60 * 60
)

// Session resolves the cart session: cookie first, then header, then a
// sessionId field in a JSON body. A missing session gets a fresh UUID and a
// cookie so the browser keeps it.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, fromCookie := resolveSession(c)
		if sessionID == "" {
			sessionID = cart.GetOrCreateSessionID("")
		}
		if !fromCookie {
			c.SetCookie(SessionCookie, sessionID, sessionCookieMaxAge, "/", "", false, true)
		}
		c.Set(SessionKey, sessionID)
		c.Next()
	}
}

// SessionID returns the resolved session for the current request
func SessionID(c *gin.Context) string {
	if v, ok := c.Get(SessionKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func resolveSession(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie, true
	}
	if header := c.GetHeader(SessionHeader); header != "" {
		return header, false
	}
	if id := sessionFromBody(c); id != "" {
		return id, false
	}
	return "", false
}

// sessionFromBody peeks at a JSON body for a sessionId field, restoring the
// body so handlers can bind it again.
func sessionFromBody(c *gin.Context) string {
	if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
		return ""
	}
	if c.Request.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return ""
	}

	var probe struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.SessionID
}
