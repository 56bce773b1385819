package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionRouter(capture *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Session())
	r.POST("/echo", func(c *gin.Context) {
		*capture = SessionID(c)
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestSession_PrefersCookie(t *testing.T) {
	var got string
	r := sessionRouter(&got)

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie-session"})
	req.Header.Set(SessionHeader, "header-session")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "cookie-session", got)
}

func TestSession_FallsBackToHeader(t *testing.T) {
	var got string
	r := sessionRouter(&got)

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.Header.Set(SessionHeader, "header-session")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "header-session", got)
	assert.Contains(t, w.Header().Get("Set-Cookie"), SessionCookie+"=header-session")
}

func TestSession_ReadsBodyWithoutConsumingIt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Session())

	var sessionID, bodyAmount string
	r.POST("/echo", func(c *gin.Context) {
		sessionID = SessionID(c)
		var body struct {
			SessionID string `json:"sessionId"`
			Amount    string `json:"amount"`
		}
		require.NoError(t, c.ShouldBindJSON(&body))
		bodyAmount = body.Amount
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo",
		strings.NewReader(`{"sessionId":"body-session","amount":"100"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "body-session", sessionID)
	assert.Equal(t, "100", bodyAmount, "handler must still be able to bind the body")
}

func TestSession_GeneratesWhenMissing(t *testing.T) {
	var got string
	r := sessionRouter(&got)

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEmpty(t, got)
	assert.Contains(t, w.Header().Get("Set-Cookie"), SessionCookie+"=")
}
