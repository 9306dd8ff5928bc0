package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func loggedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	return r, logs
}

func TestLogger_AssignsAndEchoesRequestID(t *testing.T) {
	r, logs := loggedRouter(t)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	requestID := w.Header().Get(HeaderRequestID)
	require.NotEmpty(t, requestID)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, requestID, fields["request_id"])
	require.Equal(t, "/ping", fields["path"])
	require.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestLogger_KeepsCallerProvidedRequestID(t *testing.T) {
	r, logs := loggedRouter(t)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "upstream-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "upstream-42", w.Header().Get(HeaderRequestID))
	require.Equal(t, "upstream-42", logs.All()[0].ContextMap()["request_id"])
}

func TestLogger_RecordsAuthenticatedUser(t *testing.T) {
	r, logs := loggedRouter(t)
	r.Use(func(c *gin.Context) { c.Set(ContextKeyUserID, "user-7") })
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, "user-7", logs.All()[0].ContextMap()["user"])
}

func TestLogger_ServerErrorsLogAtErrorLevel(t *testing.T) {
	r, logs := loggedRouter(t)
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, zap.ErrorLevel, entries[0].Level)
}
