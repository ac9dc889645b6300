package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func corsRequest(t *testing.T, handler gin.HandlerFunc, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, "/api/v1/chat", nil)
	if origin != "" {
		c.Request.Header.Set("Origin", origin)
	}
	handler(c)
	return rec
}

func TestCORSAllowlistedOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := CORS([]string{"https://app.muhtawa.io"})

	rec := corsRequest(t, handler, http.MethodPost, "https://app.muhtawa.io")
	require.Equal(t, "https://app.muhtawa.io", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", rec.Header().Get("Vary"))
	require.Equal(t, corsExposeHeaders, rec.Header().Get("Access-Control-Expose-Headers"))

	rec = corsRequest(t, handler, http.MethodPost, "https://evil.example.com")
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSEmptyAllowlistAdmitsAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := CORS(nil)
	rec := corsRequest(t, handler, http.MethodPost, "https://anywhere.example.com")
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := CORS([]string{"https://app.muhtawa.io"})
	rec := corsRequest(t, handler, http.MethodOptions, "https://app.muhtawa.io")
	require.Equal(t, http.StatusNoContent, rec.Code)
}
