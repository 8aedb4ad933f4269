package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registration-gateway/internal/config"
	"registration-gateway/internal/logger"
	"registration-gateway/internal/middleware"
)

func newLimitedRouter(cfg config.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RateLimit(cfg, logger.NewLogger()))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router
}

func ping(router *gin.Engine, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenThrottle(t *testing.T) {
	router := newLimitedRouter(config.RateLimitConfig{Attempts: 10, Burst: 3})

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, ping(router, "user-1").Code, "request %d within burst", i+1)
	}

	w := ping(router, "user-1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")
}

func TestRateLimit_CallersAreIndependent(t *testing.T) {
	router := newLimitedRouter(config.RateLimitConfig{Attempts: 10, Burst: 1})

	require.Equal(t, http.StatusOK, ping(router, "user-1").Code)
	require.Equal(t, http.StatusTooManyRequests, ping(router, "user-1").Code)

	// A different caller has its own bucket.
	assert.Equal(t, http.StatusOK, ping(router, "user-2").Code)
}

func TestRateLimit_FallsBackToClientIP(t *testing.T) {
	router := newLimitedRouter(config.RateLimitConfig{Attempts: 10, Burst: 1})

	require.Equal(t, http.StatusOK, ping(router, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, ping(router, "").Code)
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.SecurityHeaders())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
