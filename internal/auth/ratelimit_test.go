package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimiter(t *testing.T, cfg RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := testLimiter(t, RateLimitConfig{MaxAttempts: 3})

	for i := 0; i < 2; i++ {
		locked, _ := rl.RecordFailure("10.0.0.1")
		assert.False(t, locked)
	}

	allowed, _ := rl.Allow("10.0.0.1")
	assert.True(t, allowed)
}

func TestRateLimiter_LocksOutAfterMaxAttempts(t *testing.T) {
	rl := testLimiter(t, RateLimitConfig{MaxAttempts: 3, LockoutDuration: 30 * time.Minute})

	var locked bool
	for i := 0; i < 3; i++ {
		locked, _ = rl.RecordFailure("10.0.0.1")
	}
	assert.True(t, locked)

	allowed, retryAfter := rl.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	// Another IP is unaffected.
	allowed, _ = rl.Allow("10.0.0.2")
	assert.True(t, allowed)
}

func TestRateLimiter_SuccessClearsRecord(t *testing.T) {
	rl := testLimiter(t, RateLimitConfig{MaxAttempts: 3})

	for i := 0; i < 3; i++ {
		rl.RecordFailure("10.0.0.1")
	}
	rl.RecordSuccess("10.0.0.1")

	allowed, _ := rl.Allow("10.0.0.1")
	assert.True(t, allowed)
}

func TestRateLimitMiddleware_RejectsLockedOutIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := testLimiter(t, RateLimitConfig{MaxAttempts: 1, LockoutDuration: 30 * time.Minute})
	rl.RecordFailure("192.0.2.1")

	router := gin.New()
	router.POST("/session", rl.RateLimitMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestRateLimitMiddleware_IgnoresNonPost(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := testLimiter(t, RateLimitConfig{MaxAttempts: 1, LockoutDuration: 30 * time.Minute})
	rl.RecordFailure("192.0.2.1")

	router := gin.New()
	router.GET("/session", rl.RateLimitMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
