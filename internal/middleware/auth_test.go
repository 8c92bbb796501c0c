package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkline/identity-api/internal/security"
	"github.com/arkline/identity-api/pkg/config"
)

func newGuardedRouter(codec security.TokenCodec) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := config.AuthConfig{
		PublicPaths:    []string{"/auth/login", "/health"},
		PublicPrefixes: []string{"/docs"},
	}
	r := gin.New()
	r.Use(Auth(codec, "access_token", cfg))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": SubjectID(c)})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/docs/index.html", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"docs": true})
	})
	return r
}

func doRequest(r *gin.Engine, path, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "access_token", Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewarePublicPathsBypass(t *testing.T) {
	codec := security.NewJWTCodec("test-secret", 15*time.Minute, time.Hour)
	r := newGuardedRouter(codec)

	w := doRequest(r, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, "/docs/index.html", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareMissingCookie(t *testing.T) {
	codec := security.NewJWTCodec("test-secret", 15*time.Minute, time.Hour)
	r := newGuardedRouter(codec)

	w := doRequest(r, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "NO_TOKEN")
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	codec := security.NewJWTCodec("test-secret", 15*time.Minute, time.Hour)
	r := newGuardedRouter(codec)

	pair, err := codec.GeneratePair("user-1")
	require.NoError(t, err)

	w := doRequest(r, "/protected", pair.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subject":"user-1"`)
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := issued
	codec := security.NewJWTCodec("test-secret", 15*time.Minute, time.Hour).
		WithClock(func() time.Time { return current })
	r := newGuardedRouter(codec)

	pair, err := codec.GeneratePair("user-1")
	require.NoError(t, err)

	current = issued.Add(16 * time.Minute)
	w := doRequest(r, "/protected", pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
}

func TestAuthMiddlewareInvalidToken(t *testing.T) {
	codec := security.NewJWTCodec("test-secret", 15*time.Minute, time.Hour)
	r := newGuardedRouter(codec)

	w := doRequest(r, "/protected", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestAuthMiddlewareRejectsRefreshToken(t *testing.T) {
	codec := security.NewJWTCodec("test-secret", 15*time.Minute, time.Hour)
	r := newGuardedRouter(codec)

	pair, err := codec.GeneratePair("user-1")
	require.NoError(t, err)

	w := doRequest(r, "/protected", pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN_TYPE")
}

func TestIsPublicPathTrailingSlash(t *testing.T) {
	cfg := config.AuthConfig{PublicPaths: []string{"/auth/login"}}

	assert.True(t, isPublicPath("/auth/login", cfg))
	assert.True(t, isPublicPath("/auth/login/", cfg))
	assert.False(t, isPublicPath("/auth/loginx", cfg))
	assert.False(t, isPublicPath("/protected", cfg))
}
