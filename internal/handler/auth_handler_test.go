package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkline/identity-api/internal/middleware"
	"github.com/arkline/identity-api/internal/models"
	"github.com/arkline/identity-api/internal/security"
	"github.com/arkline/identity-api/pkg/config"
	appErrors "github.com/arkline/identity-api/pkg/errors"
)

type stubAuthService struct {
	loginRes      *models.LoginResponse
	loginTokens   *security.TokenPair
	loginErr      error
	logoutCalls   int
	logoutErr     error
	refreshRes    *models.RefreshResponse
	refreshTokens *security.TokenPair
	refreshErr    error
	registerRes   *models.RegisterResponse
	registerErr   error
	profile       *models.UserProfile
	profileErr    error
}

func (s *stubAuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, *security.TokenPair, error) {
	return s.loginRes, s.loginTokens, s.loginErr
}

func (s *stubAuthService) Logout(ctx context.Context, refreshToken string) error {
	s.logoutCalls++
	return s.logoutErr
}

func (s *stubAuthService) Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, *security.TokenPair, error) {
	return s.refreshRes, s.refreshTokens, s.refreshErr
}

func (s *stubAuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	return s.registerRes, s.registerErr
}

func (s *stubAuthService) GetCurrentUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	return s.profile, s.profileErr
}

func testCookieConfig() config.CookieConfig {
	return config.CookieConfig{
		AccessName:  "access_token",
		RefreshName: "refresh_token",
		SameSite:    "lax",
	}
}

func testTokenPair() *security.TokenPair {
	return &security.TokenPair{
		AccessToken:      "access-jwt",
		RefreshToken:     "refresh-jwt",
		AccessExpiresIn:  900,
		RefreshExpiresIn: 604800,
		TokenType:        "Bearer",
	}
}

func newAuthRouter(svc *stubAuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(svc, testCookieConfig(), "")
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/register", h.Register)
	r.GET("/auth/me", func(c *gin.Context) {
		if subject := c.GetHeader("X-Test-Subject"); subject != "" {
			c.Set(middleware.ContextUserIDKey, subject)
		}
		h.Me(c)
	})
	return r
}

func postJSON(r *gin.Engine, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestAuthHandlerLoginSetsCookies(t *testing.T) {
	svc := &stubAuthService{
		loginRes:    &models.LoginResponse{UserID: "user-1", Email: "alice@example.com", AccessExpiresIn: 900, RefreshExpiresIn: 604800},
		loginTokens: testTokenPair(),
	}
	r := newAuthRouter(svc)

	w := postJSON(r, "/auth/login", `{"email":"alice@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)

	access := findCookie(t, w, "access_token")
	require.NotNil(t, access)
	assert.Equal(t, "access-jwt", access.Value)
	assert.Equal(t, "/", access.Path)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, 900, access.MaxAge)

	// Without remember_me the refresh cookie is session-scoped.
	refresh := findCookie(t, w, "refresh_token")
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh-jwt", refresh.Value)
	assert.Equal(t, "/auth/", refresh.Path)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, 0, refresh.MaxAge)
}

func TestAuthHandlerLoginRememberMePersistsRefreshCookie(t *testing.T) {
	svc := &stubAuthService{
		loginRes:    &models.LoginResponse{UserID: "user-1"},
		loginTokens: testTokenPair(),
	}
	r := newAuthRouter(svc)

	w := postJSON(r, "/auth/login", `{"email":"alice@example.com","password":"Secret123","remember_me":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	refresh := findCookie(t, w, "refresh_token")
	require.NotNil(t, refresh)
	assert.Equal(t, 604800, refresh.MaxAge)
}

func TestAuthHandlerLoginFailureSetsNoCookies(t *testing.T) {
	svc := &stubAuthService{loginErr: appErrors.ErrInvalidCredentials}
	r := newAuthRouter(svc)

	w := postJSON(r, "/auth/login", `{"email":"alice@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password.")
	assert.Empty(t, w.Result().Cookies())
}

func TestAuthHandlerLoginMalformedBody(t *testing.T) {
	r := newAuthRouter(&stubAuthService{})

	w := postJSON(r, "/auth/login", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLogoutClearsCookies(t *testing.T) {
	svc := &stubAuthService{}
	r := newAuthRouter(svc)

	w := postJSON(r, "/auth/logout", "", &http.Cookie{Name: "refresh_token", Value: "refresh-jwt"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.logoutCalls)
	assert.Contains(t, w.Body.String(), "Logged out successfully")

	access := findCookie(t, w, "access_token")
	require.NotNil(t, access)
	assert.Less(t, access.MaxAge, 0)

	refresh := findCookie(t, w, "refresh_token")
	require.NotNil(t, refresh)
	assert.Less(t, refresh.MaxAge, 0)
}

func TestAuthHandlerLogoutWithoutCookie(t *testing.T) {
	svc := &stubAuthService{}
	r := newAuthRouter(svc)

	w := postJSON(r, "/auth/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, svc.logoutCalls)
}

func TestAuthHandlerRefreshWithoutCookie(t *testing.T) {
	r := newAuthRouter(&stubAuthService{})

	w := postJSON(r, "/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "NO_REFRESH_TOKEN")
}

func TestAuthHandlerRefreshSuccess(t *testing.T) {
	svc := &stubAuthService{
		refreshRes:    &models.RefreshResponse{AccessExpiresIn: 900},
		refreshTokens: testTokenPair(),
	}
	r := newAuthRouter(svc)

	w := postJSON(r, "/auth/refresh", "", &http.Cookie{Name: "refresh_token", Value: "old-refresh"})
	require.Equal(t, http.StatusOK, w.Code)

	refresh := findCookie(t, w, "refresh_token")
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh-jwt", refresh.Value)
	assert.Equal(t, 604800, refresh.MaxAge)
}

func TestAuthHandlerRefreshFailureClearsCookies(t *testing.T) {
	svc := &stubAuthService{refreshErr: appErrors.Clone(appErrors.ErrUnauthorized, "Token has been revoked.")}
	r := newAuthRouter(svc)

	w := postJSON(r, "/auth/refresh", "", &http.Cookie{Name: "refresh_token", Value: "used-refresh"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token has been revoked.")

	refresh := findCookie(t, w, "refresh_token")
	require.NotNil(t, refresh)
	assert.Less(t, refresh.MaxAge, 0)
}

func TestAuthHandlerRegisterCreated(t *testing.T) {
	svc := &stubAuthService{registerRes: &models.RegisterResponse{UserID: "user-2", Email: "bob@example.com"}}
	r := newAuthRouter(svc)

	w := postJSON(r, "/auth/register", `{"email":"bob@example.com","password":"Secret123","password_confirm":"Secret123"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-2"`)
}

func TestAuthHandlerRegisterDuplicate(t *testing.T) {
	svc := &stubAuthService{registerErr: appErrors.Clone(appErrors.ErrDuplicateEntity, "Email already registered.")}
	r := newAuthRouter(svc)

	w := postJSON(r, "/auth/register", `{"email":"bob@example.com","password":"Secret123","password_confirm":"Secret123"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Email already registered.")
}

func TestAuthHandlerMe(t *testing.T) {
	svc := &stubAuthService{profile: &models.UserProfile{ID: "user-1", Email: "alice@example.com"}}
	r := newAuthRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("X-Test-Subject", "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestAuthHandlerMeUnauthenticated(t *testing.T) {
	r := newAuthRouter(&stubAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
