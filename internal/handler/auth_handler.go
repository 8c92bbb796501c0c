package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arkline/identity-api/internal/middleware"
	"github.com/arkline/identity-api/internal/models"
	"github.com/arkline/identity-api/internal/security"
	"github.com/arkline/identity-api/pkg/config"
	appErrors "github.com/arkline/identity-api/pkg/errors"
	"github.com/arkline/identity-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, *security.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, *security.TokenPair, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	GetCurrentUser(ctx context.Context, userID string) (*models.UserProfile, error)
}

// AuthHandler wires the authentication endpoints to the auth service and
// moves tokens in and out of HttpOnly cookies. The access cookie is scoped to
// the whole site; the refresh cookie only travels to the auth endpoints.
type AuthHandler struct {
	service     authService
	cookies     config.CookieConfig
	refreshPath string
}

// NewAuthHandler creates a new handler. apiPrefix scopes the refresh cookie.
func NewAuthHandler(svc authService, cookies config.CookieConfig, apiPrefix string) *AuthHandler {
	return &AuthHandler{
		service:     svc,
		cookies:     cookies,
		refreshPath: apiPrefix + "/auth/",
	}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email and password, setting token cookies
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, tokens, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setAuthCookies(c, tokens, req.RememberMe)
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the refresh token and clear token cookies
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if refreshToken, err := c.Cookie(h.cookies.RefreshName); err == nil && refreshToken != "" {
		if err := h.service.Logout(c.Request.Context(), refreshToken); err != nil {
			response.Error(c, err)
			return
		}
	}

	h.clearAuthCookies(c)
	response.JSON(c, http.StatusOK, gin.H{"message": "Logged out successfully"}, nil)
}

// Refresh godoc
// @Summary Refresh access token
// @Description Rotate the refresh token and reissue both token cookies
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(h.cookies.RefreshName)
	if err != nil || refreshToken == "" {
		response.Error(c, appErrors.New("NO_REFRESH_TOKEN", http.StatusUnauthorized, "No refresh token"))
		return
	}

	res, tokens, err := h.service.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.clearAuthCookies(c)
		response.Error(c, err)
		return
	}

	h.setAuthCookies(c, tokens, true)
	response.JSON(c, http.StatusOK, res, nil)
}

// Register godoc
// @Summary Register a new account
// @Description Create a user with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's profile
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.SubjectID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.service.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// setAuthCookies installs both token cookies. Without remember_me the
// refresh cookie is session-scoped and dies with the browser.
func (h *AuthHandler) setAuthCookies(c *gin.Context, tokens *security.TokenPair, remember bool) {
	c.SetSameSite(sameSiteMode(h.cookies.SameSite))
	c.SetCookie(h.cookies.AccessName, tokens.AccessToken, int(tokens.AccessExpiresIn), "/", "", h.cookies.Secure, true)

	refreshMaxAge := int(tokens.RefreshExpiresIn)
	if !remember {
		refreshMaxAge = 0
	}
	c.SetCookie(h.cookies.RefreshName, tokens.RefreshToken, refreshMaxAge, h.refreshPath, "", h.cookies.Secure, true)
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(sameSiteMode(h.cookies.SameSite))
	c.SetCookie(h.cookies.AccessName, "", -1, "/", "", h.cookies.Secure, true)
	c.SetCookie(h.cookies.RefreshName, "", -1, h.refreshPath, "", h.cookies.Secure, true)
}

func sameSiteMode(raw string) http.SameSite {
	switch raw {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
