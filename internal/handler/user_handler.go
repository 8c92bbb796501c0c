package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arkline/identity-api/internal/middleware"
	"github.com/arkline/identity-api/internal/models"
	appErrors "github.com/arkline/identity-api/pkg/errors"
	"github.com/arkline/identity-api/pkg/response"
)

type userService interface {
	CreateUser(ctx context.Context, actorID string, req models.CreateUserRequest) (*models.UserProfile, error)
	GetUser(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateUser(ctx context.Context, actorID, userID string, req models.UpdateUserRequest) (*models.UserProfile, error)
	DeleteUser(ctx context.Context, actorID, userID string) error
	ListUsers(ctx context.Context, req models.UserListRequest) (*models.UserListResponse, error)
}

// UserHandler exposes the admin account-management endpoints. All routes sit
// behind the auth guard, so an actor id is always present.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// Create godoc
// @Summary Create user
// @Description Create an account (staff only)
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}

	profile, err := h.service.CreateUser(c.Request.Context(), middleware.SubjectID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, profile)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	profile, err := h.service.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// Update godoc
// @Summary Update user
// @Description Partially update an account; flag changes need elevated actors
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User id"
// @Param payload body models.UpdateUserRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [patch]
func (h *UserHandler) Update(c *gin.Context) {
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	profile, err := h.service.UpdateUser(c.Request.Context(), middleware.SubjectID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// Delete godoc
// @Summary Delete user
// @Tags Users
// @Param id path string true "User id"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteUser(c.Request.Context(), middleware.SubjectID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// List godoc
// @Summary List active users
// @Tags Users
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var req models.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid list parameters"))
		return
	}

	res, err := h.service.ListUsers(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, &response.Pagination{
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalCount: res.Total,
	})
}
