package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/arkline/identity-api/internal/models"
	"github.com/arkline/identity-api/internal/repository"
	"github.com/arkline/identity-api/internal/security"
	appErrors "github.com/arkline/identity-api/pkg/errors"
)

type userManagementRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ListActive(ctx context.Context, limit, offset int) ([]models.User, error)
	CountActive(ctx context.Context) (int, error)
}

// UserService provides admin-level account management.
type UserService struct {
	repo      userManagementRepository
	hasher    security.PasswordHasher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userManagementRepository, hasher security.PasswordHasher, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, hasher: hasher, validator: validate, logger: logger}
}

// CreateUser creates an account on behalf of a staff actor.
func (s *UserService) CreateUser(ctx context.Context, actorID string, req models.CreateUserRequest) (*models.UserProfile, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Only staff can create users.")
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if err := validatePasswordStrength(req.Password); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "Email already registered.")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     req.IsActive,
		IsStaff:      req.IsStaff,
	}
	if err := s.repo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "Email already registered.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	profile := models.ProfileOf(user)
	return &profile, nil
}

// GetUser returns a single account profile.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	profile := models.ProfileOf(user)
	return &profile, nil
}

// UpdateUser applies partial updates. Users may update themselves; flag
// changes require elevated actors: activation toggles need staff, staff
// toggles need a superuser, and staff accounts must be demoted before they
// can be deactivated.
func (s *UserService) UpdateUser(ctx context.Context, actorID, userID string, req models.UpdateUserRequest) (*models.UserProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	isSelf := actor.ID == user.ID
	isAdmin := actor.IsStaff || actor.IsSuperuser
	if !isSelf && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Cannot update other users.")
	}

	if req.Email != nil && *req.Email != user.Email {
		existing, err := s.repo.GetByEmail(ctx, *req.Email)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		}
		if existing != nil && existing.ID != user.ID {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "Email already registered.")
		}
		user.Email = *req.Email
	}

	if req.IsActive != nil && isAdmin {
		if !*req.IsActive && user.IsStaff {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "Cannot deactivate staff user directly. Remove staff status first.")
		}
		user.IsActive = *req.IsActive
	}

	if req.IsStaff != nil && actor.IsSuperuser {
		if *req.IsStaff && !user.IsActive {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "Cannot promote inactive user to staff.")
		}
		user.IsStaff = *req.IsStaff
	}

	if err := s.repo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "Email already registered.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	profile := models.ProfileOf(user)
	return &profile, nil
}

// DeleteUser removes an account. Superusers only, and never their own.
func (s *UserService) DeleteUser(ctx context.Context, actorID, userID string) error {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsSuperuser {
		return appErrors.Clone(appErrors.ErrForbidden, "Only superusers can delete users.")
	}
	if actor.ID == userID {
		return appErrors.Clone(appErrors.ErrForbidden, "Cannot delete yourself.")
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	return nil
}

// ListUsers returns a page of active accounts.
func (s *UserService) ListUsers(ctx context.Context, req models.UserListRequest) (*models.UserListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list parameters")
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	users, err := s.repo.ListActive(ctx, pageSize, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	total, err := s.repo.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}

	profiles := make([]models.UserProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, models.ProfileOf(&users[i]))
	}

	return &models.UserListResponse{
		Users:      profiles,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (s *UserService) loadActor(ctx context.Context, actorID string) (*models.User, error) {
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUnauthorized
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}
	return actor, nil
}
