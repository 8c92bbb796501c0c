package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/arkline/identity-api/internal/messaging"
	"github.com/arkline/identity-api/internal/models"
	"github.com/arkline/identity-api/internal/repository"
	"github.com/arkline/identity-api/internal/security"
	appErrors "github.com/arkline/identity-api/pkg/errors"
)

type authUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// AuthService implements the authentication use cases: login, logout, token
// refresh and self-service registration.
type AuthService struct {
	repo        authUserRepository
	hasher      security.PasswordHasher
	codec       security.TokenCodec
	revocations security.RevocationStore
	publisher   messaging.EventPublisher
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewAuthService constructs an AuthService instance. metrics may be nil.
func NewAuthService(
	repo authUserRepository,
	hasher security.PasswordHasher,
	codec security.TokenCodec,
	revocations security.RevocationStore,
	publisher messaging.EventPublisher,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		repo:        repo,
		hasher:      hasher,
		codec:       codec,
		revocations: revocations,
		publisher:   publisher,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
	}
}

// Login authenticates a user and mints a fresh token pair. Unknown emails,
// missing credentials and bad passwords all fail with the same message so
// responses never reveal whether an email is registered.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, *security.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrInvalidCredentials
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.HasPassword() || !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, nil, appErrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, nil, appErrors.ErrAccountDeactivated
	}

	user.RecordLogin(time.Now().UTC())
	if err := s.repo.Save(ctx, user); err != nil {
		s.logger.Warn("failed to record last login", zap.Error(err))
	}

	tokens, err := s.codec.GeneratePair(user.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate tokens")
	}

	s.publish(ctx, messaging.EventUserLoggedIn, user)
	s.metrics.IncLogin()

	return &models.LoginResponse{
		UserID:           user.ID,
		Email:            user.Email,
		AccessExpiresIn:  tokens.AccessExpiresIn,
		RefreshExpiresIn: tokens.RefreshExpiresIn,
	}, tokens, nil
}

// Logout revokes the refresh token's id. An expired or malformed token means
// there is nothing left to revoke, so the call succeeds either way and is
// safe to repeat.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	payload, err := s.codec.Decode(refreshToken)
	if err != nil {
		return nil
	}

	if payload.TokenID == "" {
		return nil
	}

	if _, err := s.revocations.Revoke(ctx, payload.TokenID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke token")
	}
	return nil
}

// Refresh exchanges a refresh token for a new pair. The presented token's id
// is revoked atomically before new tokens are minted, so a captured refresh
// token cannot be replayed: of two concurrent calls only one wins the
// test-and-set, the other sees the token as revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, *security.TokenPair, error) {
	payload, err := s.codec.Decode(refreshToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "Refresh token expired. Please login again.")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid refresh token.")
	}

	if payload.Kind != security.TokenKindRefresh || payload.TokenID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid refresh token.")
	}

	revoked, err := s.revocations.IsRevoked(ctx, payload.TokenID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check revocation")
	}
	if revoked {
		s.metrics.IncRevokedRejection()
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "Token has been revoked.")
	}

	user, err := s.repo.GetByID(ctx, payload.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "User not found or inactive.")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.IsActive {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "User not found or inactive.")
	}

	first, err := s.revocations.Revoke(ctx, payload.TokenID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke token")
	}
	if !first {
		s.metrics.IncRevokedRejection()
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "Token has been revoked.")
	}

	tokens, err := s.codec.GeneratePair(user.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate tokens")
	}

	s.metrics.IncRefreshRotation()

	return &models.RefreshResponse{AccessExpiresIn: tokens.AccessExpiresIn}, tokens, nil
}

// Register creates a new active, non-staff account and publishes the
// registration event. The stored hash never appears in the response.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
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
		IsActive:     true,
	}
	if err := s.repo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "Email already registered.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.publish(ctx, messaging.EventUserRegistered, user)
	s.metrics.IncRegistration()

	return &models.RegisterResponse{
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

// GetCurrentUser loads the profile for an authenticated subject id.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*models.UserProfile, error) {
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

func (s *AuthService) publish(ctx context.Context, eventType string, user *models.User) {
	if s.publisher == nil {
		return
	}
	payload := map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}
