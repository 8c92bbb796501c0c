package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arkline/identity-api/internal/models"
	"github.com/arkline/identity-api/internal/security"
	appErrors "github.com/arkline/identity-api/pkg/errors"
)

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) ListActive(ctx context.Context, limit, offset int) ([]models.User, error) {
	var active []models.User
	for _, u := range m.users {
		if u.IsActive {
			active = append(active, *u)
		}
	}
	if offset >= len(active) {
		return nil, nil
	}
	active = active[offset:]
	if len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (m *mockUserRepo) CountActive(ctx context.Context) (int, error) {
	count := 0
	for _, u := range m.users {
		if u.IsActive {
			count++
		}
	}
	return count, nil
}

func newUserFixture(users ...*models.User) (*UserService, *mockUserRepo) {
	repo := newMockUserRepo(users...)
	svc := NewUserService(repo, security.NewBcryptHasher(), validator.New(), zap.NewNop())
	return svc, repo
}

func staffUser(id string) *models.User {
	return &models.User{ID: id, Email: id + "@example.com", IsActive: true, IsStaff: true}
}

func regularUser(id string) *models.User {
	return &models.User{ID: id, Email: id + "@example.com", IsActive: true}
}

func superUser(id string) *models.User {
	return &models.User{ID: id, Email: id + "@example.com", IsActive: true, IsStaff: true, IsSuperuser: true}
}

func TestUserServiceCreateRequiresStaff(t *testing.T) {
	svc, _ := newUserFixture(regularUser("actor"))

	_, err := svc.CreateUser(context.Background(), "actor", models.CreateUserRequest{
		Email:    "new@example.com",
		Password: "Secret123",
		IsActive: true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateByStaff(t *testing.T) {
	svc, repo := newUserFixture(staffUser("admin"))

	profile, err := svc.CreateUser(context.Background(), "admin", models.CreateUserRequest{
		Email:    "new@example.com",
		Password: "Secret123",
		IsActive: true,
		IsStaff:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", profile.Email)
	assert.True(t, profile.IsStaff)

	created := repo.users[profile.ID]
	require.NotNil(t, created)
	assert.NotEqual(t, "Secret123", created.PasswordHash)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	svc, repo := newUserFixture(staffUser("admin"))
	repo.existsEmail = true

	_, err := svc.CreateUser(context.Background(), "admin", models.CreateUserRequest{
		Email:    "taken@example.com",
		Password: "Secret123",
		IsActive: true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateEntity.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateSelf(t *testing.T) {
	svc, repo := newUserFixture(regularUser("user-1"))

	email := "renamed@example.com"
	profile, err := svc.UpdateUser(context.Background(), "user-1", "user-1", models.UpdateUserRequest{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, profile.Email)
	assert.Equal(t, email, repo.users["user-1"].Email)
}

func TestUserServiceUpdateOtherForbidden(t *testing.T) {
	svc, _ := newUserFixture(regularUser("user-1"), regularUser("user-2"))

	email := "renamed@example.com"
	_, err := svc.UpdateUser(context.Background(), "user-1", "user-2", models.UpdateUserRequest{Email: &email})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivateStaffForbidden(t *testing.T) {
	svc, _ := newUserFixture(staffUser("admin"), staffUser("other-staff"))

	inactive := false
	_, err := svc.UpdateUser(context.Background(), "admin", "other-staff", models.UpdateUserRequest{IsActive: &inactive})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, "Remove staff status first")
}

func TestUserServiceStaffToggleRequiresSuperuser(t *testing.T) {
	svc, repo := newUserFixture(staffUser("admin"), regularUser("user-1"))

	// A plain staff actor cannot grant staff; the flag change is ignored.
	staff := true
	profile, err := svc.UpdateUser(context.Background(), "admin", "user-1", models.UpdateUserRequest{IsStaff: &staff})
	require.NoError(t, err)
	assert.False(t, profile.IsStaff)

	repo.users["admin"].IsSuperuser = true
	profile, err = svc.UpdateUser(context.Background(), "admin", "user-1", models.UpdateUserRequest{IsStaff: &staff})
	require.NoError(t, err)
	assert.True(t, profile.IsStaff)
}

func TestUserServicePromoteInactiveForbidden(t *testing.T) {
	inactive := regularUser("user-1")
	inactive.IsActive = false
	admin := staffUser("admin")
	admin.IsSuperuser = true
	svc, _ := newUserFixture(admin, inactive)

	staff := true
	_, err := svc.UpdateUser(context.Background(), "admin", "user-1", models.UpdateUserRequest{IsStaff: &staff})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteRequiresSuperuser(t *testing.T) {
	svc, repo := newUserFixture(staffUser("actor"), regularUser("victim"))

	// Staff status alone is not enough to delete accounts.
	err := svc.DeleteUser(context.Background(), "actor", "victim")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "Only superusers can delete users.", appErrors.FromError(err).Message)
	assert.NotNil(t, repo.users["victim"])
}

func TestUserServiceDeleteBySuperuser(t *testing.T) {
	svc, repo := newUserFixture(superUser("admin"), regularUser("victim"))

	require.NoError(t, svc.DeleteUser(context.Background(), "admin", "victim"))
	assert.Nil(t, repo.users["victim"])

	err := svc.DeleteUser(context.Background(), "admin", "victim")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteSelfForbidden(t *testing.T) {
	svc, repo := newUserFixture(superUser("admin"))

	err := svc.DeleteUser(context.Background(), "admin", "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "Cannot delete yourself.", appErrors.FromError(err).Message)
	assert.NotNil(t, repo.users["admin"])
}

func TestUserServiceListUsers(t *testing.T) {
	gone := regularUser("inactive")
	gone.IsActive = false
	svc, _ := newUserFixture(regularUser("a"), regularUser("b"), regularUser("c"), gone)

	res, err := svc.ListUsers(context.Background(), models.UserListRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Len(t, res.Users, 2)
	assert.Equal(t, 2, res.TotalPages)
}

func TestUserServiceListUsersDefaults(t *testing.T) {
	svc, _ := newUserFixture(regularUser("a"))

	res, err := svc.ListUsers(context.Background(), models.UserListRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PageSize)
}

func TestUserServiceGetUserNotFound(t *testing.T) {
	svc, _ := newUserFixture()

	_, err := svc.GetUser(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
