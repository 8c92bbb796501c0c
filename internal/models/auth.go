package models

import "time"

// LoginRequest holds credentials for authenticating a user. RememberMe keeps
// the refresh cookie beyond the browser session.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse returns the authenticated identity and token lifetimes.
// The tokens themselves travel as HttpOnly cookies, not in the body.
type LoginResponse struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	AccessExpiresIn  int64  `json:"access_expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

// RefreshResponse returns the new access token lifetime after rotation.
type RefreshResponse struct {
	AccessExpiresIn int64 `json:"access_expires_in"`
}

// RegisterRequest holds self-service signup input.
type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// RegisterResponse returns the created account, never the credential.
type RegisterResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// UserProfile describes an account in responses.
type UserProfile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"is_active"`
	IsStaff   bool       `json:"is_staff"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// ProfileOf maps a user entity to its public profile.
func ProfileOf(u *User) UserProfile {
	return UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		IsActive:  u.IsActive,
		IsStaff:   u.IsStaff,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}
