package models

import "time"

// User represents an account stored in the users table. PasswordHash is empty
// when no credential has been set; it never leaves the service layer.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	IsStaff      bool       `db:"is_staff" json:"is_staff"`
	IsSuperuser  bool       `db:"is_superuser" json:"is_superuser"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// HasPassword reports whether the user has a stored credential.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// RecordLogin stamps a successful authentication.
func (u *User) RecordLogin(ts time.Time) {
	t := ts
	u.LastLogin = &t
}
