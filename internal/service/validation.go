package service

import (
	"errors"
	"unicode"
)

// validatePasswordStrength enforces the registration password policy: at
// least one uppercase letter, one lowercase letter and one digit. Length
// bounds are handled by the struct tags on the request DTOs.
func validatePasswordStrength(password string) error {
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return errors.New("Password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("Password must contain at least one lowercase letter")
	}
	if !hasDigit {
		return errors.New("Password must contain at least one digit")
	}
	return nil
}
