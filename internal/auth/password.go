// Package auth implements password verification, session management,
// the role permission matrix and login lockout for the platform.
package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"sitepulse/internal/config"
)

// ErrWeakPassword is returned when a candidate password fails policy.
var ErrWeakPassword = errors.New("password does not meet policy")

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), config.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plaintext matches the stored hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordPolicy enforces the minimum password requirements:
// length, at least one letter and at least one digit.
func ValidatePasswordPolicy(password string) error {
	if len(password) < config.MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, config.MinPasswordLength)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: must contain a letter and a digit", ErrWeakPassword)
	}
	return nil
}
