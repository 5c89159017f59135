package identity

import (
	"unicode"

	"github.com/congdinh/todo-backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// HashPassword hashes a password with bcrypt at the given cost.
// A cost of 0 uses bcrypt's default.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash against a candidate password.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ValidatePassword enforces the password strength policy:
// at least 8 characters with upper case, lower case, and a digit.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &domain.ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}

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

	if !hasUpper || !hasLower || !hasDigit {
		return &domain.ValidationError{Field: "password", Message: "must contain upper case, lower case, and a digit"}
	}
	return nil
}
