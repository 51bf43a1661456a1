package auth

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var (
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.(in|com)$`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword compares a bcrypt hash with its possible plaintext.
func CheckPassword(password, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// ValidatePassword requires more than five characters and at least one
// special character.
func ValidatePassword(password string) error {
	if len(password) <= 5 {
		return fmt.Errorf("password must be longer than 5 characters")
	}
	if !specialPattern.MatchString(password) {
		return fmt.Errorf("password must contain at least one special character")
	}
	return nil
}

// ValidateEmail requires an address ending in .in or .com.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("email must contain @ and end with .in or .com")
	}
	return nil
}
