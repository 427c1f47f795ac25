package auth

import (
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPassword = errors.New("password does not meet the password policy")

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plaintext password with a stored bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PasswordPolicy validates new passwords against a configured pattern.
type PasswordPolicy struct {
	re *regexp.Regexp
}

func NewPasswordPolicy(pattern string) (*PasswordPolicy, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid password pattern: %w", err)
	}
	return &PasswordPolicy{re: re}, nil
}

// Check rejects passwords that do not match the pattern or exceed bcrypt's 72 byte limit.
func (p *PasswordPolicy) Check(password string) error {
	if len(password) > 72 || !p.re.MatchString(password) {
		return ErrWeakPassword
	}
	return nil
}
