package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
)

// MinPasswordLength is the shortest password the console forwards when an
// admin account is created or its password is changed.
const MinPasswordLength = 8

// PasswordSpecials are the characters that satisfy the "special" rule.
const PasswordSpecials = `!@#$%^&*(),.?":{}|<>`

// Policy errors carry the text shown next to the password field.
var (
	ErrPasswordRequired = errors.New("Password is required")
	ErrPasswordShort    = errors.New("Password must be at least 8 characters")
	ErrPasswordUpper    = errors.New("Password must contain at least one uppercase letter (A-Z)")
	ErrPasswordLower    = errors.New("Password must contain at least one lowercase letter (a-z)")
	ErrPasswordDigit    = errors.New("Password must contain at least one number (0-9)")
	ErrPasswordSpecial  = errors.New("Password must contain at least one special character (!@#$%^&*)")
)

// ValidatePassword checks the console's password policy and returns the
// first rule the password breaks.
func ValidatePassword(pw string) error {
	if pw == "" {
		return ErrPasswordRequired
	}
	if len(pw) < MinPasswordLength {
		return ErrPasswordShort
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		}
	}
	switch {
	case !upper:
		return ErrPasswordUpper
	case !lower:
		return ErrPasswordLower
	case !digit:
		return ErrPasswordDigit
	case !special:
		return ErrPasswordSpecial
	}
	return nil
}

// GenerateToken returns a 32-byte cryptographically random hex string.
func GenerateToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
