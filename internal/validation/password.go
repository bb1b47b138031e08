// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes  = 72
	MaxUsernameLength = 150
	MaxEmailLength    = 254
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// commonPasswords is a short deny-list of the passwords most often seen in leaks.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "12345678": {}, "123456789": {},
	"1234567890": {}, "qwerty123": {}, "qwertyuiop": {}, "iloveyou": {}, "sunshine": {},
	"princess": {}, "football": {}, "baseball": {}, "welcome1": {}, "letmein1": {},
	"abc12345": {}, "trustno1": {}, "superman": {}, "starwars": {}, "passw0rd": {},
	"11111111": {}, "00000000": {}, "88888888": {}, "admin123": {}, "qwerty12": {},
}

// PasswordContext carries the account attributes a password must not resemble.
type PasswordContext struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string, user PasswordContext) error {
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordBytes)
	}

	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return fmt.Errorf("password cannot be entirely numeric")
	}

	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return fmt.Errorf("password is too common")
	}

	lower := strings.ToLower(password)
	localPart, _, _ := strings.Cut(user.Email, "@")
	for _, attr := range []string{user.Username, localPart, user.FirstName, user.LastName} {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if len(attr) < 3 {
			continue
		}
		if strings.Contains(lower, attr) || strings.Contains(attr, lower) {
			return fmt.Errorf("password is too similar to your personal information")
		}
	}

	return nil
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, and @/./+/-/_ characters")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateLength checks that s is non-empty (when required) and at most max runes.
func ValidateLength(field, s string, required bool, max int) error {
	trimmed := strings.TrimSpace(s)
	if required && trimmed == "" {
		return fmt.Errorf("%s is required", field)
	}
	if n := len([]rune(s)); n > max {
		return fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return nil
}
