// Package validate holds field rules shared by the signup and login flows.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	MinPasswordLength = 6
	// bcrypt ignores input past 72 bytes
	MaxPasswordBytes = 72
	MaxFullNameRunes = 100
)

func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// Password enforces the minimum length and bcrypt's input cap.
func Password(v string) error {
	if len(v) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(v) > MaxPasswordBytes {
		return fmt.Errorf("password exceeds %d bytes", MaxPasswordBytes)
	}
	return nil
}

func FullName(v string) error {
	if err := NonEmpty("fullName", v); err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(v)) > MaxFullNameRunes {
		return fmt.Errorf("fullName exceeds %d characters", MaxFullNameRunes)
	}
	return nil
}
