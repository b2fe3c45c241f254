package utils

import (
	"strings"

	"github.com/badoux/checkmail"
)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address syntax. No DNS lookup is made.
func ValidateEmail(email string) error {
	return checkmail.ValidateFormat(email)
}
