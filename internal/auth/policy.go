package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"

	passwordvalidator "github.com/wagslane/go-password-validator"
)

const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}

// PasswordPolicy checks a new password. MinEntropy of zero disables the
// entropy check and leaves only the length rule.
type PasswordPolicy struct {
	MinEntropy float64
}

// Check returns a user-facing reason, or "" when the password is acceptable.
func (p PasswordPolicy) Check(password string) string {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return "must be at least 6 characters"
	}
	if len(password) > 1024 {
		return "is too long"
	}
	if p.MinEntropy > 0 {
		if err := passwordvalidator.Validate(password, p.MinEntropy); err != nil {
			return err.Error()
		}
	}
	return ""
}
