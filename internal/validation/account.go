// Package validation checks account fields and sanitizes user-authored
// rich text.
package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordRunes = 12
	maxPasswordRunes = 128
	maxEmailLen      = 254
)

// passwordRules are checked in order; the first miss is reported.
var passwordRules = []struct {
	need string
	ok   func(rune) bool
}{
	{"an uppercase letter", unicode.IsUpper},
	{"a lowercase letter", unicode.IsLower},
	{"a digit", unicode.IsDigit},
	{"a special character such as !@#$%^&*", func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }},
}

// ValidatePassword enforces length in runes and one character of each class.
func ValidatePassword(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < minPasswordRunes:
		return fmt.Errorf("password must be at least %d characters long", minPasswordRunes)
	case n > maxPasswordRunes:
		return fmt.Errorf("password must not exceed %d characters", maxPasswordRunes)
	}
	for _, rule := range passwordRules {
		if !strings.ContainsFunc(password, rule.ok) {
			return fmt.Errorf("password must contain %s", rule.need)
		}
	}
	return nil
}

// usernamePattern is the @mention alphabet with the underscore kept inside.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9_]{1,28})[A-Za-z0-9]$`)

// ValidateUsername accepts 3 to 30 ASCII letters, digits and inner
// underscores, which is exactly what an @mention can name.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return errors.New("username must be 3-30 letters, digits or underscores, not starting or ending with an underscore")
	}
	return nil
}

// ValidateEmail accepts a bare address whose domain has at least one dot.
func ValidateEmail(email string) error {
	if len(email) > maxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", maxEmailLen)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return errors.New("invalid email format")
	}
	_, domain, _ := strings.Cut(addr.Address, "@")
	if !strings.Contains(strings.Trim(domain, "."), ".") {
		return errors.New("invalid email format")
	}
	return nil
}
