package flows

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxEmailLength    = 254
	minUsernameLength = 3
	maxUsernameLength = 30
)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) string {
	if email == "" {
		return "is required"
	}
	if len(email) > maxEmailLength {
		return "is too long"
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') {
		return "must be a valid email address"
	}
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return "must be a valid email address"
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return "must be a valid email address"
	}
	return ""
}

func validateUsername(username string) string {
	n := utf8.RuneCountInString(username)
	if n == 0 {
		return "is required"
	}
	if n < minUsernameLength || n > maxUsernameLength {
		return "must be between 3 and 30 characters"
	}
	for _, r := range username {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return "may contain only letters, digits and underscores"
		}
	}
	return ""
}

// CheckPassword returns a field message when password violates p.
func CheckPassword(password string, p PasswordPolicy) string {
	if password == "" {
		return "is required"
	}
	n := utf8.RuneCountInString(password)
	if p.MinLength > 0 && n < p.MinLength {
		return "is too short"
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return "is too long"
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if p.RequireMixed && !(upper && lower) {
		return "must contain upper and lower case letters"
	}
	if p.RequireDigit && !digit {
		return "must contain a digit"
	}
	if p.RequireSymbol && !symbol {
		return "must contain a symbol"
	}
	return ""
}
