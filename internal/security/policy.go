package security

import (
	"errors"
	"strings"
	"unicode"
)

const (
	MinPasswordLength = 8
	passwordSymbols   = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?~`"
)

var (
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters long")
	ErrPasswordUppercase = errors.New("password must contain at least one uppercase letter")
	ErrPasswordLowercase = errors.New("password must contain at least one lowercase letter")
	ErrPasswordDigit     = errors.New("password must contain at least one digit")
	ErrPasswordSymbol    = errors.New("password must contain at least one special character")
)

// ValidatePasswordStrength returns the first rule the password breaks, checked in
// the order length, uppercase, lowercase, digit, symbol.
func ValidatePasswordStrength(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
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
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}

	switch {
	case !upper:
		return ErrPasswordUppercase
	case !lower:
		return ErrPasswordLowercase
	case !digit:
		return ErrPasswordDigit
	case !symbol:
		return ErrPasswordSymbol
	}
	return nil
}
