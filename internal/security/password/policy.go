package password

import (
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// ErrTooShort is returned when a password is below the configured minimum length.
var ErrTooShort = eris.New("password is too short")

// Policy holds the rules a new password must satisfy.
type Policy struct {
	MinLength int
}

// Validate checks plain against the policy. Length counts runes.
func (p Policy) Validate(plain string) error {
	if n := utf8.RuneCountInString(plain); n < p.MinLength {
		return eris.Wrapf(ErrTooShort, "need at least %d characters, got %d", p.MinLength, n)
	}
	return nil
}
