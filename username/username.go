// Package username normalizes account names the way the game client does
// before they are used in proofs.
package username

import (
	"errors"
	"strings"
)

// MaxLength is the longest account name the client accepts
const MaxLength = 16

var (
	// ErrEmpty occurs when the name has no characters
	ErrEmpty = errors.New("worldcrypt/username: empty username")
	// ErrTooLong occurs when the name is longer than MaxLength
	ErrTooLong = errors.New("worldcrypt/username: username longer than 16 characters")
	// ErrCharacter occurs when the name contains something other than printable ASCII
	ErrCharacter = errors.New("worldcrypt/username: username contains invalid character")
)

// Normalized is an uppercase account name that is safe to put into a proof.
// Only New should be used to create one from user input.
type Normalized string

// New validates and uppercases s.
// The client only uppercases ASCII, so anything else is rejected.
func New(s string) (Normalized, error) {
	if len(s) == 0 {
		return "", ErrEmpty
	}
	if len(s) > MaxLength {
		return "", ErrTooLong
	}
	for i := 0; i < len(s); i++ {
		// printable without space
		if s[i] <= ' ' || s[i] > '~' {
			return "", ErrCharacter
		}
	}
	return Normalized(strings.ToUpper(s)), nil
}

// MustNew is like New but panics on error. Meant for constants and tests.
func MustNew(s string) Normalized {
	n, err := New(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Normalized) String() string {
	return string(n)
}
