// Package variable implements the validated identifiers and tagged-union
// values that make up the shared dictionary a Context exposes to a Sequence.
package variable

import (
	"fmt"
	"strings"
)

// MaxNameLength is the longest a Name may be, in bytes.
const MaxNameLength = 64

// Name is a validated variable identifier: non-empty, at most MaxNameLength
// bytes, first byte alphabetic, remaining bytes alphanumeric or underscore.
// Once constructed it is immutable and safe to use as a map key.
type Name struct {
	s string
}

// NewName validates s and returns a Name, or an error describing why s is
// not a valid identifier.
func NewName(s string) (Name, error) {
	if err := validate(s); err != nil {
		return Name{}, err
	}
	return Name{s: s}, nil
}

func validate(s string) error {
	if s == "" {
		return fmt.Errorf("variable: empty name: %w", ErrInvalidIdentifier)
	}
	if len(s) > MaxNameLength {
		return fmt.Errorf("variable: name %q exceeds %d bytes: %w", s, MaxNameLength, ErrInvalidIdentifier)
	}
	first := s[0]
	if !isAlpha(first) {
		return fmt.Errorf("variable: name %q must start with a letter: %w", s, ErrInvalidIdentifier)
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isAlpha(c) && !isDigit(c) && c != '_' {
			return fmt.Errorf("variable: name %q contains invalid byte %q at %d: %w", s, c, i, ErrInvalidIdentifier)
		}
	}
	return nil
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// String returns the validated identifier text.
func (n Name) String() string {
	return n.s
}

// IsZero reports whether n is the zero Name (never produced by NewName).
func (n Name) IsZero() bool {
	return n.s == ""
}

// Less provides a total order over Names, for deterministic iteration.
func (n Name) Less(other Name) bool {
	return n.s < other.s
}

// Concat concatenates n with a raw suffix, yielding a plain string — never
// a Name. Callers that need a validated result must pass it back through
// NewName; naive "+=" style concatenation must never silently skip
// validation.
func (n Name) Concat(suffix string) string {
	var b strings.Builder
	b.WriteString(n.s)
	b.WriteString(suffix)
	return b.String()
}
