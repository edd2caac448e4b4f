package passcode

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMinLength is the shortest passcode accepted at registration.
	DefaultMinLength = 4
	// DefaultMaxLength is the longest passcode accepted at registration.
	DefaultMaxLength = 12

	// Symbols lists the punctuation accepted alongside ASCII letters and digits.
	Symbols = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"

	shortLen = 8
)

var (
	// ErrEmpty is returned for a blank passcode.
	ErrEmpty = errors.New("passcode is empty")
	// ErrTooShort is returned when the passcode has fewer than MinLength characters.
	ErrTooShort = errors.New("passcode too short")
	// ErrTooLong is returned when the passcode has more than MaxLength characters.
	ErrTooLong = errors.New("passcode too long")
	// ErrInvalidCharacters is returned when the passcode contains a character
	// outside letters, digits and Symbols.
	ErrInvalidCharacters = errors.New("passcode contains invalid characters")
)

var allowed [utf8.RuneSelf]bool

func init() {
	for c := 'a'; c <= 'z'; c++ {
		allowed[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		allowed[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		allowed[c] = true
	}
	for i := 0; i < len(Symbols); i++ {
		allowed[Symbols[i]] = true
	}
}

// Hash returns the lowercase hex SHA-256 digest of p.
func Hash(p string) string {
	sum := sha256.Sum256([]byte(p))
	return hex.EncodeToString(sum[:])
}

// Short truncates a hash for log output.
func Short(hash string) string {
	if len(hash) <= shortLen {
		return hash
	}
	return hash[:shortLen] + "..."
}

// Policy bounds passcode length. Character rules are fixed.
type Policy struct {
	MinLength int
	MaxLength int
}

// DefaultPolicy returns the 4 to 12 character policy.
func DefaultPolicy() Policy {
	return Policy{
		MinLength: DefaultMinLength,
		MaxLength: DefaultMaxLength,
	}
}

// Validate checks p in a fixed order: blank, too short, too long, then
// character set. Length is measured in characters, not bytes.
func (pol Policy) Validate(p string) error {
	if strings.TrimSpace(p) == "" {
		return ErrEmpty
	}

	n := utf8.RuneCountInString(p)
	if n < pol.MinLength {
		return ErrTooShort
	}
	if pol.MaxLength > 0 && n > pol.MaxLength {
		return ErrTooLong
	}

	for _, r := range p {
		if r >= utf8.RuneSelf || !allowed[r] {
			return ErrInvalidCharacters
		}
	}
	return nil
}

// Validate checks p against DefaultPolicy.
func Validate(p string) error {
	return DefaultPolicy().Validate(p)
}
