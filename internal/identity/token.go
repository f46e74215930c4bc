package identity

import (
	"errors"
	"strings"
	"unicode"
)

// MaxVoterTokenLen bounds the client-supplied voter token in bytes.
const MaxVoterTokenLen = 256

var (
	ErrTokenMissing   = errors.New("voterHash is required")
	ErrTokenTooLong   = errors.New("voterHash is too long")
	ErrTokenMalformed = errors.New("voterHash contains invalid characters")
)

// ValidateVoterToken trims s and checks it is usable as a dedup key. The
// token is otherwise accepted at face value.
func ValidateVoterToken(s string) (string, error) {
	tok := strings.TrimSpace(s)
	switch {
	case tok == "":
		return "", ErrTokenMissing
	case len(tok) > MaxVoterTokenLen:
		return "", ErrTokenTooLong
	}
	for _, r := range tok {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return "", ErrTokenMalformed
		}
	}
	return tok, nil
}
