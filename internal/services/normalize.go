package services

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-live-polls/internal/identity"
)

// normalizeText trims s and folds it to Unicode NFC so visually identical
// inputs are stored identically.
func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// normalizeEmail trims and lower-cases an e-mail tag.
func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validateToken maps identity token errors to client-facing validation errors.
func validateToken(s string) (string, error) {
	tok, err := identity.ValidateVoterToken(s)
	switch {
	case err == nil:
		return tok, nil
	case errors.Is(err, identity.ErrTokenMissing):
		return "", invalid("voterHash is required")
	case errors.Is(err, identity.ErrTokenTooLong):
		return "", invalid("voterHash is too long")
	default:
		return "", invalid("voterHash contains invalid characters")
	}
}
