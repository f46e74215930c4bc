package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/user"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNoToken is returned by Chain.Resolve when every provider failed.
var ErrNoToken = errors.New("no voter token provider succeeded")

// Provider produces a client voter token.
type Provider struct {
	Name string
	Fn   func() (string, error)
}

// Chain tries providers in priority order; the first success wins.
type Chain struct {
	Providers []Provider
	Log       zerolog.Logger
}

// Resolve returns the first token produced by the chain and the name of the
// provider that produced it. Every fallback is logged at warn level.
func (c Chain) Resolve() (token, provider string, err error) {
	if len(c.Providers) == 0 {
		return "", "", ErrNoToken
	}
	var errs []error
	for i, p := range c.Providers {
		tok, perr := p.Fn()
		if perr == nil {
			tok = strings.TrimSpace(tok)
		}
		if perr == nil && tok != "" {
			if i > 0 {
				c.Log.Warn().Str("provider", p.Name).Int("fallbacks", i).Msg("voter token resolved by fallback provider")
			}
			return tok, p.Name, nil
		}
		if perr == nil {
			perr = errors.New("empty token")
		}
		c.Log.Warn().Err(perr).Str("provider", p.Name).Msg("voter token provider failed")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, perr))
	}
	return "", "", fmt.Errorf("%w: %w", ErrNoToken, errors.Join(errs...))
}

// DefaultChain is the provider order used by clients: a stable device
// fingerprint, then a random UUID, then a pseudo-random hex string.
func DefaultChain(log zerolog.Logger) Chain {
	return Chain{
		Log: log,
		Providers: []Provider{
			{Name: "fingerprint", Fn: DeviceFingerprint},
			{Name: "uuid", Fn: RandomUUID},
			{Name: "pseudo", Fn: PseudoRandom},
		},
	}
}

// machineIDPaths lists where Linux distributions keep the machine id.
var machineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// DeviceFingerprint hashes host name, machine id, and OS user into a stable
// token. It fails when none of the signals is available.
func DeviceFingerprint() (string, error) {
	var parts []string
	if h, err := os.Hostname(); err == nil && h != "" {
		parts = append(parts, "host="+h)
	}
	for _, p := range machineIDPaths {
		if b, err := os.ReadFile(p); err == nil {
			if id := strings.TrimSpace(string(b)); id != "" {
				parts = append(parts, "machine="+id)
				break
			}
		}
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		parts = append(parts, "user="+u.Username)
	}
	if len(parts) == 0 {
		return "", errors.New("no device signals available")
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:]), nil
}

// RandomUUID returns a crypto-random v4 UUID.
func RandomUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// PseudoRandom never fails; it is the last resort.
func PseudoRandom() (string, error) {
	return fmt.Sprintf("%016x%016x", rand.Uint64(), rand.Uint64()), nil
}
