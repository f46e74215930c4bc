package identity

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Source tells where the hashing secret came from.
type Source string

const (
	SourceConfigured Source = "configured"
	SourceGenerated  Source = "generated"
)

// generatedSecretLen is the size in bytes of a freshly generated secret.
const generatedSecretLen = 32

// Secret is the process-wide HMAC key.
type Secret struct {
	key    []byte
	Source Source
}

// Ephemeral reports whether the secret was generated for this process only.
// Voter keys derived from an ephemeral secret do not survive a restart.
func (s Secret) Ephemeral() bool { return s.Source == SourceGenerated }

// LoadSecret returns the configured secret, or a random one when configured
// is blank. Callers must surface SourceGenerated to operators (see
// Secret.Ephemeral); there is no built-in default key.
func LoadSecret(configured string) (Secret, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return Secret{key: []byte(v), Source: SourceConfigured}, nil
	}
	key := make([]byte, generatedSecretLen)
	if _, err := rand.Read(key); err != nil {
		return Secret{}, fmt.Errorf("generate ip hash secret: %w", err)
	}
	return Secret{key: key, Source: SourceGenerated}, nil
}
