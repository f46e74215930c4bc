package identity

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestHasher_DeterministicPerSecret(t *testing.T) {
	s1, err := LoadSecret("secret-one")
	require.NoError(t, err)
	s2, err := LoadSecret("secret-two")
	require.NoError(t, err)

	h1 := NewHasher(s1)
	h1b := NewHasher(s1)
	h2 := NewHasher(s2)

	a := h1.Hash("203.0.113.7")
	assert.Regexp(t, hex64, a)
	assert.Equal(t, a, h1.Hash("203.0.113.7"))
	assert.Equal(t, a, h1b.Hash("203.0.113.7"))
	assert.NotEqual(t, a, h2.Hash("203.0.113.7"))
	assert.NotEqual(t, a, h1.Hash("203.0.113.8"))
	assert.NotContains(t, a, "203.0.113.7")
}

func TestHasher_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	s, err := LoadSecret("Jefe")
	require.NoError(t, err)
	got := NewHasher(s).Hash("what do ya want for nothing?")
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}

func TestLoadSecret(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		s, err := LoadSecret("  abc  ")
		require.NoError(t, err)
		assert.Equal(t, SourceConfigured, s.Source)
		assert.False(t, s.Ephemeral())
		assert.Equal(t, []byte("abc"), s.key)
	})

	t.Run("generated when blank", func(t *testing.T) {
		a, err := LoadSecret("")
		require.NoError(t, err)
		b, err := LoadSecret("   ")
		require.NoError(t, err)

		assert.Equal(t, SourceGenerated, a.Source)
		assert.True(t, a.Ephemeral())
		assert.Len(t, a.key, generatedSecretLen)
		assert.False(t, bytes.Equal(a.key, b.key), "two generated secrets should differ")
	})
}

func TestValidateVoterToken(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{"ok", "abc123", "abc123", nil},
		{"trimmed", "  tok \n", "tok", nil},
		{"empty", "", "", ErrTokenMissing},
		{"blank", "   ", "", ErrTokenMissing},
		{"too long", strings.Repeat("x", MaxVoterTokenLen+1), "", ErrTokenTooLong},
		{"max len", strings.Repeat("x", MaxVoterTokenLen), strings.Repeat("x", MaxVoterTokenLen), nil},
		{"control char", "ab\x00cd", "", ErrTokenMalformed},
		{"invalid utf8", "ab\xffcd", "", ErrTokenMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateVoterToken(tc.in)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChain_Resolve(t *testing.T) {
	fail := func() (string, error) { return "", errors.New("boom") }
	empty := func() (string, error) { return "  ", nil }
	ok := func(v string) func() (string, error) { return func() (string, error) { return v, nil } }

	t.Run("first provider wins without logging", func(t *testing.T) {
		var buf bytes.Buffer
		c := Chain{Log: zerolog.New(&buf), Providers: []Provider{{"a", ok("tok-a")}, {"b", ok("tok-b")}}}
		tok, name, err := c.Resolve()
		require.NoError(t, err)
		assert.Equal(t, "tok-a", tok)
		assert.Equal(t, "a", name)
		assert.Empty(t, buf.String())
	})

	t.Run("fallbacks are logged", func(t *testing.T) {
		var buf bytes.Buffer
		c := Chain{Log: zerolog.New(&buf), Providers: []Provider{{"a", fail}, {"b", empty}, {"c", ok("tok-c")}}}
		tok, name, err := c.Resolve()
		require.NoError(t, err)
		assert.Equal(t, "tok-c", tok)
		assert.Equal(t, "c", name)
		out := buf.String()
		assert.Contains(t, out, `"provider":"a"`)
		assert.Contains(t, out, `"provider":"b"`)
		assert.Contains(t, out, "fallback provider")
	})

	t.Run("all fail", func(t *testing.T) {
		c := Chain{Log: zerolog.Nop(), Providers: []Provider{{"a", fail}}}
		_, _, err := c.Resolve()
		assert.ErrorIs(t, err, ErrNoToken)
		assert.Contains(t, err.Error(), "a: boom")
	})

	t.Run("no providers", func(t *testing.T) {
		_, _, err := Chain{}.Resolve()
		assert.ErrorIs(t, err, ErrNoToken)
	})
}

func TestDefaultChain_AlwaysProducesToken(t *testing.T) {
	tok, name, err := DefaultChain(zerolog.Nop()).Resolve()
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Contains(t, []string{"fingerprint", "uuid", "pseudo"}, name)
}

func TestProviders(t *testing.T) {
	u, err := RandomUUID()
	require.NoError(t, err)
	assert.Len(t, u, 36)

	p, err := PseudoRandom()
	require.NoError(t, err)
	assert.Len(t, p, 32)
}
