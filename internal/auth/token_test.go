// internal/auth/token_test.go
package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss, err := NewIssuer(0)
	require.NoError(t, err)

	tok, err := iss.Issue("guest-42")
	require.NoError(t, err)

	sub, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "guest-42", sub)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	a, err := NewIssuer(0)
	require.NoError(t, err)
	b, err := NewIssuer(0)
	require.NoError(t, err)

	tok, err := a.Issue("alice")
	require.NoError(t, err)
	_, err = b.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss, err := NewIssuer(time.Hour)
	require.NoError(t, err)
	start := time.Now()
	iss.now = func() time.Time { return start }

	tok, err := iss.Issue("alice")
	require.NoError(t, err)
	_, err = iss.Verify(tok)
	require.NoError(t, err)

	iss.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTTL(t *testing.T) {
	for _, s := range []string{"", "0", "never"} {
		d, err := ParseTTL(s)
		require.NoError(t, err)
		assert.Zero(t, d, s)
	}
	d, err := ParseTTL("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = ParseTTL("soon")
	assert.Error(t, err)
}

func TestNewIssuerFromFiles(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "key")
	pubPath := filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	iss, err := NewIssuerFromFiles(privPath, pubPath, 0)
	require.NoError(t, err)
	tok, err := iss.Issue("bob")
	require.NoError(t, err)
	sub, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "bob", sub)

	require.NoError(t, os.WriteFile(pubPath, []byte("short"), 0o644))
	_, err = NewIssuerFromFiles(privPath, pubPath, 0)
	assert.Error(t, err)
}
