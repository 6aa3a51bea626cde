package crypto

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenPayload struct {
	Key string `json:"key"`
}

func TestTokenSignerRoundTrip(t *testing.T) {
	signer := NewTokenSigner([]byte("signing-key"), time.Hour)

	token, err := signer.Sign(tokenPayload{Key: "sess-1"})
	require.NoError(t, err)

	var out tokenPayload
	require.NoError(t, signer.Verify(token, &out))
	assert.Equal(t, "sess-1", out.Key)
}

func TestTokenSignerRejectsTampering(t *testing.T) {
	signer := NewTokenSigner([]byte("signing-key"), time.Hour)

	token, err := signer.Sign(tokenPayload{Key: "sess-1"})
	require.NoError(t, err)

	parts := strings.SplitN(token, ".", 2)
	require.Len(t, parts, 2)

	var out tokenPayload
	assert.Error(t, signer.Verify(parts[0]+".bogus-signature", &out))
	assert.Error(t, signer.Verify("garbage", &out))
}

func TestTokenSignerRejectsWrongKey(t *testing.T) {
	signer := NewTokenSigner([]byte("signing-key"), time.Hour)
	other := NewTokenSigner([]byte("other-key"), time.Hour)

	token, err := signer.Sign(tokenPayload{Key: "sess-1"})
	require.NoError(t, err)

	var out tokenPayload
	assert.Error(t, other.Verify(token, &out))
}

func TestTokenSignerExpiry(t *testing.T) {
	signer := NewTokenSigner([]byte("signing-key"), -time.Minute)

	token, err := signer.Sign(tokenPayload{Key: "sess-1"})
	require.NoError(t, err)

	var out tokenPayload
	err = signer.Verify(token, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestTokenSignerZeroTTLNeverExpires(t *testing.T) {
	signer := NewTokenSigner([]byte("signing-key"), 0)

	token, err := signer.Sign(tokenPayload{Key: "sess-1"})
	require.NoError(t, err)

	var out tokenPayload
	assert.NoError(t, signer.Verify(token, &out))
}

func TestCSRFProtection(t *testing.T) {
	csrf := NewCSRFProtection([]byte("signing-key"), time.Hour)

	token, err := csrf.Generate()
	require.NoError(t, err)
	assert.True(t, csrf.Validate(token))

	t.Run("token carries nonce, issue time and signature", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		_, err := strconv.ParseInt(parts[1], 10, 64)
		assert.NoError(t, err)
	})

	t.Run("tampered token rejected", func(t *testing.T) {
		assert.False(t, csrf.Validate(token+"x"))
		assert.False(t, csrf.Validate("a.b"))
		assert.False(t, csrf.Validate(""))
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		other := NewCSRFProtection([]byte("other-key"), time.Hour)
		assert.False(t, other.Validate(token))
	})

	t.Run("expired token rejected", func(t *testing.T) {
		shortLived := NewCSRFProtection([]byte("signing-key"), -time.Minute)
		tok, err := shortLived.Generate()
		require.NoError(t, err)
		assert.False(t, shortLived.Validate(tok))
	})
}

func TestGenerateSecureTokenUnique(t *testing.T) {
	a, err := GenerateSecureToken()
	require.NoError(t, err)
	b, err := GenerateSecureToken()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
