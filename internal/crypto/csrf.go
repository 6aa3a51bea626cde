package crypto

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CSRFProtection issues and checks the double-submit tokens embedded in every
// form this server renders. Tokens are stateless so any instance behind a load
// balancer can validate a token another instance issued; they carry their own
// issue time and expire after maxAge.
//
// Shape: <nonce>.<unix-seconds>.<signature>, the same dot-separated layout as
// the session cookie produced by TokenSigner.
type CSRFProtection struct {
	key    []byte
	maxAge time.Duration
}

// NewCSRFProtection returns a token source backed by the given HMAC key
func NewCSRFProtection(key []byte, maxAge time.Duration) CSRFProtection {
	return CSRFProtection{key: key, maxAge: maxAge}
}

// Generate mints a fresh token for embedding in a form
func (c *CSRFProtection) Generate() (string, error) {
	nonce, err := GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("generating CSRF nonce: %w", err)
	}

	issued := strconv.FormatInt(time.Now().Unix(), 10)
	return nonce + "." + issued + "." + SignData(nonce+"."+issued, c.key), nil
}

// Validate reports whether a submitted token was issued by this key and has
// not outlived maxAge
func (c *CSRFProtection) Validate(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	nonce, issuedAt, signature := parts[0], parts[1], parts[2]

	seconds, err := strconv.ParseInt(issuedAt, 10, 64)
	if err != nil {
		return false
	}
	if time.Since(time.Unix(seconds, 0)) > c.maxAge {
		return false
	}

	return ValidateSignedData(nonce+"."+issuedAt, signature, c.key)
}
