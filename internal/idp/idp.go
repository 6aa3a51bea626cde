// Package idp wraps the external identity provider: session lookup, password
// sign-in and sign-up, sign-out, OAuth initiation, authorization-code exchange,
// and an ordered session-change event stream consumed by the session store.
package idp

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidCredentials is returned when a password sign-in is rejected
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailTaken is returned when signing up with an already registered email
var ErrEmailTaken = errors.New("email already registered")

// ErrWeakPassword is returned when the provider rejects the password strength
var ErrWeakPassword = errors.New("password too weak")

// ErrExchangeFailed is returned when an authorization-code exchange is
// rejected (invalid or expired code)
var ErrExchangeFailed = errors.New("code exchange failed")

// Identity is the opaque external user reference, mirrored read-only here
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Token is the provider-issued token pair for one session
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Provider is the transport-level identity provider contract. The REST
// implementation talks to a hosted auth service; the dev implementation runs
// in-process for local development.
type Provider interface {
	// AuthorizeURL builds the URL that starts the social OAuth handshake.
	// Navigating there leaves the app; the provider redirects back to
	// redirectTo when the upstream handshake completes.
	AuthorizeURL(state, redirectTo string) string

	// ExchangeCode trades a PKCE authorization code for a token pair
	ExchangeCode(ctx context.Context, code string) (*Token, error)

	PasswordSignIn(ctx context.Context, email, password string) (*Token, error)
	SignUp(ctx context.Context, email, password, name string) (*Token, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// EventType classifies session transitions
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event is one session transition for one browser session. Seq is monotonic
// across the process; listeners receive events in Seq order.
type Event struct {
	Seq      uint64
	Type     EventType
	Key      string
	Identity *Identity // nil for signed_out
}
