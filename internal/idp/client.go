package idp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ninacare/nina-front/internal/log"
	"github.com/ninacare/nina-front/internal/storage"
)

// Client is the application-facing identity provider client. It drives a
// Provider, persists one token record per browser session, and publishes
// session-change events. Events are delivered to every listener in sequence
// order: emit holds a lock while assigning the sequence number and invoking
// listeners, so a slow consumer delays later events rather than reordering them.
type Client struct {
	provider  Provider
	store     storage.Storage
	jwtSecret []byte

	emitMu    sync.Mutex
	seq       uint64
	listeners map[int]func(Event)
	nextID    int
}

// NewClient creates the identity provider client
func NewClient(provider Provider, store storage.Storage, jwtSecret []byte) *Client {
	return &Client{
		provider:  provider,
		store:     store,
		jwtSecret: jwtSecret,
		listeners: make(map[int]func(Event)),
	}
}

// OnSessionChange registers a persistent listener for session transitions.
// The returned function unsubscribes it.
func (c *Client) OnSessionChange(cb func(Event)) func() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = cb

	return func() {
		c.emitMu.Lock()
		defer c.emitMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Client) emit(evType EventType, key string, identity *Identity) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.seq++
	ev := Event{
		Seq:      c.seq,
		Type:     evType,
		Key:      key,
		Identity: identity,
	}
	for _, cb := range c.listeners {
		cb(ev)
	}
}

// GetSession returns the current identity for a browser session, or nil when
// none exists. Expired access tokens are refreshed transparently, which emits
// a token_refreshed event.
func (c *Client) GetSession(ctx context.Context, key string) (*Identity, error) {
	rec, err := c.store.GetSession(ctx, key)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if time.Now().Before(rec.ExpiresAt) {
		return &Identity{ID: rec.AuthID, Email: rec.Email}, nil
	}

	if rec.RefreshToken == "" {
		_ = c.store.DeleteSession(ctx, key)
		return nil, nil
	}

	tok, err := c.provider.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		log.LogWarnWithFields("idp", "Token refresh failed, dropping session", map[string]any{
			"error": err.Error(),
		})
		_ = c.store.DeleteSession(ctx, key)
		c.emit(EventSignedOut, key, nil)
		return nil, nil
	}

	identity, err := c.persist(ctx, key, tok)
	if err != nil {
		return nil, err
	}
	c.emit(EventTokenRefreshed, key, identity)
	return identity, nil
}

// SignInWithPassword authenticates with email/password and establishes a
// session for the browser session key. Fails with ErrInvalidCredentials.
func (c *Client) SignInWithPassword(ctx context.Context, key, email, password string) (*Identity, error) {
	tok, err := c.provider.PasswordSignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, key, tok)
}

// SignUp registers a new account. The display name starts as the email local
// part; onboarding replaces it. Fails with ErrEmailTaken or ErrWeakPassword.
func (c *Client) SignUp(ctx context.Context, key, email, password string) (*Identity, error) {
	name := email
	if at := strings.Index(email, "@"); at > 0 {
		name = email[:at]
	}

	tok, err := c.provider.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, key, tok)
}

// SignOut tears down the session. The remote revocation is best-effort: a
// transient provider failure is logged and the local session still clears,
// so the user is never stuck signed in.
func (c *Client) SignOut(ctx context.Context, key string) error {
	rec, err := c.store.GetSession(ctx, key)
	if err == nil && rec != nil {
		if err := c.provider.SignOut(ctx, rec.AccessToken); err != nil {
			log.LogWarnWithFields("idp", "Remote sign-out failed, clearing local session anyway", map[string]any{
				"error": err.Error(),
			})
		}
	}

	if err := c.store.DeleteSession(ctx, key); err != nil {
		return err
	}
	c.emit(EventSignedOut, key, nil)
	return nil
}

// BeginOAuth returns the provider authorization URL to navigate to. There is
// no success return path: the browser leaves the app.
func (c *Client) BeginOAuth(state, redirectTo string) string {
	return c.provider.AuthorizeURL(state, redirectTo)
}

// ExchangeCode trades a PKCE authorization code for a session. Fails with
// ErrExchangeFailed on an invalid or expired code.
func (c *Client) ExchangeCode(ctx context.Context, key, code string) (*Identity, error) {
	tok, err := c.provider.ExchangeCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrExchangeFailed) {
			return nil, err
		}
		return nil, errors.Join(ErrExchangeFailed, err)
	}
	return c.establish(ctx, key, tok)
}

// AdoptTokens establishes a session from an implicit-flow token pair delivered
// in a redirect fragment.
func (c *Client) AdoptTokens(ctx context.Context, key, accessToken, refreshToken string) (*Identity, error) {
	tok := &Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	return c.establish(ctx, key, tok)
}

func (c *Client) establish(ctx context.Context, key string, tok *Token) (*Identity, error) {
	identity, err := c.persist(ctx, key, tok)
	if err != nil {
		return nil, err
	}
	c.emit(EventSignedIn, key, identity)
	return identity, nil
}

func (c *Client) persist(ctx context.Context, key string, tok *Token) (*Identity, error) {
	identity, err := identityFromAccessToken(tok.AccessToken, c.jwtSecret)
	if err != nil {
		return nil, err
	}

	expiresAt := tok.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}

	now := time.Now()
	rec := storage.SessionRecord{
		Key:          key,
		AuthID:       identity.ID,
		Email:        identity.Email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		LastSeen:     now,
	}
	if err := c.store.SetSession(ctx, rec); err != nil {
		return nil, err
	}
	return identity, nil
}
