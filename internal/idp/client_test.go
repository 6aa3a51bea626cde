package idp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninacare/nina-front/internal/storage"
)

var testSecret = []byte("test-jwt-secret")

func mintToken(t *testing.T, sub, email string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(expiresIn).Unix(),
		"iat":   time.Now().Unix(),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

// fakeProvider is a scriptable Provider for client tests
type fakeProvider struct {
	mu             sync.Mutex
	passwordToken  *Token
	passwordErr    error
	exchangeToken  *Token
	exchangeErr    error
	refreshToken   *Token
	refreshErr     error
	signOutErr     error
	signOutCalls   int
	refreshCalls   int
	exchangedCodes []string
}

func (p *fakeProvider) AuthorizeURL(state, redirectTo string) string {
	return "https://auth.example.com/authorize?state=" + state + "&redirect_to=" + redirectTo
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code string) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangedCodes = append(p.exchangedCodes, code)
	return p.exchangeToken, p.exchangeErr
}

func (p *fakeProvider) PasswordSignIn(context.Context, string, string) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passwordToken, p.passwordErr
}

func (p *fakeProvider) SignUp(context.Context, string, string, string) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passwordToken, p.passwordErr
}

func (p *fakeProvider) SignOut(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutCalls++
	return p.signOutErr
}

func (p *fakeProvider) Refresh(context.Context, string) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
	return p.refreshToken, p.refreshErr
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestClient(provider *fakeProvider) (*Client, *eventRecorder, func()) {
	store := storage.NewMemoryStorage(time.Hour)
	client := NewClient(provider, store, testSecret)
	rec := &eventRecorder{}
	unsub := client.OnSessionChange(rec.record)
	return client, rec, unsub
}

func TestSignInWithPasswordEstablishesSession(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{passwordToken: &Token{
		AccessToken:  mintToken(t, "user-1", "ana@example.com", time.Hour),
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	client, rec, unsub := newTestClient(provider)
	defer unsub()

	identity, err := client.SignInWithPassword(ctx, "sess-1", "ana@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.ID)
	assert.Equal(t, "ana@example.com", identity.Email)

	got, err := client.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.ID)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventSignedIn, events[0].Type)
	assert.Equal(t, "sess-1", events[0].Key)
}

func TestSignInInvalidCredentials(t *testing.T) {
	provider := &fakeProvider{passwordErr: ErrInvalidCredentials}
	client, rec, unsub := newTestClient(provider)
	defer unsub()

	_, err := client.SignInWithPassword(context.Background(), "sess-1", "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, rec.all())
}

func TestGetSessionWithoutSession(t *testing.T) {
	client, _, unsub := newTestClient(&fakeProvider{})
	defer unsub()

	identity, err := client.GetSession(context.Background(), "sess-unknown")
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestGetSessionRefreshesExpiredToken(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		passwordToken: &Token{
			AccessToken:  mintToken(t, "user-1", "ana@example.com", time.Hour),
			RefreshToken: "rt-1",
			ExpiresAt:    time.Now().Add(-time.Minute), // already expired
		},
		refreshToken: &Token{
			AccessToken:  mintToken(t, "user-1", "ana@example.com", time.Hour),
			RefreshToken: "rt-2",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
	client, rec, unsub := newTestClient(provider)
	defer unsub()

	_, err := client.SignInWithPassword(ctx, "sess-1", "ana@example.com", "secret123")
	require.NoError(t, err)

	identity, err := client.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, 1, provider.refreshCalls)

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventSignedIn, events[0].Type)
	assert.Equal(t, EventTokenRefreshed, events[1].Type)
}

func TestGetSessionDropsSessionWhenRefreshFails(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		passwordToken: &Token{
			AccessToken:  mintToken(t, "user-1", "ana@example.com", time.Hour),
			RefreshToken: "rt-1",
			ExpiresAt:    time.Now().Add(-time.Minute),
		},
		refreshErr: errors.New("refresh token revoked"),
	}
	client, rec, unsub := newTestClient(provider)
	defer unsub()

	_, err := client.SignInWithPassword(ctx, "sess-1", "ana@example.com", "secret123")
	require.NoError(t, err)

	identity, err := client.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, identity)

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventSignedOut, events[1].Type)
	assert.Nil(t, events[1].Identity)
}

func TestSignOutClearsLocalSessionDespiteProviderFailure(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		passwordToken: &Token{
			AccessToken: mintToken(t, "user-1", "ana@example.com", time.Hour),
			ExpiresAt:   time.Now().Add(time.Hour),
		},
		signOutErr: errors.New("provider unavailable"),
	}
	client, rec, unsub := newTestClient(provider)
	defer unsub()

	_, err := client.SignInWithPassword(ctx, "sess-1", "ana@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, client.SignOut(ctx, "sess-1"))
	assert.Equal(t, 1, provider.signOutCalls)

	identity, err := client.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, identity)

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventSignedOut, events[1].Type)
}

func TestExchangeCodeWrapsFailures(t *testing.T) {
	provider := &fakeProvider{exchangeErr: errors.New("invalid grant")}
	client, _, unsub := newTestClient(provider)
	defer unsub()

	_, err := client.ExchangeCode(context.Background(), "sess-1", "bad-code")
	assert.ErrorIs(t, err, ErrExchangeFailed)
}

func TestAdoptTokensEstablishesSession(t *testing.T) {
	ctx := context.Background()
	client, rec, unsub := newTestClient(&fakeProvider{})
	defer unsub()

	access := mintToken(t, "user-9", "nanny@example.com", time.Hour)
	identity, err := client.AdoptTokens(ctx, "sess-9", access, "rt-9")
	require.NoError(t, err)
	assert.Equal(t, "user-9", identity.ID)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventSignedIn, events[0].Type)
}

func TestEventSequenceIsMonotonic(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{passwordToken: &Token{
		AccessToken: mintToken(t, "user-1", "ana@example.com", time.Hour),
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	client, rec, unsub := newTestClient(provider)
	defer unsub()

	for range 3 {
		_, err := client.SignInWithPassword(ctx, "sess-1", "ana@example.com", "secret123")
		require.NoError(t, err)
		require.NoError(t, client.SignOut(ctx, "sess-1"))
	}

	events := rec.all()
	require.Len(t, events, 6)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
}

func TestIdentityFromAccessToken(t *testing.T) {
	t.Run("valid signature", func(t *testing.T) {
		identity, err := identityFromAccessToken(mintToken(t, "user-1", "a@example.com", time.Hour), testSecret)
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.ID)
		assert.Equal(t, "a@example.com", identity.Email)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		_, err := identityFromAccessToken(mintToken(t, "user-1", "a@example.com", time.Hour), []byte("other-secret"))
		assert.Error(t, err)
	})

	t.Run("empty secret skips verification", func(t *testing.T) {
		identity, err := identityFromAccessToken(mintToken(t, "user-1", "a@example.com", time.Hour), nil)
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.ID)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := identityFromAccessToken("not-a-jwt", testSecret)
		assert.Error(t, err)
	})
}
