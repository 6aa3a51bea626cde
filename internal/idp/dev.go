package idp

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ninacare/nina-front/internal/crypto"
	"golang.org/x/crypto/bcrypt"
)

// DevProvider is an in-process identity provider for local development. It
// keeps users in memory with bcrypt password hashes and issues self-signed
// HS256 tokens. AuthorizeURL short-circuits the social handshake: it points
// straight back at the callback with a single-use code for a seeded dev user.
type DevProvider struct {
	secret []byte

	mu       sync.Mutex
	users    map[string]*devUser // by email
	codes    map[string]string   // single-use code -> email
	refresh  map[string]string   // refresh token -> email
	tokenTTL time.Duration
}

type devUser struct {
	ID    string
	Email string
	Name  string
	Hash  []byte
}

const devUserEmail = "dev@nina.local"

// NewDevProvider creates the dev provider with one seeded user
func NewDevProvider(secret []byte) *DevProvider {
	p := &DevProvider{
		secret:   secret,
		users:    make(map[string]*devUser),
		codes:    make(map[string]string),
		refresh:  make(map[string]string),
		tokenTTL: time.Hour,
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("devpassword"), bcrypt.DefaultCost)
	p.users[devUserEmail] = &devUser{
		ID:    uuid.NewString(),
		Email: devUserEmail,
		Name:  "Dev User",
		Hash:  hash,
	}
	return p
}

// Secret exposes the signing secret so identity parsing can verify dev tokens
func (p *DevProvider) Secret() []byte {
	return p.secret
}

func (p *DevProvider) AuthorizeURL(state, redirectTo string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	code, err := crypto.GenerateSecureToken()
	if err != nil {
		code = uuid.NewString()
	}
	p.codes[code] = devUserEmail

	u, err := url.Parse(redirectTo)
	if err != nil {
		return redirectTo
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *DevProvider) ExchangeCode(_ context.Context, code string) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	email, ok := p.codes[code]
	if !ok {
		return nil, ErrExchangeFailed
	}
	delete(p.codes, code) // single use

	user, ok := p.users[email]
	if !ok {
		return nil, ErrExchangeFailed
	}
	return p.issue(user)
}

func (p *DevProvider) PasswordSignIn(_ context.Context, email, password string) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.Hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p.issue(user)
}

func (p *DevProvider) SignUp(_ context.Context, email, password, name string) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.users[email]; exists {
		return nil, ErrEmailTaken
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &devUser{
		ID:    uuid.NewString(),
		Email: email,
		Name:  name,
		Hash:  hash,
	}
	p.users[email] = user
	return p.issue(user)
}

func (p *DevProvider) SignOut(_ context.Context, _ string) error {
	return nil
}

func (p *DevProvider) Refresh(_ context.Context, refreshToken string) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	email, ok := p.refresh[refreshToken]
	if !ok {
		return nil, fmt.Errorf("unknown refresh token")
	}
	delete(p.refresh, refreshToken)

	user, ok := p.users[email]
	if !ok {
		return nil, fmt.Errorf("unknown user")
	}
	return p.issue(user)
}

// issue mints an HS256 token pair. Caller holds p.mu.
func (p *DevProvider) issue(user *devUser) (*Token, error) {
	expiresAt := time.Now().Add(p.tokenTTL)

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.Name,
		"exp":   expiresAt.Unix(),
		"iat":   time.Now().Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	refreshToken, err := crypto.GenerateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}
	p.refresh[refreshToken] = user.Email

	return &Token{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}
