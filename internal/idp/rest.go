package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// RESTConfig configures the hosted identity service client
type RESTConfig struct {
	// BaseURL of the auth service, e.g. https://auth.nina-web.com.ar
	BaseURL string
	// APIKey sent on every request
	APIKey string
	// ClientID/ClientSecret for the authorization-code leg
	ClientID     string
	ClientSecret string
	// RedirectURL is the default web callback registered with the provider
	RedirectURL string
	// OAuthProvider is the upstream social provider (e.g. "google")
	OAuthProvider string
}

// RESTProvider implements Provider against a GoTrue-style hosted auth service.
// The authorize/exchange legs ride on oauth2.Config; password sign-in, sign-up
// and sign-out are plain REST calls.
type RESTProvider struct {
	cfg    RESTConfig
	oauth  oauth2.Config
	client *http.Client
}

// NewRESTProvider creates a provider client for the hosted auth service
func NewRESTProvider(cfg RESTConfig) *RESTProvider {
	return &RESTProvider{
		cfg: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.BaseURL + "/authorize",
				TokenURL: cfg.BaseURL + "/token",
			},
		},
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthorizeURL builds the social sign-in URL. The provider authenticates the
// user upstream (e.g. against Google) and redirects back to redirectTo.
func (p *RESTProvider) AuthorizeURL(state, redirectTo string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("provider", p.cfg.OAuthProvider),
	}
	if redirectTo != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_to", redirectTo))
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

// ExchangeCode trades a PKCE authorization code for a token pair
func (p *RESTProvider) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"error_code"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
}

func (e *errorResponse) message() string {
	for _, s := range []string{e.Description, e.Msg, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (p *RESTProvider) PasswordSignIn(ctx context.Context, email, password string) (*Token, error) {
	payload := map[string]string{"email": email, "password": password}

	var tok tokenResponse
	status, errBody, err := p.post(ctx, "/token?grant_type=password", "", payload, &tok)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("password sign-in returned status %d: %s", status, errBody.message())
	}

	return tokenFromResponse(tok), nil
}

func (p *RESTProvider) SignUp(ctx context.Context, email, password, name string) (*Token, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": name},
	}

	var tok tokenResponse
	status, errBody, err := p.post(ctx, "/signup", "", payload, &tok)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusOK:
		return tokenFromResponse(tok), nil
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		msg := strings.ToLower(errBody.message())
		if errBody.Code == "user_already_exists" || strings.Contains(msg, "already registered") {
			return nil, ErrEmailTaken
		}
		if errBody.Code == "weak_password" || strings.Contains(msg, "password") {
			return nil, ErrWeakPassword
		}
		return nil, fmt.Errorf("sign-up rejected: %s", errBody.message())
	default:
		return nil, fmt.Errorf("sign-up returned status %d: %s", status, errBody.message())
	}
}

func (p *RESTProvider) SignOut(ctx context.Context, accessToken string) error {
	status, errBody, err := p.post(ctx, "/logout", accessToken, struct{}{}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return fmt.Errorf("sign-out returned status %d: %s", status, errBody.message())
	}
	return nil
}

func (p *RESTProvider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	payload := map[string]string{"refresh_token": refreshToken}

	var tok tokenResponse
	status, errBody, err := p.post(ctx, "/token?grant_type=refresh_token", "", payload, &tok)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("token refresh returned status %d: %s", status, errBody.message())
	}

	return tokenFromResponse(tok), nil
}

func tokenFromResponse(tok tokenResponse) *Token {
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
}

// post issues a JSON POST and decodes either the success or the error body.
// The HTTP status is returned so callers can map provider rejections onto the
// package's sentinel errors.
func (p *RESTProvider) post(ctx context.Context, path, bearer string, payload, out any) (int, errorResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, errorResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, errorResponse{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("apikey", p.cfg.APIKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, errorResponse{}, fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return resp.StatusCode, errorResponse{}, fmt.Errorf("decoding response: %w", err)
			}
		}
		return resp.StatusCode, errorResponse{}, nil
	}

	var errBody errorResponse
	_ = json.Unmarshal(body, &errBody)
	return resp.StatusCode, errBody, nil
}
