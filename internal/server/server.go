// Package server implements the HTTP surface of nina-front: the marketing
// and dashboard pages, the authentication endpoints, and the mobile OAuth
// relay.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ninacare/nina-front/internal/backend"
	"github.com/ninacare/nina-front/internal/config"
	"github.com/ninacare/nina-front/internal/cookie"
	"github.com/ninacare/nina-front/internal/crypto"
	"github.com/ninacare/nina-front/internal/idp"
	"github.com/ninacare/nina-front/internal/log"
	"github.com/ninacare/nina-front/internal/session"
	"github.com/ninacare/nina-front/internal/storage"
)

// pageSettleTimeout bounds how long a page handler waits for the session
// state to resolve before rendering with whatever it has
const pageSettleTimeout = 5 * time.Second

// Server holds the dependencies shared by all HTTP handlers
type Server struct {
	cfg      config.Config
	idp      *idp.Client
	sessions *session.Manager
	backend  *backend.Client
	store    storage.Storage
	signer   crypto.TokenSigner
	csrf     crypto.CSRFProtection
}

// New creates the HTTP server frontend
func New(cfg config.Config, idpClient *idp.Client, sessions *session.Manager, backendClient *backend.Client, store storage.Storage) *Server {
	signingKey := []byte(cfg.SessionSigningKey)
	return &Server{
		cfg:      cfg,
		idp:      idpClient,
		sessions: sessions,
		backend:  backendClient,
		store:    store,
		signer:   crypto.NewTokenSigner(signingKey, cfg.Storage.SessionTTL),
		csrf:     crypto.NewCSRFProtection(signingKey, 24*time.Hour),
	}
}

type sessionClaims struct {
	Key string `json:"key"`
}

// sessionKey extracts the browser session key from the signed session cookie
func (s *Server) sessionKey(r *http.Request) (string, bool) {
	raw, err := cookie.GetSession(r)
	if err != nil {
		return "", false
	}
	var claims sessionClaims
	if err := s.signer.Verify(raw, &claims); err != nil || claims.Key == "" {
		return "", false
	}
	return claims.Key, true
}

// ensureSessionKey returns the browser session key, minting and setting a new
// signed cookie when the request doesn't carry a valid one
func (s *Server) ensureSessionKey(w http.ResponseWriter, r *http.Request) (string, error) {
	if key, ok := s.sessionKey(r); ok {
		return key, nil
	}
	key := uuid.NewString()
	token, err := s.signer.Sign(sessionClaims{Key: key})
	if err != nil {
		return "", err
	}
	cookie.SetSession(w, token, s.cfg.Storage.SessionTTL)
	return key, nil
}

// resolvedState loads the session store for the request and waits for the
// state to settle. Redirects to the login page and returns false when the
// request carries no signed-in session.
func (s *Server) resolvedState(w http.ResponseWriter, r *http.Request) (*session.Store, session.State, bool) {
	key, ok := s.sessionKey(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return nil, session.State{}, false
	}

	store := s.sessions.Get(r.Context(), key)
	st := awaitSettled(r.Context(), store, pageSettleTimeout)
	if st.Identity == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return nil, session.State{}, false
	}
	return store, st, true
}

// awaitSettled waits until the session state is no longer loading, or the
// timeout passes, and returns the latest snapshot
func awaitSettled(ctx context.Context, store *session.Store, timeout time.Duration) session.State {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	updates := make(chan session.State, 16)
	unsub := store.Subscribe(func(st session.State) {
		select {
		case updates <- st:
		default:
		}
	})
	defer unsub()

	st := store.State()
	for st.Loading {
		select {
		case st = <-updates:
		case <-timer.C:
			return store.State()
		case <-ctx.Done():
			return store.State()
		}
	}
	return st
}

// csrfToken returns the request's CSRF token, issuing a fresh one when the
// cookie is absent or stale
func (s *Server) csrfToken(w http.ResponseWriter, r *http.Request) string {
	if token, err := cookie.GetCSRF(r); err == nil && s.csrf.Validate(token) {
		return token
	}
	token, err := s.csrf.Generate()
	if err != nil {
		log.LogErrorWithFields("server", "CSRF token generation failed", map[string]any{
			"error": err.Error(),
		})
		return ""
	}
	cookie.SetCSRF(w, token)
	return token
}

// checkCSRF validates the double-submit CSRF token on a form post
func (s *Server) checkCSRF(r *http.Request) bool {
	formToken := r.PostFormValue("csrf_token")
	cookieToken, err := cookie.GetCSRF(r)
	if err != nil || formToken == "" || formToken != cookieToken {
		return false
	}
	return s.csrf.Validate(formToken)
}

// render writes a page template. Template failures after the header is
// written can only be logged.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		log.LogErrorWithFields("server", "Template execution failed", map[string]any{
			"template": name,
			"error":    err.Error(),
		})
	}
}
