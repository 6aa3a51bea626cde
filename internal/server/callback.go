package server

import (
	"context"
	"net/http"
	"time"

	"github.com/ninacare/nina-front/internal/log"
	"github.com/ninacare/nina-front/internal/metrics"
	"github.com/ninacare/nina-front/internal/session"
)

// handleAuthCallback is the web OAuth callback. The provider redirects here
// with either a PKCE code in the query string, implicit-flow tokens in the
// URL fragment, or an error. Once a session is established the handler waits
// for the profile to resolve and routes by role, falling back to the login
// page when nothing materializes within the configured timeout.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	key, err := s.ensureSessionKey(w, r)
	if err != nil {
		log.LogErrorWithFields("server", "Session key setup failed on callback", map[string]any{
			"error": err.Error(),
		})
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if provErr := q.Get("error"); provErr != "" {
		metrics.AuthAttempts.WithLabelValues("oauth", "error").Inc()
		log.LogWarnWithFields("server", "Provider returned an error on callback", map[string]any{
			"error":       provErr,
			"description": q.Get("error_description"),
		})
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	switch {
	case q.Get("code") != "":
		if _, err := s.idp.ExchangeCode(r.Context(), key, q.Get("code")); err != nil {
			metrics.AuthAttempts.WithLabelValues("exchange", "exchange_failed").Inc()
			log.LogWarnWithFields("server", "Authorization code exchange failed", map[string]any{
				"error": err.Error(),
			})
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		metrics.AuthAttempts.WithLabelValues("exchange", "ok").Inc()

	case q.Get("access_token") != "":
		if _, err := s.idp.AdoptTokens(r.Context(), key, q.Get("access_token"), q.Get("refresh_token")); err != nil {
			metrics.AuthAttempts.WithLabelValues("oauth", "error").Inc()
			log.LogWarnWithFields("server", "Adopting implicit-flow tokens failed", map[string]any{
				"error": err.Error(),
			})
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		metrics.AuthAttempts.WithLabelValues("oauth", "ok").Inc()

	case q.Get("relayed") != "1":
		// Implicit-flow tokens arrive in the URL fragment, which the browser
		// never sends to the server. One scripted hop moves them into the
		// query string; relayed=1 guards against a reload loop.
		s.render(w, http.StatusOK, "fragment_relay.html", CallbackPageData{
			Message: "Completing sign-in",
		})
		return
	}

	store := s.sessions.Get(r.Context(), key)
	path, outcome := awaitDestination(r.Context(), store, s.cfg.CallbackTimeout)
	metrics.CallbackResolutions.WithLabelValues(outcome).Inc()
	http.Redirect(w, r, path, http.StatusFound)
}

// resolveDestination decides where a callback routes for a given state
// snapshot. The checks run in a fixed order: timeout, then the loading gate,
// then the identity gate. A timed-out wait still honors a state that settled
// signed-in at the last moment; an undecided state keeps the caller waiting.
func resolveDestination(st session.State, timedOut bool) (path, outcome string, decided bool) {
	if timedOut {
		if !st.Loading && st.Identity != nil {
			path, outcome = profileDestination(st)
			return path, outcome, true
		}
		return "/login", "timeout", true
	}
	if st.Loading {
		return "", "", false
	}
	if st.Identity == nil {
		// Signed out but not timed out yet: the session may still materialize
		return "", "", false
	}
	path, outcome = profileDestination(st)
	return path, outcome, true
}

// profileDestination routes a signed-in state by role. No role means
// onboarding is incomplete.
func profileDestination(st session.State) (path, outcome string) {
	role := st.Role()
	if role == "" {
		return "/select-profile", "onboarding"
	}
	return "/dashboard/" + string(role), "dashboard"
}

// awaitDestination watches the session store until a destination is decided
// or the timeout passes
func awaitDestination(ctx context.Context, store *session.Store, timeout time.Duration) (string, string) {
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
	for {
		if path, outcome, decided := resolveDestination(st, false); decided {
			return path, outcome
		}
		select {
		case st = <-updates:
		case <-timer.C:
			// The state may have settled between the last update and the
			// timer firing; the final check reads it fresh
			path, outcome, _ := resolveDestination(store.State(), true)
			return path, outcome
		case <-ctx.Done():
			path, outcome, _ := resolveDestination(store.State(), true)
			return path, outcome
		}
	}
}
