package server

import (
	"errors"
	"net/http"

	"github.com/ninacare/nina-front/internal/cookie"
	"github.com/ninacare/nina-front/internal/crypto"
	"github.com/ninacare/nina-front/internal/idp"
	"github.com/ninacare/nina-front/internal/log"
	"github.com/ninacare/nina-front/internal/metrics"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.redirectIfSignedIn(w, r) {
		return
	}
	s.render(w, http.StatusOK, "login.html", AuthPageData{
		Title:     "Sign in",
		CSRFToken: s.csrfToken(w, r),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(r) {
		s.render(w, http.StatusForbidden, "login.html", AuthPageData{
			Title:     "Sign in",
			Error:     "Your session expired, please try again.",
			CSRFToken: s.csrfToken(w, r),
		})
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	key, err := s.ensureSessionKey(w, r)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if _, err := s.idp.SignInWithPassword(r.Context(), key, email, password); err != nil {
		outcome := "error"
		message := "Something went wrong, please try again."
		if errors.Is(err, idp.ErrInvalidCredentials) {
			outcome = "invalid_credentials"
			message = "Invalid email or password."
		} else {
			log.LogErrorWithFields("server", "Password sign-in failed", map[string]any{
				"error": err.Error(),
			})
		}
		metrics.AuthAttempts.WithLabelValues("password", outcome).Inc()
		s.render(w, http.StatusUnauthorized, "login.html", AuthPageData{
			Title:     "Sign in",
			Error:     message,
			Email:     email,
			CSRFToken: s.csrfToken(w, r),
		})
		return
	}
	metrics.AuthAttempts.WithLabelValues("password", "ok").Inc()

	store := s.sessions.Get(r.Context(), key)
	path, _ := awaitDestination(r.Context(), store, s.cfg.CallbackTimeout)
	http.Redirect(w, r, path, http.StatusFound)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if s.redirectIfSignedIn(w, r) {
		return
	}
	s.render(w, http.StatusOK, "register.html", AuthPageData{
		Title:     "Create account",
		CSRFToken: s.csrfToken(w, r),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(r) {
		s.render(w, http.StatusForbidden, "register.html", AuthPageData{
			Title:     "Create account",
			Error:     "Your session expired, please try again.",
			CSRFToken: s.csrfToken(w, r),
		})
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	key, err := s.ensureSessionKey(w, r)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if _, err := s.idp.SignUp(r.Context(), key, email, password); err != nil {
		outcome := "error"
		message := "Something went wrong, please try again."
		switch {
		case errors.Is(err, idp.ErrEmailTaken):
			outcome = "email_taken"
			message = "An account with this email already exists."
		case errors.Is(err, idp.ErrWeakPassword):
			outcome = "weak_password"
			message = "Please choose a stronger password (at least 8 characters)."
		default:
			log.LogErrorWithFields("server", "Sign-up failed", map[string]any{
				"error": err.Error(),
			})
		}
		metrics.AuthAttempts.WithLabelValues("signup", outcome).Inc()
		s.render(w, http.StatusBadRequest, "register.html", AuthPageData{
			Title:     "Create account",
			Error:     message,
			Email:     email,
			CSRFToken: s.csrfToken(w, r),
		})
		return
	}
	metrics.AuthAttempts.WithLabelValues("signup", "ok").Inc()

	store := s.sessions.Get(r.Context(), key)
	path, _ := awaitDestination(r.Context(), store, s.cfg.CallbackTimeout)
	http.Redirect(w, r, path, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if key, ok := s.sessionKey(r); ok {
		if err := s.idp.SignOut(r.Context(), key); err != nil {
			log.LogErrorWithFields("server", "Sign-out failed", map[string]any{
				"error": err.Error(),
			})
		}
		s.sessions.Drop(key)
	}
	cookie.ClearSession(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleGoogleStart begins the social sign-in handshake by sending the
// browser to the provider's authorization URL. There is no in-app success
// path: the handshake completes on /auth/callback.
func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ensureSessionKey(w, r); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	state, err := crypto.GenerateSecureToken()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	authURL := s.idp.BeginOAuth(state, s.cfg.BaseURL+"/auth/callback")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// redirectIfSignedIn sends an already signed-in visitor from a public auth
// page to their dashboard
func (s *Server) redirectIfSignedIn(w http.ResponseWriter, r *http.Request) bool {
	key, ok := s.sessionKey(r)
	if !ok {
		return false
	}
	store := s.sessions.Get(r.Context(), key)
	st := awaitSettled(r.Context(), store, pageSettleTimeout)
	if st.Identity == nil {
		return false
	}
	path, _ := profileDestination(st)
	http.Redirect(w, r, path, http.StatusFound)
	return true
}
