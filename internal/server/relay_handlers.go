package server

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/ninacare/nina-front/internal/cookie"
	"github.com/ninacare/nina-front/internal/crypto"
	"github.com/ninacare/nina-front/internal/log"
	"github.com/ninacare/nina-front/internal/metrics"
	"github.com/ninacare/nina-front/internal/relay"
	"github.com/ninacare/nina-front/internal/storage"
)

// handleMobileStart begins the mobile OAuth relay. The native app opens this
// page in the system browser with its deep-link target and the provider
// authorization URL; the target is persisted for the round-trip (unless a
// fixed scheme is configured) and the browser is sent to the provider.
func (s *Server) handleMobileStart(w http.ResponseWriter, r *http.Request) {
	params, err := relay.ParseStart(r.URL.Query())
	if err != nil {
		metrics.RelayEvents.WithLabelValues("missing_params").Inc()
		s.render(w, http.StatusBadRequest, "relay_status.html", RelayPageData{
			Status:  "error",
			Message: "Missing app_redirect or auth_url parameter. Please restart sign-in from the app.",
		})
		return
	}

	// The authorization URL is followed blindly, so it has to be a web URL
	if u, err := url.Parse(params.AuthURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		metrics.RelayEvents.WithLabelValues("missing_params").Inc()
		s.render(w, http.StatusBadRequest, "relay_status.html", RelayPageData{
			Status:  "error",
			Message: "Invalid authorization URL. Please restart sign-in from the app.",
		})
		return
	}

	if s.cfg.Mobile.FixedScheme == "" {
		relayID, err := crypto.GenerateSecureToken()
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if err := s.store.PutRelayTarget(r.Context(), relayID, params.AppRedirect, s.cfg.Mobile.RelayTTL); err != nil {
			log.LogErrorWithFields("server", "Persisting relay target failed", map[string]any{
				"error": err.Error(),
			})
			s.render(w, http.StatusInternalServerError, "relay_status.html", RelayPageData{
				Status:  "error",
				Message: "Could not start sign-in, please try again.",
			})
			return
		}
		cookie.SetRelay(w, relayID, s.cfg.Mobile.RelayTTL)
	}

	metrics.RelayEvents.WithLabelValues("started").Inc()
	http.Redirect(w, r, params.AuthURL, http.StatusFound)
}

// handleMobileCallback finishes the mobile relay. The provider redirects here
// with a PKCE code in the query string or implicit-flow tokens in the URL
// fragment; the handler recovers the deep-link target and hands the result to
// the native app via its custom scheme.
func (s *Server) handleMobileCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Fragment tokens never reach the server; relay them into the query
	// string first so the read-once target is only consumed on the final pass
	if q.Get("code") == "" && q.Get("access_token") == "" && q.Get("relayed") != "1" {
		s.render(w, http.StatusOK, "fragment_relay.html", CallbackPageData{
			Message: "Returning to the app",
		})
		return
	}

	target := s.cfg.Mobile.FixedScheme
	if target == "" {
		if relayID, err := cookie.GetRelay(r); err == nil && relayID != "" {
			stored, err := s.store.TakeRelayTarget(r.Context(), relayID)
			switch {
			case err == nil:
				target = stored
			case errors.Is(err, storage.ErrRelayTargetNotFound):
				// Already consumed or expired; the fallback below may still apply
			default:
				log.LogErrorWithFields("server", "Reading relay target failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
		cookie.ClearRelay(w)
	}
	if target == "" {
		// Lost cookie fallback: the app may have echoed its target through
		// the provider redirect
		target = q.Get("app_redirect")
	}
	if target == "" {
		metrics.RelayEvents.WithLabelValues("no_target").Inc()
		s.render(w, http.StatusOK, "relay_status.html", RelayPageData{
			Status:  "error",
			Message: "We could not determine how to return to the app. Please reopen the app and sign in again.",
		})
		return
	}

	// After the fragment hop the token pair lives in the query string, so the
	// query doubles as the fragment values here
	result, err := relay.ParseResult(q, q)
	if err != nil {
		metrics.RelayEvents.WithLabelValues("no_result").Inc()
		s.render(w, http.StatusOK, "relay_status.html", RelayPageData{
			Status:  "error",
			Message: "Sign-in did not complete. Please reopen the app and try again.",
		})
		return
	}

	metrics.RelayEvents.WithLabelValues("redirected").Inc()
	s.render(w, http.StatusOK, "relay_status.html", RelayPageData{
		Status:  "redirecting",
		Message: "Sign-in complete, returning to the app.",
		Target:  template.URL(relay.NativeURL(target, result)),
	})
}
