package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ninacare/nina-front/internal/json"
)

// Routes builds the full HTTP handler
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		route := pattern
		if i := strings.IndexByte(pattern, ' '); i >= 0 {
			route = pattern[i+1:]
		}
		mux.Handle(pattern, instrument(route, h))
	}

	handle("GET /{$}", s.handleLanding)
	handle("/", s.handleFallback)

	handle("GET /login", s.handleLoginPage)
	handle("POST /login", s.handleLogin)
	handle("GET /register", s.handleRegisterPage)
	handle("POST /register", s.handleRegister)
	handle("POST /logout", s.handleLogout)

	handle("GET /auth/google", s.handleGoogleStart)
	handle("GET /auth/callback", s.handleAuthCallback)
	handle("GET /auth/mobile-start", s.handleMobileStart)
	handle("GET /auth/mobile-callback", s.handleMobileCallback)

	handle("GET /select-profile", s.handleSelectProfile)
	handle("GET /create-profile", s.handleCreateProfilePage)
	handle("POST /create-profile", s.handleCreateProfile)

	handle("GET /dashboard/family", s.handleFamilyDashboard)
	handle("GET /dashboard/nanny", s.handleNannyDashboard)

	handle("POST /vacancies", s.handlePostVacancy)
	handle("POST /vacancies/{id}/deactivate", s.handleDeactivateVacancy)
	handle("POST /availability", s.handlePublishAvailability)
	handle("POST /availability/{id}/deactivate", s.handleWithdrawAvailability)

	handle("POST /subscribe", s.handleSubscribe)
	handle("GET /payment/{outcome}", s.handlePaymentResult)

	handle("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return withRecovery(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = json.Write(w, map[string]string{"status": "ok"})
}
