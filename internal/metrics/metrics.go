package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth flow outcomes, labeled by method (password, signup, oauth, exchange)
// and outcome (ok, invalid_credentials, email_taken, weak_password,
// exchange_failed, timeout, error).
var AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nina_auth_attempts_total",
	Help: "Authentication attempts by method and outcome.",
}, []string{"method", "outcome"})

// Mobile relay outcomes: started, missing_params, redirected, no_target,
// no_result.
var RelayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nina_mobile_relay_total",
	Help: "Mobile OAuth relay events by outcome.",
}, []string{"outcome"})

// Web callback resolutions: dashboard, onboarding, login, timeout.
var CallbackResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nina_auth_callback_resolutions_total",
	Help: "Web OAuth callback resolutions by destination.",
}, []string{"destination"})

// ActiveSessions is the number of live browser sessions in storage, refreshed
// periodically by the app run loop.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "nina_active_sessions",
	Help: "Browser sessions currently persisted in storage.",
})

var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "nina_http_request_duration_seconds",
	Help:    "HTTP request duration by route and status.",
	Buckets: prometheus.DefBuckets,
}, []string{"route", "status"})

// ProfileFetches tracks backend profile lookups from the session store,
// labeled ok, not_found, error, superseded.
var ProfileFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nina_profile_fetches_total",
	Help: "Backend profile fetches by outcome.",
}, []string{"outcome"})
