package cookie

import (
	"net/http"
	"time"

	"github.com/ninacare/nina-front/internal/envutil"
	"github.com/ninacare/nina-front/internal/log"
)

// Cookie names used in nina-front
const (
	SessionCookie = "nina_session"
	RelayCookie   = "nina_relay"
	CSRFCookie    = "csrf_token"
)

// SetSession sets the browser session cookie with appropriate security settings
func SetSession(w http.ResponseWriter, value string, maxAge time.Duration) {
	secure := !envutil.IsDev()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})

	log.LogDebugWithFields("cookie", "Session cookie set", map[string]any{
		"maxAge": maxAge.String(),
		"secure": secure,
	})
}

// SetRelay sets the relay ID cookie carrying the mobile relay round-trip.
// SameSite must be Lax: the cookie has to survive the cross-site redirect
// back from the identity provider.
func SetRelay(w http.ResponseWriter, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     RelayCookie,
		Value:    value,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

// SetCSRF sets a CSRF token cookie
func SetCSRF(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: false, // CSRF tokens need to be readable by JavaScript
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int((24 * time.Hour).Seconds()),
	})
}

// Clear removes a cookie by setting MaxAge to -1
func Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// ClearSession removes the session cookie
func ClearSession(w http.ResponseWriter) {
	Clear(w, SessionCookie)
	log.LogDebugWithFields("cookie", "Session cookie cleared", nil)
}

// ClearRelay removes the relay cookie
func ClearRelay(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   RelayCookie,
		Value:  "",
		Path:   "/auth",
		MaxAge: -1,
	})
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// GetSession retrieves the session cookie value
func GetSession(r *http.Request) (string, error) {
	return Get(r, SessionCookie)
}

// GetRelay retrieves the relay cookie value
func GetRelay(r *http.Request) (string, error) {
	return Get(r, RelayCookie)
}

// GetCSRF retrieves the CSRF cookie value
func GetCSRF(r *http.Request) (string, error) {
	return Get(r, CSRFCookie)
}
