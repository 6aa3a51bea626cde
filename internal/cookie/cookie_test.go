package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSetSession(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSession(rec, "token-value", time.Hour)

	c := findCookie(t, rec, SessionCookie)
	require.NotNil(t, c)
	assert.Equal(t, "token-value", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestSetRelayScopedToAuthPaths(t *testing.T) {
	rec := httptest.NewRecorder()
	SetRelay(rec, "relay-id", 10*time.Minute)

	c := findCookie(t, rec, RelayCookie)
	require.NotNil(t, c)
	assert.Equal(t, "/auth", c.Path)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestClearRelay(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearRelay(rec)

	c := findCookie(t, rec, RelayCookie)
	require.NotNil(t, c)
	assert.Equal(t, "/auth", c.Path)
	assert.Negative(t, c.MaxAge)
}

func TestGetSession(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})

	value, err := GetSession(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	empty := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = GetSession(empty)
	assert.Error(t, err)
}
