package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NINA_SESSION_KEY", "test-signing-key")
	t.Setenv("NINA_IDP_URL", "https://auth.example.com")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 10*time.Second, cfg.CallbackTimeout)
	assert.Equal(t, StorageMemory, cfg.Storage.Kind)
	assert.Equal(t, 720*time.Hour, cfg.Storage.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Mobile.RelayTTL)
	assert.Equal(t, "google", cfg.IDP.OAuthProvider)
}

func TestLoadRequiresSessionKey(t *testing.T) {
	t.Setenv("NINA_IDP_URL", "https://auth.example.com")
	t.Setenv("NINA_SESSION_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NINA_SESSION_KEY")
}

func TestLoadRequiresIDPUnlessDev(t *testing.T) {
	t.Setenv("NINA_SESSION_KEY", "test-signing-key")
	t.Setenv("NINA_IDP_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NINA_IDP_URL")

	t.Setenv("NINA_IDP_DEV", "true")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoadStorageValidation(t *testing.T) {
	setRequiredEnv(t)

	t.Run("redis needs url", func(t *testing.T) {
		t.Setenv("NINA_STORAGE", "redis")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NINA_REDIS_URL")

		t.Setenv("NINA_REDIS_URL", "redis://localhost:6379/0")
		_, err = Load()
		assert.NoError(t, err)
	})

	t.Run("firestore needs project", func(t *testing.T) {
		t.Setenv("NINA_STORAGE", "firestore")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NINA_FIRESTORE_PROJECT")
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Setenv("NINA_STORAGE", "cassandra")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown storage kind")
	})
}

func TestLoadMobileSchemeValidation(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("NINA_MOBILE_SCHEME", "ninaapp://auth/callback")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ninaapp://auth/callback", cfg.Mobile.FixedScheme)

	t.Setenv("NINA_MOBILE_SCHEME", "not a url at all")
	_, err = Load()
	assert.Error(t, err)
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret-value")
	assert.Equal(t, "***", s.String())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret-value")
	assert.Contains(t, string(data), "***")

	assert.Equal(t, "", Secret("").String())
}
