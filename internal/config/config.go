package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the backing store for sessions and relay targets
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageRedis     StorageKind = "redis"
	StorageFirestore StorageKind = "firestore"
)

// IDPConfig configures the external identity provider.
type IDPConfig struct {
	// BaseURL of the identity service, e.g. https://auth.nina-web.com.ar
	BaseURL string `env:"NINA_IDP_URL"`
	// APIKey sent on every request (anon key)
	APIKey Secret `env:"NINA_IDP_API_KEY"`
	// ClientID/ClientSecret for the authorization-code leg
	ClientID     string `env:"NINA_IDP_CLIENT_ID"`
	ClientSecret Secret `env:"NINA_IDP_CLIENT_SECRET"`
	// JWTSecret verifies HS256 access tokens issued by the provider.
	// Empty means claims are read without signature verification (dev only).
	JWTSecret Secret `env:"NINA_IDP_JWT_SECRET"`
	// OAuthProvider is the upstream social provider requested on /authorize
	OAuthProvider string `env:"NINA_IDP_OAUTH_PROVIDER" envDefault:"google"`
	// Dev switches to the in-process development provider
	Dev bool `env:"NINA_IDP_DEV" envDefault:"false"`
}

// MobileConfig configures the native-app OAuth relay.
type MobileConfig struct {
	// FixedScheme, when set, is used as the deep-link target for every relay
	// round-trip and the storage hop is skipped (e.g. ninaapp://auth/callback).
	FixedScheme string `env:"NINA_MOBILE_SCHEME"`
	// RelayTTL bounds how long a persisted deep-link target stays readable
	RelayTTL time.Duration `env:"NINA_RELAY_TTL" envDefault:"10m"`
}

// StorageConfig selects and configures the session/relay store.
type StorageConfig struct {
	Kind              StorageKind   `env:"NINA_STORAGE" envDefault:"memory"`
	RedisURL          string        `env:"NINA_REDIS_URL"`
	FirestoreProject  string        `env:"NINA_FIRESTORE_PROJECT"`
	FirestoreDatabase string        `env:"NINA_FIRESTORE_DATABASE" envDefault:"(default)"`
	FirestorePrefix   string        `env:"NINA_FIRESTORE_PREFIX" envDefault:"nina_front"`
	SessionTTL        time.Duration `env:"NINA_SESSION_TTL" envDefault:"720h"`
}

// Config is the full nina-front configuration, loaded from the environment.
type Config struct {
	Addr    string `env:"NINA_ADDR" envDefault:":8080"`
	BaseURL string `env:"NINA_BASE_URL" envDefault:"http://localhost:8080"`

	// BackendURL is the REST API owning profiles, listings and subscriptions
	BackendURL string `env:"NINA_API_URL" envDefault:"http://localhost:8000"`

	// SessionSigningKey signs the browser session cookie
	SessionSigningKey Secret `env:"NINA_SESSION_KEY"`

	// CallbackTimeout bounds how long /auth/callback waits for a session
	// to materialize before falling back to the login page
	CallbackTimeout time.Duration `env:"NINA_CALLBACK_TIMEOUT" envDefault:"10s"`

	IDP     IDPConfig
	Mobile  MobileConfig
	Storage StorageConfig
}

// Load parses the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that tag parsing cannot express.
func Validate(cfg *Config) error {
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.SessionSigningKey == "" {
		return fmt.Errorf("NINA_SESSION_KEY is required")
	}
	if !cfg.IDP.Dev {
		if cfg.IDP.BaseURL == "" {
			return fmt.Errorf("NINA_IDP_URL is required unless NINA_IDP_DEV is set")
		}
		if _, err := url.Parse(cfg.IDP.BaseURL); err != nil {
			return fmt.Errorf("invalid identity provider URL %q: %w", cfg.IDP.BaseURL, err)
		}
	}
	switch cfg.Storage.Kind {
	case StorageMemory:
	case StorageRedis:
		if cfg.Storage.RedisURL == "" {
			return fmt.Errorf("NINA_REDIS_URL is required for redis storage")
		}
	case StorageFirestore:
		if cfg.Storage.FirestoreProject == "" {
			return fmt.Errorf("NINA_FIRESTORE_PROJECT is required for firestore storage")
		}
	default:
		return fmt.Errorf("unknown storage kind %q", cfg.Storage.Kind)
	}
	if cfg.Mobile.FixedScheme != "" {
		u, err := url.Parse(cfg.Mobile.FixedScheme)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("NINA_MOBILE_SCHEME must be a URL with a custom scheme, got %q", cfg.Mobile.FixedScheme)
		}
	}
	if cfg.CallbackTimeout <= 0 {
		return fmt.Errorf("NINA_CALLBACK_TIMEOUT must be positive")
	}
	return nil
}
