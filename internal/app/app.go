// Package app wires the nina-front process together: storage, identity
// provider, session manager, backend client and the HTTP server.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ninacare/nina-front/internal/backend"
	"github.com/ninacare/nina-front/internal/config"
	"github.com/ninacare/nina-front/internal/idp"
	"github.com/ninacare/nina-front/internal/log"
	"github.com/ninacare/nina-front/internal/metrics"
	"github.com/ninacare/nina-front/internal/server"
	"github.com/ninacare/nina-front/internal/session"
	"github.com/ninacare/nina-front/internal/storage"
)

// Run starts the application and blocks until ctx is canceled or the server
// fails
func Run(ctx context.Context, cfg config.Config) error {
	store, err := setupStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("setting up storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.LogWarnWithFields("app", "Closing storage failed", map[string]any{"error": err.Error()})
		}
	}()

	provider, jwtSecret := setupProvider(cfg)
	idpClient := idp.NewClient(provider, store, jwtSecret)

	backendClient := backend.NewClient(cfg.BackendURL)

	sessions := session.NewManager(idpClient, backendClient)
	defer sessions.Close()

	srv := server.New(cfg, idpClient, sessions, backendClient, store)
	httpServer := server.NewHTTPServer(cfg.Addr, srv.Routes())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(func() error {
		pollActiveSessions(ctx, store, time.Minute)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// pollActiveSessions keeps the active-sessions gauge in step with storage
// until ctx is canceled
func pollActiveSessions(ctx context.Context, store storage.Storage, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions, err := store.ListActiveSessions(ctx)
			if err != nil {
				log.LogWarnWithFields("app", "Counting active sessions failed", map[string]any{
					"error": err.Error(),
				})
				continue
			}
			metrics.ActiveSessions.Set(float64(len(sessions)))
		}
	}
}

func setupStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Kind {
	case config.StorageMemory:
		log.LogInfoWithFields("app", "Using in-memory storage", nil)
		return storage.NewMemoryStorage(cfg.SessionTTL), nil
	case config.StorageRedis:
		log.LogInfoWithFields("app", "Using redis storage", nil)
		return storage.NewRedisStorage(ctx, cfg.RedisURL, cfg.SessionTTL)
	case config.StorageFirestore:
		log.LogInfoWithFields("app", "Using firestore storage", map[string]any{
			"project":  cfg.FirestoreProject,
			"database": cfg.FirestoreDatabase,
		})
		return storage.NewFirestoreStorage(ctx, cfg.FirestoreProject, cfg.FirestoreDatabase, cfg.FirestorePrefix, cfg.SessionTTL)
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

// setupProvider picks the identity provider implementation and the secret
// used to verify its access tokens
func setupProvider(cfg config.Config) (idp.Provider, []byte) {
	if cfg.IDP.Dev {
		log.LogWarnWithFields("app", "Using the in-process development identity provider", nil)
		dev := idp.NewDevProvider([]byte(cfg.SessionSigningKey))
		return dev, dev.Secret()
	}

	provider := idp.NewRESTProvider(idp.RESTConfig{
		BaseURL:       cfg.IDP.BaseURL,
		APIKey:        string(cfg.IDP.APIKey),
		ClientID:      cfg.IDP.ClientID,
		ClientSecret:  string(cfg.IDP.ClientSecret),
		RedirectURL:   cfg.BaseURL + "/auth/callback",
		OAuthProvider: cfg.IDP.OAuthProvider,
	})
	return provider, []byte(cfg.IDP.JWTSecret)
}
