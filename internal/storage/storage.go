package storage

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session record doesn't exist
var ErrSessionNotFound = errors.New("session not found")

// ErrRelayTargetNotFound is returned when no relay target is stored under an ID,
// including when it was already consumed (relay targets are read-once)
var ErrRelayTargetNotFound = errors.New("relay target not found")

// SessionRecord is the persisted identity-provider session for one browser.
// The browser holds only a signed key; tokens never leave the server.
type SessionRecord struct {
	Key          string    `json:"key"`
	AuthID       string    `json:"auth_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// Storage persists browser session records and the short-lived deep-link
// targets of the mobile OAuth relay.
type Storage interface {
	// Session records
	SetSession(ctx context.Context, rec SessionRecord) error
	GetSession(ctx context.Context, key string) (*SessionRecord, error)
	DeleteSession(ctx context.Context, key string) error
	ListActiveSessions(ctx context.Context) ([]SessionRecord, error)

	// Relay targets. TakeRelayTarget is read-once: the first read clears the
	// entry so a second read (e.g. back-navigation) yields ErrRelayTargetNotFound.
	PutRelayTarget(ctx context.Context, id, target string, ttl time.Duration) error
	TakeRelayTarget(ctx context.Context, id string) (string, error)

	Close() error
}
