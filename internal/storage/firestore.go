package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/ninacare/nina-front/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ensure FirestoreStorage implements the Storage interface
var _ Storage = (*FirestoreStorage)(nil)

// FirestoreStorage persists sessions and relay targets in Google Cloud
// Firestore, for deployments where Redis isn't available. Firestore has no
// native TTL on reads, so expiry is checked on the way out and expired
// documents are deleted lazily.
type FirestoreStorage struct {
	client            *firestore.Client
	sessionCollection string
	relayCollection   string
	sessionTTL        time.Duration
}

type sessionDoc struct {
	Key          string    `firestore:"key"`
	AuthID       string    `firestore:"auth_id"`
	Email        string    `firestore:"email"`
	AccessToken  string    `firestore:"access_token"`
	RefreshToken string    `firestore:"refresh_token,omitempty"`
	ExpiresAt    time.Time `firestore:"expires_at"`
	CreatedAt    time.Time `firestore:"created_at"`
	LastSeen     time.Time `firestore:"last_seen"`
	StoreUntil   time.Time `firestore:"store_until"`
}

type relayDoc struct {
	Target    string    `firestore:"target"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// NewFirestoreStorage creates a Firestore-backed storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, prefix string, sessionTTL time.Duration) (*FirestoreStorage, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &FirestoreStorage{
		client:            client,
		sessionCollection: prefix + "_sessions",
		relayCollection:   prefix + "_relay",
		sessionTTL:        sessionTTL,
	}, nil
}

func (s *FirestoreStorage) SetSession(ctx context.Context, rec SessionRecord) error {
	doc := sessionDoc{
		Key:          rec.Key,
		AuthID:       rec.AuthID,
		Email:        rec.Email,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    rec.ExpiresAt,
		CreatedAt:    rec.CreatedAt,
		LastSeen:     rec.LastSeen,
		StoreUntil:   time.Now().Add(s.sessionTTL),
	}

	_, err := s.client.Collection(s.sessionCollection).Doc(rec.Key).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (s *FirestoreStorage) GetSession(ctx context.Context, key string) (*SessionRecord, error) {
	snap, err := s.client.Collection(s.sessionCollection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	if time.Now().After(doc.StoreUntil) {
		if _, err := snap.Ref.Delete(ctx); err != nil {
			log.LogWarnWithFields("storage", "Failed to delete expired session", map[string]any{
				"error": err.Error(),
			})
		}
		return nil, ErrSessionNotFound
	}

	return &SessionRecord{
		Key:          doc.Key,
		AuthID:       doc.AuthID,
		Email:        doc.Email,
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
		ExpiresAt:    doc.ExpiresAt,
		CreatedAt:    doc.CreatedAt,
		LastSeen:     doc.LastSeen,
	}, nil
}

func (s *FirestoreStorage) DeleteSession(ctx context.Context, key string) error {
	_, err := s.client.Collection(s.sessionCollection).Doc(key).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *FirestoreStorage) ListActiveSessions(ctx context.Context) ([]SessionRecord, error) {
	iter := s.client.Collection(s.sessionCollection).Documents(ctx)
	defer iter.Stop()

	now := time.Now()
	var out []SessionRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating sessions: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			log.LogWarnWithFields("storage", "Skipping undecodable session document", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		if now.After(doc.StoreUntil) {
			continue
		}
		out = append(out, SessionRecord{
			Key:          doc.Key,
			AuthID:       doc.AuthID,
			Email:        doc.Email,
			AccessToken:  doc.AccessToken,
			RefreshToken: doc.RefreshToken,
			ExpiresAt:    doc.ExpiresAt,
			CreatedAt:    doc.CreatedAt,
			LastSeen:     doc.LastSeen,
		})
	}
	return out, nil
}

func (s *FirestoreStorage) PutRelayTarget(ctx context.Context, id, target string, ttl time.Duration) error {
	_, err := s.client.Collection(s.relayCollection).Doc(id).Set(ctx, relayDoc{
		Target:    target,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("writing relay target: %w", err)
	}
	return nil
}

// TakeRelayTarget reads and deletes the target in one transaction so two
// concurrent callbacks cannot both consume it.
func (s *FirestoreStorage) TakeRelayTarget(ctx context.Context, id string) (string, error) {
	ref := s.client.Collection(s.relayCollection).Doc(id)

	var target string
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrRelayTargetNotFound
		}
		if err != nil {
			return err
		}

		var doc relayDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decoding relay target: %w", err)
		}
		if err := tx.Delete(ref); err != nil {
			return err
		}
		if time.Now().After(doc.ExpiresAt) {
			return ErrRelayTargetNotFound
		}
		target = doc.Target
		return nil
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
