package storage

import (
	"context"
	"sync"
	"time"
)

// Ensure MemoryStorage implements the Storage interface
var _ Storage = (*MemoryStorage)(nil)

type relayEntry struct {
	target    string
	expiresAt time.Time
}

// MemoryStorage is the default single-instance store. Sessions and relay
// targets live in process memory and are lost on restart.
type MemoryStorage struct {
	sessionTTL time.Duration

	sessionsMutex sync.RWMutex
	sessions      map[string]*SessionRecord
	sessionExpiry map[string]time.Time

	relayMutex sync.Mutex
	relay      map[string]relayEntry
}

// NewMemoryStorage creates a new in-memory storage instance
func NewMemoryStorage(sessionTTL time.Duration) *MemoryStorage {
	return &MemoryStorage{
		sessionTTL:    sessionTTL,
		sessions:      make(map[string]*SessionRecord),
		sessionExpiry: make(map[string]time.Time),
		relay:         make(map[string]relayEntry),
	}
}

func (s *MemoryStorage) SetSession(_ context.Context, rec SessionRecord) error {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()

	copied := rec
	s.sessions[rec.Key] = &copied
	s.sessionExpiry[rec.Key] = time.Now().Add(s.sessionTTL)
	return nil
}

func (s *MemoryStorage) GetSession(_ context.Context, key string) (*SessionRecord, error) {
	s.sessionsMutex.RLock()
	rec, ok := s.sessions[key]
	expiry := s.sessionExpiry[key]
	s.sessionsMutex.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(expiry) {
		s.sessionsMutex.Lock()
		delete(s.sessions, key)
		delete(s.sessionExpiry, key)
		s.sessionsMutex.Unlock()
		return nil, ErrSessionNotFound
	}

	copied := *rec
	return &copied, nil
}

func (s *MemoryStorage) DeleteSession(_ context.Context, key string) error {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()

	delete(s.sessions, key)
	delete(s.sessionExpiry, key)
	return nil
}

func (s *MemoryStorage) ListActiveSessions(_ context.Context) ([]SessionRecord, error) {
	s.sessionsMutex.RLock()
	defer s.sessionsMutex.RUnlock()

	now := time.Now()
	out := make([]SessionRecord, 0, len(s.sessions))
	for key, rec := range s.sessions {
		if now.After(s.sessionExpiry[key]) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *MemoryStorage) PutRelayTarget(_ context.Context, id, target string, ttl time.Duration) error {
	s.relayMutex.Lock()
	defer s.relayMutex.Unlock()

	s.relay[id] = relayEntry{
		target:    target,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemoryStorage) TakeRelayTarget(_ context.Context, id string) (string, error) {
	s.relayMutex.Lock()
	defer s.relayMutex.Unlock()

	entry, ok := s.relay[id]
	if !ok {
		return "", ErrRelayTargetNotFound
	}
	delete(s.relay, id) // read-once
	if time.Now().After(entry.expiresAt) {
		return "", ErrRelayTargetNotFound
	}
	return entry.target, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
