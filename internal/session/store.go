// Package session holds the per-browser-session source of truth for "who is
// signed in and what is their role". Stores apply identity provider events in
// order and resolve the matching backend profile.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/ninacare/nina-front/internal/backend"
	"github.com/ninacare/nina-front/internal/idp"
	"github.com/ninacare/nina-front/internal/log"
	"github.com/ninacare/nina-front/internal/metrics"
)

// ProfileFetcher looks up the internal profile for an identity
type ProfileFetcher interface {
	GetProfile(ctx context.Context, authID, email string) (*backend.Profile, error)
}

// State is a snapshot of one browser session. Profile is only ever non-nil
// while Identity is non-nil. Loading is true from creation until the first
// resolution and again while a profile fetch for a new identity is in flight.
type State struct {
	Identity *idp.Identity
	Profile  *backend.Profile
	Loading  bool
}

// Role returns the profile role, or "" when onboarding is incomplete
func (s State) Role() backend.Role {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// Store tracks the session state for one browser session key.
//
// Events carry a monotonic sequence number assigned by the idp client. A
// profile fetch runs in its own goroutine and remembers the sequence it was
// started for; when it completes, the result is dropped unless that sequence
// is still the latest. Combined with cancel-on-supersede this guarantees the
// final state always corresponds to the last event received, never to a slow
// fetch from an earlier one.
type Store struct {
	key      string
	profiles ProfileFetcher

	mu          sync.Mutex
	state       State
	appliedSeq  uint64
	seeded      bool
	fetchCancel context.CancelFunc
	listeners   map[int]func(State)
	nextID      int
	closed      bool
}

func newStore(key string, profiles ProfileFetcher) *Store {
	return &Store{
		key:       key,
		profiles:  profiles,
		state:     State{Loading: true},
		listeners: make(map[int]func(State)),
	}
}

// State returns a snapshot of the current session state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a change listener. The returned function removes it.
// Listeners are invoked with a state snapshot and must not call back into the
// store synchronously.
func (s *Store) Subscribe(cb func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = cb

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Apply processes one session-change event. Events older than the last
// applied one are discarded.
func (s *Store) Apply(ev idp.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || ev.Seq <= s.appliedSeq {
		return
	}
	s.appliedSeq = ev.Seq
	s.seeded = true
	s.cancelFetchLocked()

	if ev.Identity == nil {
		// Signed out: clear everything, resolve immediately
		s.state = State{Loading: false}
		s.notifyLocked()
		return
	}

	// New or refreshed identity: drop a profile that belonged to someone else
	if s.state.Profile != nil && s.state.Identity != nil && s.state.Identity.ID != ev.Identity.ID {
		s.state.Profile = nil
	}
	s.state.Identity = ev.Identity
	s.state.Loading = true
	s.notifyLocked()

	s.startFetchLocked(ev.Seq, ev.Identity)
}

// seed installs the result of the initial session query. It loses to any
// event that arrived first.
func (s *Store) seed(identity *idp.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.seeded || s.appliedSeq > 0 {
		return
	}
	s.seeded = true

	if identity == nil {
		s.state = State{Loading: false}
		s.notifyLocked()
		return
	}

	s.state.Identity = identity
	s.state.Loading = true
	s.notifyLocked()
	s.startFetchLocked(0, identity)
}

// RefreshProfile re-fetches the profile for the current identity. No-op when
// signed out. The write is discarded if a session-change event lands while
// the fetch is in flight.
func (s *Store) RefreshProfile(ctx context.Context) error {
	s.mu.Lock()
	identity := s.state.Identity
	seq := s.appliedSeq
	s.mu.Unlock()

	if identity == nil {
		return nil
	}

	profile, err := s.profiles.GetProfile(ctx, identity.ID, identity.Email)
	s.finishFetch(seq, profile, err)
	return err
}

// startFetchLocked launches the profile fetch for an identity. Caller holds s.mu.
func (s *Store) startFetchLocked(seq uint64, identity *idp.Identity) {
	ctx, cancel := context.WithCancel(context.Background())
	s.fetchCancel = cancel

	go func() {
		profile, err := s.profiles.GetProfile(ctx, identity.ID, identity.Email)
		s.finishFetch(seq, profile, err)
	}()
}

// finishFetch applies a completed profile fetch unless a later event
// superseded it. Loading always resolves to false on the current sequence:
// a failed fetch routes like "no role" instead of hanging the caller.
func (s *Store) finishFetch(seq uint64, profile *backend.Profile, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.appliedSeq != seq || s.state.Identity == nil {
		metrics.ProfileFetches.WithLabelValues("superseded").Inc()
		return
	}

	switch {
	case err == nil:
		metrics.ProfileFetches.WithLabelValues("ok").Inc()
		s.state.Profile = profile
	case errors.Is(err, backend.ErrProfileNotFound):
		metrics.ProfileFetches.WithLabelValues("not_found").Inc()
		s.state.Profile = nil
	case errors.Is(err, context.Canceled):
		metrics.ProfileFetches.WithLabelValues("superseded").Inc()
		return
	default:
		metrics.ProfileFetches.WithLabelValues("error").Inc()
		log.LogErrorWithFields("session", "Profile fetch failed", map[string]any{
			"error": err.Error(),
		})
		s.state.Profile = nil
	}

	s.state.Loading = false
	s.notifyLocked()
}

func (s *Store) cancelFetchLocked() {
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}
}

func (s *Store) notifyLocked() {
	snapshot := s.state
	for _, cb := range s.listeners {
		cb(snapshot)
	}
}

func (s *Store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cancelFetchLocked()
	s.listeners = make(map[int]func(State))
}
