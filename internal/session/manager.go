package session

import (
	"context"
	"sync"

	"github.com/ninacare/nina-front/internal/idp"
	"github.com/ninacare/nina-front/internal/log"
)

// Manager owns one Store per browser session. It is constructed once at
// process start, registers a single listener on the identity provider's
// event stream, and dispatches each event to the store it belongs to.
// Close unsubscribes the listener and tears down every store.
type Manager struct {
	idp      *idp.Client
	profiles ProfileFetcher
	unsub    func()

	mu     sync.Mutex
	stores map[string]*Store
	closed bool
}

// NewManager creates the manager and subscribes to session-change events
func NewManager(client *idp.Client, profiles ProfileFetcher) *Manager {
	m := &Manager{
		idp:      client,
		profiles: profiles,
		stores:   make(map[string]*Store),
	}
	m.unsub = client.OnSessionChange(m.dispatch)
	return m
}

func (m *Manager) dispatch(ev idp.Event) {
	store := m.storeFor(ev.Key, false)
	if store == nil {
		return
	}
	store.Apply(ev)
}

// storeFor returns the store for a session key, creating it if needed.
// When seedNew is true a newly created store runs the initial mount sequence;
// stores created by an incoming event get their state from that event instead.
func (m *Manager) storeFor(key string, seedNew bool) *Store {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	store, ok := m.stores[key]
	if !ok {
		store = newStore(key, m.profiles)
		m.stores[key] = store
	}
	m.mu.Unlock()

	if !ok && !seedNew {
		// Created on behalf of an event; mark the initial query as done so
		// the event about to be applied is authoritative.
		store.seed(nil)
	}
	return store
}

// Get returns the session store for a browser session key, creating and
// mounting it on first access: query the current session once, then fetch
// the matching profile. Change events keep it current afterwards.
func (m *Manager) Get(ctx context.Context, key string) *Store {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		detached := newStore(key, m.profiles)
		detached.seed(nil) // resolves empty instead of loading forever
		return detached
	}
	store, ok := m.stores[key]
	if !ok {
		store = newStore(key, m.profiles)
		m.stores[key] = store
	}
	m.mu.Unlock()

	if !ok {
		identity, err := m.idp.GetSession(ctx, key)
		if err != nil {
			log.LogWarnWithFields("session", "Initial session query failed", map[string]any{
				"error": err.Error(),
			})
		}
		store.seed(identity)
	}
	return store
}

// Drop removes and closes the store for a session key
func (m *Manager) Drop(key string) {
	m.mu.Lock()
	store, ok := m.stores[key]
	delete(m.stores, key)
	m.mu.Unlock()

	if ok {
		store.close()
	}
}

// Close unsubscribes from the provider event stream and closes all stores
func (m *Manager) Close() {
	m.unsub()

	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[string]*Store)
	m.closed = true
	m.mu.Unlock()

	for _, store := range stores {
		store.close()
	}
}
