package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninacare/nina-front/internal/backend"
	"github.com/ninacare/nina-front/internal/idp"
)

// fakeFetcher serves canned profiles keyed by auth ID. When block is set,
// GetProfile hangs until the channel closes or the context is canceled.
type fakeFetcher struct {
	mu       sync.Mutex
	profiles map[string]*backend.Profile
	err      error
	block    chan struct{}
	calls    int
}

func (f *fakeFetcher) GetProfile(ctx context.Context, authID, email string) (*backend.Profile, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	err := f.err
	profile := f.profiles[authID]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, backend.ErrProfileNotFound
	}
	return profile, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func signedIn(seq uint64, id, email string) idp.Event {
	return idp.Event{
		Seq:      seq,
		Type:     idp.EventSignedIn,
		Key:      "sess-1",
		Identity: &idp.Identity{ID: id, Email: email},
	}
}

func signedOut(seq uint64) idp.Event {
	return idp.Event{Seq: seq, Type: idp.EventSignedOut, Key: "sess-1"}
}

func awaitResolved(t *testing.T, store *Store) State {
	t.Helper()
	require.Eventually(t, func() bool {
		return !store.State().Loading
	}, 2*time.Second, 5*time.Millisecond)
	return store.State()
}

func TestStoreStartsLoading(t *testing.T) {
	store := newStore("sess-1", &fakeFetcher{})
	st := store.State()
	assert.True(t, st.Loading)
	assert.Nil(t, st.Identity)
}

func TestStoreSeedEmpty(t *testing.T) {
	store := newStore("sess-1", &fakeFetcher{})
	store.seed(nil)

	st := store.State()
	assert.False(t, st.Loading)
	assert.Nil(t, st.Identity)
	assert.Nil(t, st.Profile)
}

func TestStoreSeedWithIdentityFetchesProfile(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*backend.Profile{
		"user-1": {AuthID: "user-1", Role: backend.RoleFamily, FullName: "Ana"},
	}}
	store := newStore("sess-1", fetcher)

	store.seed(&idp.Identity{ID: "user-1", Email: "ana@example.com"})

	st := awaitResolved(t, store)
	require.NotNil(t, st.Identity)
	require.NotNil(t, st.Profile)
	assert.Equal(t, backend.RoleFamily, st.Role())
}

func TestStoreSeedLosesToEarlierEvent(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*backend.Profile{
		"user-2": {AuthID: "user-2", Role: backend.RoleNanny},
	}}
	store := newStore("sess-1", fetcher)

	store.Apply(signedIn(1, "user-2", "b@example.com"))
	store.seed(&idp.Identity{ID: "user-1", Email: "a@example.com"})

	st := awaitResolved(t, store)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "user-2", st.Identity.ID)
}

func TestStoreDiscardsStaleEvents(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*backend.Profile{
		"user-2": {AuthID: "user-2", Role: backend.RoleNanny},
	}}
	store := newStore("sess-1", fetcher)

	store.Apply(signedIn(5, "user-2", "b@example.com"))
	store.Apply(signedIn(3, "user-1", "a@example.com")) // stale, must be dropped

	st := awaitResolved(t, store)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "user-2", st.Identity.ID)
	assert.Equal(t, backend.RoleNanny, st.Role())
}

func TestStoreSignOutDuringPendingFetchWins(t *testing.T) {
	block := make(chan struct{})
	fetcher := &fakeFetcher{
		profiles: map[string]*backend.Profile{
			"user-1": {AuthID: "user-1", Role: backend.RoleFamily},
		},
		block: block,
	}
	store := newStore("sess-1", fetcher)

	store.Apply(signedIn(1, "user-1", "a@example.com"))
	assert.True(t, store.State().Loading)

	store.Apply(signedOut(2))
	close(block)

	// The slow fetch result must never overwrite the signed-out state
	time.Sleep(50 * time.Millisecond)
	st := store.State()
	assert.False(t, st.Loading)
	assert.Nil(t, st.Identity)
	assert.Nil(t, st.Profile)
}

func TestStoreIdentityChangeDropsForeignProfile(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*backend.Profile{
		"user-1": {AuthID: "user-1", Role: backend.RoleFamily},
		"user-2": {AuthID: "user-2", Role: backend.RoleNanny},
	}}
	store := newStore("sess-1", fetcher)

	store.Apply(signedIn(1, "user-1", "a@example.com"))
	awaitResolved(t, store)

	store.Apply(signedIn(2, "user-2", "b@example.com"))

	// While the second fetch is in flight the old profile must not show
	st := store.State()
	if st.Profile != nil {
		assert.Equal(t, "user-2", st.Profile.AuthID)
	}

	st = awaitResolved(t, store)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "user-2", st.Profile.AuthID)
}

func TestStoreFetchFailureResolvesWithoutProfile(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("backend down")}
	store := newStore("sess-1", fetcher)

	store.Apply(signedIn(1, "user-1", "a@example.com"))

	st := awaitResolved(t, store)
	require.NotNil(t, st.Identity)
	assert.Nil(t, st.Profile)
	assert.Equal(t, backend.Role(""), st.Role())
}

func TestStoreRefreshProfile(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*backend.Profile{}}
	store := newStore("sess-1", fetcher)

	store.Apply(signedIn(1, "user-1", "a@example.com"))
	st := awaitResolved(t, store)
	assert.Nil(t, st.Profile)

	fetcher.mu.Lock()
	fetcher.profiles["user-1"] = &backend.Profile{AuthID: "user-1", Role: backend.RoleFamily}
	fetcher.mu.Unlock()

	require.NoError(t, store.RefreshProfile(context.Background()))
	st = store.State()
	require.NotNil(t, st.Profile)
	assert.Equal(t, backend.RoleFamily, st.Role())
}

func TestStoreRefreshProfileNoopWhenSignedOut(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newStore("sess-1", fetcher)
	store.seed(nil)

	require.NoError(t, store.RefreshProfile(context.Background()))
	assert.Zero(t, fetcher.callCount())
}

func TestStoreSubscribeNotifies(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*backend.Profile{
		"user-1": {AuthID: "user-1", Role: backend.RoleFamily},
	}}
	store := newStore("sess-1", fetcher)

	var mu sync.Mutex
	var snapshots []State
	unsub := store.Subscribe(func(st State) {
		mu.Lock()
		snapshots = append(snapshots, st)
		mu.Unlock()
	})
	defer unsub()

	store.Apply(signedIn(1, "user-1", "a@example.com"))
	awaitResolved(t, store)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snapshots)
	last := snapshots[len(snapshots)-1]
	assert.False(t, last.Loading)
	require.NotNil(t, last.Profile)
}
