package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/cache"
	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/session"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Close() })

	return session.NewRedisStore(rc, ttl), mr
}

func TestStores_RoundTrip(t *testing.T) {
	redisStore, _ := newRedisStore(t, 0)
	stores := map[string]session.Store{
		"memory": session.NewMemoryStore(),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			fresh, err := store.Load(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, session.StateIdle, fresh.State)

			s := &session.Session{
				State: session.StateProfileCity,
				Draft: session.ProfileDraft{Age: 25, Gender: "female"},
				Search: session.SearchContext{
					Type: session.SearchCity, IDs: []int64{3, 1, 2}, Cursor: 1,
				},
			}
			require.NoError(t, store.Save(ctx, 1, s))

			// the store must not alias the caller's copy
			s.Search.IDs[0] = 99

			got, err := store.Load(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, session.StateProfileCity, got.State)
			assert.Equal(t, 25, got.Draft.Age)
			assert.Equal(t, []int64{3, 1, 2}, got.Search.IDs)

			next, ok := got.Search.Next()
			assert.True(t, ok)
			assert.Equal(t, int64(1), next)

			got.Reset()
			require.NoError(t, store.Save(ctx, 1, got))
			again, err := store.Load(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, session.New(), again)

			require.NoError(t, store.Save(ctx, 2, &session.Session{State: session.StateContactAdmin}))
			require.NoError(t, store.Delete(ctx, 2))
			gone, err := store.Load(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, session.StateIdle, gone.State)
		})
	}
}

// A random search starts with no preloaded ids; the session must survive
// so next_profile can continue it.
func TestStores_KeepRandomSearch(t *testing.T) {
	redisStore, _ := newRedisStore(t, 0)
	stores := map[string]session.Store{
		"memory": session.NewMemoryStore(),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := session.New()
			s.Search.Type = session.SearchRandom
			assert.False(t, s.Empty())
			require.NoError(t, store.Save(ctx, 7, s))

			got, err := store.Load(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, session.StateIdle, got.State)
			assert.Equal(t, session.SearchRandom, got.Search.Type)

			got.Reset()
			assert.True(t, got.Empty())
		})
	}
}

func TestRedisStore_TTLAndCorruption(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)

	require.NoError(t, store.Save(ctx, 7, &session.Session{State: session.StateAdminBanID}))
	assert.Equal(t, time.Minute, mr.TTL("session:7"))

	mr.FastForward(2 * time.Minute)
	s, err := store.Load(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, s.State)

	require.NoError(t, mr.Set("session:8", `{"state":"NOPE"}`))
	s, err = store.Load(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, s.State)
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	mr.Close()

	_, err := store.Load(context.Background(), 1)
	assert.Error(t, err)
}

func TestState_Wizard(t *testing.T) {
	wizard := []session.State{
		session.StateProfileAge, session.StateProfileBio, session.StateAddMainPhoto,
		session.StateAdvancedSearchCityFree, session.StateContactAdmin, session.StateAdminUnbanID,
	}
	for _, s := range wizard {
		assert.True(t, s.Wizard(), s)
	}
	for _, s := range []session.State{session.StateIdle, session.StateAwaitingCityQuery, session.StateViewUserGallery} {
		assert.False(t, s.Wizard(), s)
	}
	assert.Len(t, session.States, 18)
	assert.False(t, session.State("BOGUS").Valid())
}

func TestLocker_SerializesPerUser(t *testing.T) {
	l := session.NewLocker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(1)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, l.Len())
}

func TestLocker_DifferentUsersDoNotBlock(t *testing.T) {
	l := session.NewLocker()
	unlockA := l.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another user blocked")
	}
}
