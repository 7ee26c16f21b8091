package rediscache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/session"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *SessionStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewSessionStore(client, "session")
}

func newLoginSession() session.Session {
	return session.Session{
		UserID:    "u1",
		TenantID:  "t1",
		Purpose:   session.PurposeLogin,
		Role:      "teacher",
		Name:      "Mwalimu",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSessionStore_CreateGet(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	s, err := store.Create(ctx, newLoginSession(), time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.True(t, mr.Exists("session:"+s.ID))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	// ids are never reused
	s2, err := store.Create(ctx, newLoginSession(), time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, s2.ID)

	_, err = store.Get(ctx, "unknown")
	assert.Equal(t, session.ErrNotFound, err)
	_, err = store.Get(ctx, "")
	assert.Equal(t, session.ErrNotFound, err)

	_, err = store.Create(ctx, newLoginSession(), 0)
	assert.Error(t, err)
}

func TestSessionStore_TTL(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()
	ttl := 24 * time.Hour

	s, err := store.Create(ctx, newLoginSession(), ttl)
	require.NoError(t, err)

	got, err := store.TTL(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, ttl, got)

	mr.FastForward(ttl - time.Second)
	_, err = store.Get(ctx, s.ID)
	assert.NoError(t, err, "session must live for its whole ttl")

	mr.FastForward(time.Second)
	_, err = store.Get(ctx, s.ID)
	assert.Equal(t, session.ErrNotFound, err)
	_, err = store.TTL(ctx, s.ID)
	assert.Equal(t, session.ErrNotFound, err)
}

func TestSessionStore_UpdateKeepsTTL(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	s, err := store.Create(ctx, session.Session{UserID: "u1", TenantID: "t1", Purpose: session.PurposeOTPVerification, OTP: "123456"}, 5*time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	s.Attempts = 3
	require.NoError(t, store.Update(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Attempts)

	ttl, err := store.TTL(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, ttl)

	mr.FastForward(3 * time.Minute)
	assert.Equal(t, session.ErrNotFound, store.Update(ctx, s), "update must not resurrect an expired session")
	assert.False(t, mr.Exists("session:"+s.ID))
}

func TestSessionStore_DestroyOnce(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	s, err := store.Create(ctx, newLoginSession(), time.Hour)
	require.NoError(t, err)

	ok, err := store.Destroy(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Destroy(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Destroy(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_ConcurrentDestroy(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	s, err := store.Create(ctx, newLoginSession(), time.Hour)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		wins  int32
		start = make(chan struct{})
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if ok, err := store.Destroy(ctx, s.ID); err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}
