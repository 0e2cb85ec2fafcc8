package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*mr.Miniredis, *RedisRepository) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	return m, NewRedisRepository(client, 0)
}

func TestRedisRepository_CreateGetDelete(t *testing.T) {
	m, repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "h1", Session{UserID: "u1"}))

	got, err := repo.Get(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "u1", got.UserID)

	members, err := m.Members("refreshToken:userID:u1")
	require.NoError(t, err)
	require.Equal(t, []string{"h1"}, members)
	require.Equal(t, RefreshTTL, m.TTL("refreshToken:h1"))

	require.NoError(t, repo.Delete(ctx, "u1", "h1"))
	got, err = repo.Get(ctx, "h1")
	require.NoError(t, err)
	require.Nil(t, got)
	require.False(t, m.Exists("refreshToken:userID:u1"))
}

func TestRedisRepository_TTLExpiry(t *testing.T) {
	m, repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, "h2", Session{UserID: "u2"}))

	m.FastForward(RefreshTTL + time.Second)

	got, err := repo.Get(ctx, "h2")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_CorruptPayload(t *testing.T) {
	m, repo := newTestRepo(t)
	require.NoError(t, m.Set("refreshToken:bad", "{not json"))

	_, err := repo.Get(context.Background(), "bad")
	require.ErrorIs(t, err, ErrCorruptSession)
}

func TestRedisRepository_RotateSwapsHashes(t *testing.T) {
	m, repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, "old", Session{UserID: "u1"}))

	ok, err := repo.Rotate(ctx, "u1", "old", "new")
	require.NoError(t, err)
	require.True(t, ok)

	require.False(t, m.Exists("refreshToken:old"))
	require.True(t, m.Exists("refreshToken:new"))
	require.Equal(t, RefreshTTL, m.TTL("refreshToken:new"))
	members, err := m.Members("refreshToken:userID:u1")
	require.NoError(t, err)
	require.Equal(t, []string{"new"}, members)

	// the old hash is gone, a second rotation must not resurrect anything
	ok, err = repo.Rotate(ctx, "u1", "old", "other")
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, m.Exists("refreshToken:other"))
}

func TestRedisRepository_ConcurrentRotateSingleWinner(t *testing.T) {
	_, repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, "old", Session{UserID: "u1"}))

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.Rotate(ctx, "u1", "old", "new-"+string(rune('a'+i)))
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	require.Equal(t, 1, wins)

	hashes, err := repo.Hashes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, hashes, 1)
}

func TestRedisRepository_DeleteAll(t *testing.T) {
	m, repo := newTestRepo(t)
	ctx := context.Background()
	for _, h := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, h, Session{UserID: "u1"}))
	}
	require.NoError(t, repo.Create(ctx, "z", Session{UserID: "u2"}))

	n, err := repo.DeleteAll(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, n)
	for _, h := range []string{"a", "b", "c"} {
		require.False(t, m.Exists("refreshToken:"+h))
	}
	require.False(t, m.Exists("refreshToken:userID:u1"))
	require.True(t, m.Exists("refreshToken:z"))
}
