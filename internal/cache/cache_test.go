package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/linkup/linkup/backend/go-services/pkg/metrics"
)

type item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func newTestCache(t *testing.T) (*mr.Miniredis, *Cache) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, New(redis.NewClient(&redis.Options{Addr: m.Addr()}))
}

func TestReadThroughHitsStoreOnce(t *testing.T) {
	m, c := newTestCache(t)
	ctx := context.Background()
	k := CommentsOnPost("p1")

	calls := 0
	load := func(context.Context) ([]item, error) {
		calls++
		return []item{{ID: "c1", Text: "hi"}}, nil
	}

	first, err := ReadThrough(ctx, c, k, load)
	require.NoError(t, err)
	second, err := ReadThrough(ctx, c, k, load)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
	require.Equal(t, 60*time.Second, m.TTL("commentsOnPost:p1"))
}

func TestReadThroughZeroKeySkipsCache(t *testing.T) {
	m, c := newTestCache(t)
	calls := 0
	load := func(context.Context) (string, error) { calls++; return "x", nil }

	for i := 0; i < 2; i++ {
		_, err := ReadThrough(context.Background(), c, Key{}, load)
		require.NoError(t, err)
	}
	require.Equal(t, 2, calls)
	require.Empty(t, m.Keys())
}

func TestReadThroughCorruptEntryIsMiss(t *testing.T) {
	m, c := newTestCache(t)
	k := Post("p1")
	require.NoError(t, m.Set(k.Name, "{broken"))

	before := testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("post", "corrupt"))
	got, err := ReadThrough(context.Background(), c, k, func(context.Context) (item, error) {
		return item{ID: "p1"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "p1", got.ID)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("post", "corrupt")))

	// repaired by the load
	v, err := m.Get(k.Name)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"p1","text":""}`, v)
}

func TestReadThroughLoadErrorNotCached(t *testing.T) {
	m, c := newTestCache(t)
	boom := errors.New("rpc timeout")
	_, err := ReadThrough(context.Background(), c, FeedPosts("u1"), func(context.Context) ([]item, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, m.Exists("userFeedPosts:u1"))
}

func TestReadThroughRedisDownStillServes(t *testing.T) {
	m, c := newTestCache(t)
	m.Close()
	got, err := ReadThrough(context.Background(), c, Post("p1"), func(context.Context) (item, error) {
		return item{ID: "p1"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "p1", got.ID)
}

func TestNilCacheLoads(t *testing.T) {
	var c *Cache
	got, err := ReadThrough(context.Background(), c, Post("p1"), func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, got)
	c.Invalidate(context.Background(), Post("p1"))
}

func TestCountThroughZeroIsHit(t *testing.T) {
	_, c := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (int64, error) { calls++; return 0, nil }

	n, err := CountThrough(ctx, c, LikesCountOnPost("p1"), load)
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = CountThrough(ctx, c, LikesCountOnPost("p1"), load)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 1, calls)
}

func TestTTLExpiryForcesReload(t *testing.T) {
	m, c := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (int64, error) { calls++; return int64(calls), nil }

	_, err := CountThrough(ctx, c, UnreadNotificationCount("u1"), load)
	require.NoError(t, err)
	m.FastForward(61 * time.Second)
	n, err := CountThrough(ctx, c, UnreadNotificationCount("u1"), load)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}
