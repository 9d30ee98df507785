package savedjobs_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jobhack/web/internal/savedjobs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreToggle(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	s := savedjobs.NewRedisStore(rdb)

	saved, err := s.Toggle(ctx, "v1", 12)
	require.NoError(t, err)
	assert.True(t, saved)

	ok, err := s.IsSaved(ctx, "v1", 12)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("saved:v1"))

	saved, err = s.Toggle(ctx, "v1", 12)
	require.NoError(t, err)
	assert.False(t, saved)

	_, err = s.Toggle(ctx, "v1", 3)
	require.NoError(t, err)
	set, err := s.Saved(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, set.IDs())
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err := savedjobs.NewRedisStore(rdb).Saved(context.Background(), "v1")
	assert.Error(t, err)
}

func TestRedisStorePutIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	s := savedjobs.NewRedisStore(rdb)

	require.NoError(t, s.Put(ctx, "v1", 12, true))
	require.NoError(t, s.Put(ctx, "v1", 12, true))
	set, err := s.Saved(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []int{12}, set.IDs())

	require.NoError(t, s.Put(ctx, "v1", 12, false))
	require.NoError(t, s.Put(ctx, "v1", 12, false))
	ok, err := s.IsSaved(ctx, "v1", 12)
	require.NoError(t, err)
	assert.False(t, ok)
}
