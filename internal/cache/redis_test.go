package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (f *fakeStore) Get(ctx context.Context, k string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if f.getErr != nil {
		cmd.SetErr(f.getErr)
		return cmd
	}
	v, ok := f.data[k]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeStore) Set(ctx context.Context, k string, v any, ttl time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	switch val := v.(type) {
	case []byte:
		f.data[k] = string(val)
	case string:
		f.data[k] = val
	}
	f.ttls[k] = ttl
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeStore) SetNX(ctx context.Context, k string, v any, ttl time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, ok := f.data[k]; ok {
		cmd.SetVal(false)
		return cmd
	}
	f.data[k] = "1"
	f.ttls[k] = ttl
	cmd.SetVal(true)
	return cmd
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestRedisCache_GetMissAndHit(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newWithStore(store)

	_, ok, err := c.Get(ctx, "stats:admin")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "stats:admin", []byte(`{"totalBookings":3}`), time.Minute))
	assert.Equal(t, time.Minute, store.ttls["tourbook:stats:admin"])

	got, ok, err := c.Get(ctx, "stats:admin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"totalBookings":3}`, string(got))
}

func TestRedisCache_GetError(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection reset")
	c := newWithStore(store)

	_, ok, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisCache_SetNXClaimsOnce(t *testing.T) {
	ctx := context.Background()
	c := newWithStore(newFakeStore())

	first, err := c.SetNX(ctx, "stripe:event:evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := c.SetNX(ctx, "stripe:event:evt_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	require.NoError(t, c.Del(ctx, "stripe:event:evt_1"))
	again, err := c.SetNX(ctx, "stripe:event:evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)

	_, err = New(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestRedisCache_CloseWithoutClient(t *testing.T) {
	assert.NoError(t, newWithStore(newFakeStore()).Close())
}
