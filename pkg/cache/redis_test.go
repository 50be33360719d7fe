package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a test Redis client using miniredis
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := &Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient("redis://"+mr.Addr(), nil)
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()))

	_, err = NewClient("not a url", nil)
	assert.Error(t, err)
}

func TestClient_SetGetDelete(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "test:key1", "value1", time.Hour))

	val, err := client.Get(ctx, "test:key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)

	require.NoError(t, client.Delete(ctx, "test:key1"))
	_, err = client.Get(ctx, "test:key1")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestClient_SetNX(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "webhook:evt_1", "1", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "webhook:evt_1", "1", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must fail")

	ttl, err := client.TTL(ctx, "webhook:evt_1")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)

	mr.FastForward(25 * time.Hour)
	ok, err = client.SetNX(ctx, "webhook:evt_1", "1", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "claim is available again after expiry")
}

func TestJSONHelpers(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Total int `json:"total"`
	}

	require.NoError(t, SetJSON(ctx, client, "analytics:dashboard:1", payload{Total: 3}, time.Minute))

	var got payload
	require.NoError(t, GetJSON(ctx, client, "analytics:dashboard:1", &got))
	assert.Equal(t, 3, got.Total)

	mr.FastForward(2 * time.Minute)
	err := GetJSON(ctx, client, "analytics:dashboard:1", &got)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestJSONHelpers_NilCache(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, SetJSON(ctx, nil, "k", 1, time.Minute))

	var v int
	assert.ErrorIs(t, GetJSON(ctx, nil, "k", &v), domain.ErrCacheMiss)
}
