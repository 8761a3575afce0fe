package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/config"
)

type mapStore map[string][]byte

func (m mapStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m[key] = value
	return nil
}

func (m mapStore) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mapStore{}
	type snapshot struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}

	require.NoError(t, SetJSON(ctx, store, OrderKey(7), snapshot{ID: 7, Status: "QUOTED"}, time.Minute))
	assert.Contains(t, store, "orders:7")

	var got snapshot
	require.NoError(t, GetJSON(ctx, store, OrderKey(7), &got))
	assert.Equal(t, snapshot{ID: 7, Status: "QUOTED"}, got)

	assert.ErrorIs(t, GetJSON(ctx, store, OrderKey(8), &got), ErrCacheMiss)

	store["orders:9"] = []byte("{")
	err := GetJSON(ctx, store, OrderKey(9), &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestNilStoreIsAlwaysMiss(t *testing.T) {
	var v struct{}
	assert.ErrorIs(t, GetJSON(context.Background(), nil, "k", &v), ErrCacheMiss)
	assert.NoError(t, SetJSON(context.Background(), nil, "k", v, 0))
}

func TestNewStoreSelectsDriver(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	store, err := NewStore(lc, config.Config{Cache: config.Cache{Driver: "noop"}}, zap.NewNop())
	require.NoError(t, err)
	_, err = store.Get(context.Background(), OrderKey(1))
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = NewStore(lc, config.Config{Cache: config.Cache{Driver: "memcached"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestRedisKeyNamespace(t *testing.T) {
	assert.Equal(t, "taller:orders:1", (&redisStore{namespace: "taller"}).key(OrderKey(1)))
	assert.Equal(t, "orders:1", (&redisStore{}).key(OrderKey(1)))
}
