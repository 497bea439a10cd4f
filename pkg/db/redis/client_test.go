package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbredis "tracker/pkg/db/redis"
)

func TestNewClient_Success(t *testing.T) {
	s := miniredis.RunT(t)

	cfg := dbredis.DefaultConfig()
	cfg.Addr = s.Addr()

	client, err := dbredis.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.Equal(t, "v", mustGet(t, s, "k"))
}

func mustGet(t *testing.T, s *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := s.Get(key)
	require.NoError(t, err)
	return v
}

func TestNewClient_ConnectionFailure(t *testing.T) {
	cfg := dbredis.Config{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	}

	client, err := dbredis.NewClient(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), dbredis.ErrorFailedToConnect)
}

func TestNewClient_CanceledContext(t *testing.T) {
	s := miniredis.RunT(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, err := dbredis.NewClient(ctx, dbredis.Config{Addr: s.Addr()})
	assert.Error(t, err)
	assert.Nil(t, client)
}
