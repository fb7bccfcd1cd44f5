package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseClient(t *testing.T, client Client) {
	t.Helper()
	ctx := context.Background()

	_, err := client.Get(ctx, "page:1")
	assert.True(t, IsNotFound(err))

	require.NoError(t, client.Set(ctx, "page:1", "one", 0))
	require.NoError(t, client.Set(ctx, "page:2", "two", time.Minute))

	got, err := client.Get(ctx, "page:1")
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	require.NoError(t, client.Delete(ctx, "page:1", "missing"))
	_, err = client.Get(ctx, "page:1")
	assert.True(t, IsNotFound(err))

	require.NoError(t, client.Flush(ctx))
	_, err = client.Get(ctx, "page:2")
	assert.True(t, IsNotFound(err))

	assert.NoError(t, client.Ping(ctx))
}

func TestMemoryClient(t *testing.T) {
	t.Parallel()
	exerciseClient(t, NewMemory("roadwiki", time.Minute))
}

func TestMemoryClientExpires(t *testing.T) {
	t.Parallel()

	client := NewMemory("", 0)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "k", "v", 10*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, err := client.Get(ctx, "k")
		return IsNotFound(err)
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryFlushKeepsOtherPrefixes(t *testing.T) {
	t.Parallel()

	shared := NewMemory("a", 0).(*memoryClient)
	other := &memoryClient{prefix: "b", c: shared.c}
	ctx := context.Background()

	require.NoError(t, shared.Set(ctx, "k", "1", 0))
	require.NoError(t, other.Set(ctx, "k", "2", 0))
	require.NoError(t, shared.Flush(ctx))

	got, err := other.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestNewSelectsDriver(t *testing.T) {
	t.Parallel()

	client, err := New(Config{Driver: " Memory "})
	require.NoError(t, err)
	assert.IsType(t, &memoryClient{}, client)

	client, err = New(Config{Driver: DriverNone})
	require.NoError(t, err)
	assert.Equal(t, Noop{}, client)

	_, err = New(Config{Driver: "memcached"})
	assert.Error(t, err)
}

func TestNoopAlwaysMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	require.NoError(t, Noop{}.Set(ctx, "k", "v", 0))
	_, err := Noop{}.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestRedisClient(t *testing.T) {
	addr := os.Getenv("ROADWIKI_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROADWIKI_TEST_REDIS_ADDR not set")
	}

	client, err := New(Config{Driver: DriverRedis, Addr: addr, Prefix: "roadwiki-test-" + uuid.NewString()})
	require.NoError(t, err)
	defer client.Close()

	exerciseClient(t, client)
}

func TestRedisUnreachable(t *testing.T) {
	t.Parallel()

	_, err := NewRedis(Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
