package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	_, ok, err := store.Get(ctx, "client-1", "user")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "client-1", "user", `{"username":"maria"}`))
	require.NoError(t, store.Set(ctx, "client-2", "user", `"pedro"`))

	value, ok, err := store.Get(ctx, "client-1", "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"username":"maria"}`, value)

	usage, err := store.Usage(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Items)
	assert.Equal(t, len("user")+len(`{"username":"maria"}`), usage.Bytes)

	require.NoError(t, store.Delete(ctx, "client-1", "user", "ficha"))
	_, ok, _ = store.Get(ctx, "client-1", "user")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "client-2", "user")
	assert.True(t, ok)
}

func TestMemoryStoreExpiresIdleScopes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "tab-1", "selectedFicha", "a"))
	now = now.Add(50 * time.Second)
	require.NoError(t, store.Set(ctx, "tab-1", "searchHistory", "b"))

	now = now.Add(50 * time.Second)
	_, ok, _ := store.Get(ctx, "tab-1", "selectedFicha")
	assert.True(t, ok, "writes refresh the whole scope")

	now = now.Add(time.Minute)
	_, ok, _ = store.Get(ctx, "tab-1", "searchHistory")
	assert.False(t, ok)
}

func TestMemoryStoreSweepRemovesAbandonedScopes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "tab-1", "selectedFicha", "a"))
	require.NoError(t, store.Set(ctx, "tab-2", "selectedFicha", "b"))
	now = now.Add(40 * time.Second)
	require.NoError(t, store.Set(ctx, "tab-3", "searchHistory", "c"))

	now = now.Add(30 * time.Second)
	assert.Equal(t, 2, store.Sweep())
	assert.Len(t, store.scopes, 1)

	_, ok, _ := store.Get(ctx, "tab-3", "searchHistory")
	assert.True(t, ok)
	assert.Zero(t, store.Sweep())

	durable := NewMemoryStore(0)
	require.NoError(t, durable.Set(ctx, "client-1", "user", "maria"))
	assert.Zero(t, durable.Sweep())
}
