package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	store, err := OpenSession(filepath.Join(t.TempDir(), "session.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestProxyRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	loaded, err := store.LoadProxy(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	sel := models.ProxySelection{
		Index:   4,
		Proxy:   "https://relay.test/",
		Latency: 230 * time.Millisecond,
	}
	require.NoError(t, store.SaveProxy(ctx, sel))

	loaded, err = store.LoadProxy(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 4, loaded.Index)
	assert.Equal(t, "https://relay.test/", loaded.Proxy)
	assert.Equal(t, 230*time.Millisecond, loaded.Latency)

	require.NoError(t, store.ClearProxy(ctx))
	loaded, err = store.LoadProxy(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestProxyExpiresAfterTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProxy(ctx, models.ProxySelection{Index: 2}))

	saved := time.Now()
	store.now = func() time.Time { return saved.Add(SessionTTL + time.Minute) }

	loaded, err := store.LoadProxy(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// The expired row was removed, so a rollback of the clock still finds
	// nothing.
	store.now = time.Now
	loaded, err = store.LoadProxy(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveProxySupersedesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProxy(ctx, models.ProxySelection{Index: 1, Proxy: "https://a.test/"}))
	require.NoError(t, store.SaveProxy(ctx, models.ProxySelection{Index: 7, Proxy: "https://b.test/"}))

	loaded, err := store.LoadProxy(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 7, loaded.Index)
	assert.Equal(t, "https://b.test/", loaded.Proxy)
}

func TestListingSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	loaded, err := store.LoadListings(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	price := 450.0
	listings := []models.ListingRecord{
		{ID: "0_100", AdNumber: "100", Description: "SkyWatcher 200P", Price: &price},
		{ID: "0_101", AdNumber: "101", Description: "Televue Panoptic"},
	}
	require.NoError(t, store.SaveListings(ctx, listings))

	loaded, err = store.LoadListings(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "0_100", loaded[0].ID)
	require.NotNil(t, loaded[0].Price)
	assert.Equal(t, 450.0, *loaded[0].Price)
	assert.Nil(t, loaded[1].Price)
}

func TestLoadPropagatesDatabaseErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Close())

	_, err := store.LoadProxy(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading working proxy")

	_, err = store.LoadListings(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading listing snapshot")
}

func TestListingSnapshotExpiresAfterTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveListings(ctx, []models.ListingRecord{{ID: "0_100"}}))

	saved := time.Now()
	store.now = func() time.Time { return saved.Add(SessionTTL + time.Minute) }

	loaded, err := store.LoadListings(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
