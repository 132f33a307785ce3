package agreement

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ActiveCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewActiveCache(client, time.Minute, nil), mr
}

func TestActiveCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	familyID := uuid.New()
	_, ok := cache.GetActive(ctx, familyID)
	require.False(t, ok)

	activatedAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	a := Agreement{
		ID:          uuid.New(),
		FamilyID:    familyID,
		Status:      StatusActive,
		Version:     "3",
		Terms:       "kind words at the dinner table",
		ActivatedAt: &activatedAt,
	}
	cache.SetActive(ctx, a)

	got, ok := cache.GetActive(ctx, familyID)
	require.True(t, ok)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, "3", got.Version)
	require.Equal(t, StatusActive, got.Status)
}

func TestActiveCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	a := Agreement{ID: uuid.New(), FamilyID: uuid.New(), Status: StatusActive}
	cache.SetActive(ctx, a)
	cache.Invalidate(ctx, a.FamilyID)

	_, ok := cache.GetActive(ctx, a.FamilyID)
	require.False(t, ok)
}

func TestActiveCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	a := Agreement{ID: uuid.New(), FamilyID: uuid.New(), Status: StatusActive}
	cache.SetActive(ctx, a)
	mr.FastForward(2 * time.Minute)

	_, ok := cache.GetActive(ctx, a.FamilyID)
	require.False(t, ok)
}

func TestActiveCacheNilSafe(t *testing.T) {
	var cache *ActiveCache
	ctx := context.Background()
	_, ok := cache.GetActive(ctx, uuid.New())
	require.False(t, ok)
	cache.SetActive(ctx, Agreement{})
	cache.Invalidate(ctx, uuid.New())
}
