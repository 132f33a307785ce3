package agreement

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ActiveCache is a read-through Redis cache for the per-family active
// agreement. It is advisory: the repository remains the source of truth and
// every activation or archive invalidates the family's entry.
type ActiveCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewActiveCache constructs the cache.
func NewActiveCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ActiveCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActiveCache{client: client, ttl: ttl, logger: logger}
}

func activeKey(familyID uuid.UUID) string {
	return "homepact:family:" + familyID.String() + ":active"
}

// GetActive returns the cached active agreement when present.
func (c *ActiveCache) GetActive(ctx context.Context, familyID uuid.UUID) (Agreement, bool) {
	if c == nil || c.client == nil {
		return Agreement{}, false
	}
	data, err := c.client.Get(ctx, activeKey(familyID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("active cache get", slog.Any("error", err))
		}
		return Agreement{}, false
	}
	var a Agreement
	if err := json.Unmarshal(data, &a); err != nil {
		c.logger.Warn("active cache decode", slog.Any("error", err))
		return Agreement{}, false
	}
	return a, true
}

// SetActive stores the active agreement.
func (c *ActiveCache) SetActive(ctx context.Context, a Agreement) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		c.logger.Warn("active cache encode", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, activeKey(a.FamilyID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("active cache set", slog.Any("error", err))
	}
}

// Invalidate drops the family's entry.
func (c *ActiveCache) Invalidate(ctx context.Context, familyID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, activeKey(familyID)).Err(); err != nil {
		c.logger.Warn("active cache invalidate", slog.Any("error", err))
	}
}
