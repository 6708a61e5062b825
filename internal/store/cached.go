package store

import (
	"context"
	"encoding/json"
	"time"

	"calendar-service/internal/cache"
	"calendar-service/internal/calendar"
)

const configCachePrefix = "calconfig:"

// CachedConfigs decorates config resolution with a TTL cache, the hot lookup
// on every availability request. Negative results (ErrNotConfigured) are not
// cached.
type CachedConfigs struct {
	inner calendar.ConfigResolver
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedConfigs(inner calendar.ConfigResolver, c cache.Cache, ttl time.Duration) *CachedConfigs {
	return &CachedConfigs{inner: inner, cache: c, ttl: ttl}
}

func configKey(tenantID, agentID string) string {
	return configCachePrefix + tenantID + ":" + agentID
}

func (c *CachedConfigs) ActiveConfigByAgent(ctx context.Context, tenantID, agentID string) (*calendar.CalendarConfig, error) {
	key := configKey(tenantID, agentID)
	if raw, ok := c.cache.Get(key); ok {
		var cfg calendar.CalendarConfig
		if err := json.Unmarshal(raw, &cfg); err == nil {
			return &cfg, nil
		}
		c.cache.Delete(key)
	}

	cfg, err := c.inner.ActiveConfigByAgent(ctx, tenantID, agentID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(cfg); err == nil {
		c.cache.Set(key, raw, c.ttl)
	}
	return cfg, nil
}

// Invalidate drops one agent's cached config after a write.
func (c *CachedConfigs) Invalidate(tenantID, agentID string) {
	c.cache.Delete(configKey(tenantID, agentID))
}

// InvalidateAll drops every cached config; used after account-switch
// reconciliation, which can flip configs across many agents at once.
func (c *CachedConfigs) InvalidateAll() {
	c.cache.DeletePrefix(configCachePrefix)
}
