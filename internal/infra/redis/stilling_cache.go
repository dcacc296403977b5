package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/stilling"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	stillingKeyPrefix       = "kandidatvarsel:stilling"
	defaultStillingCacheTTL = 10 * time.Minute
)

var _ stilling.Lookup = (*CachedStillingLookup)(nil)

// CachedStillingLookup keeps stilling titles in Redis in front of another
// lookup. Redis failures fall through to the origin.
type CachedStillingLookup struct {
	client goredis.Cmdable
	origin stilling.Lookup
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedStillingLookup(client goredis.Cmdable, origin stilling.Lookup, ttl time.Duration, logger *zap.Logger) (*CachedStillingLookup, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if origin == nil {
		return nil, fmt.Errorf("origin lookup is required")
	}
	if ttl <= 0 {
		ttl = defaultStillingCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CachedStillingLookup{client: client, origin: origin, ttl: ttl, logger: logger}, nil
}

func (c *CachedStillingLookup) Get(ctx context.Context, stillingID string) (*stilling.Info, error) {
	key := stillingKey(stillingID)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var info stilling.Info
		if jsonErr := json.Unmarshal(cached, &info); jsonErr == nil {
			return &info, nil
		}
		c.logger.Warn("discarding unreadable cached stilling", zap.String("stillingId", stillingID))
	case !errors.Is(err, goredis.Nil):
		c.logger.Warn("stilling cache read failed", zap.String("stillingId", stillingID), zap.Error(err))
	}

	info, err := c.origin.Get(ctx, stillingID)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(info); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("stilling cache write failed", zap.String("stillingId", stillingID), zap.Error(setErr))
		}
	}

	return info, nil
}

func stillingKey(stillingID string) string {
	return fmt.Sprintf("%s:%s", stillingKeyPrefix, stillingID)
}
