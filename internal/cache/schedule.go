package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"freightgraph/internal/errs"
	"freightgraph/internal/metrics"
)

const (
	NamespaceSea        = "sea_schedules"
	NamespaceAir        = "air_schedules"
	NamespaceDepartures = "port_departures"
)

// ScheduleCache is the typed front of a Store. Backend failures never reach
// callers: a read error is a miss and a write error is logged.
type ScheduleCache struct {
	store Store
	log   *zap.Logger
}

func NewScheduleCache(store Store, log *zap.Logger) *ScheduleCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduleCache{store: store, log: log}
}

// ScheduleKey builds mode|origin|destination|windowStart|windowEnd.
func ScheduleKey(mode, origin, destination string, windowStart, windowEnd time.Time) string {
	return strings.Join([]string{
		mode,
		strings.ToUpper(origin),
		strings.ToUpper(destination),
		windowStart.UTC().Format(time.DateOnly),
		windowEnd.UTC().Format(time.DateOnly),
	}, "|")
}

// Lookup decodes the cached value for key into out and reports whether it was found.
func (c *ScheduleCache) Lookup(ctx context.Context, ns, key string, out any) bool {
	e, ok, err := c.store.Get(ctx, ns, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(ns, "error").Inc()
		c.log.Warn("cache read failed", zap.String("namespace", ns), zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues(ns, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(e.Value, out); err != nil {
		metrics.CacheLookups.WithLabelValues(ns, "error").Inc()
		c.log.Warn("cache entry undecodable", zap.String("namespace", ns), zap.String("key", key), zap.Error(err))
		return false
	}
	metrics.CacheLookups.WithLabelValues(ns, "hit").Inc()
	return true
}

func (c *ScheduleCache) Save(ctx context.Context, ns, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("namespace", ns), zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, ns, key, b); err != nil {
		c.log.Warn("cache write failed", zap.String("namespace", ns), zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every entry of a namespace.
func (c *ScheduleCache) Invalidate(ctx context.Context, ns string) error {
	if err := checkNamespace(ns); err != nil {
		return errs.Invalid("namespace", "%v", err)
	}
	if err := c.store.Clear(ctx, ns); err != nil {
		return fmt.Errorf("invalidate %s: %w", ns, err)
	}
	c.log.Info("cache namespace invalidated", zap.String("namespace", ns))
	return nil
}

func (c *ScheduleCache) Stats(ctx context.Context) (map[string]int, error) {
	return c.store.Stats(ctx)
}

func (c *ScheduleCache) Close() error { return c.store.Close() }
