package providers

import (
	"context"
	"time"

	"freightgraph/internal/cache"
	"freightgraph/internal/model"
)

// CachedSea consults the schedule cache before the wrapped provider. Only
// successful responses are stored; empty results are cached too.
type CachedSea struct {
	Cache    *cache.ScheduleCache
	Schedule SeaSchedules
	Ports    PortSchedules
}

func (c *CachedSea) SeaSchedule(ctx context.Context, fromPort, toPort string, date time.Time) ([]model.Voyage, error) {
	key := cache.ScheduleKey("sea", fromPort, toPort, date, date)
	var out []model.Voyage
	if c.Cache.Lookup(ctx, cache.NamespaceSea, key, &out) {
		return out, nil
	}
	out, err := c.Schedule.SeaSchedule(ctx, fromPort, toPort, date)
	if err != nil {
		return nil, err
	}
	c.Cache.Save(ctx, cache.NamespaceSea, key, nonNil(out))
	return out, nil
}

func (c *CachedSea) Departures(ctx context.Context, port string, from, to time.Time) ([]model.Voyage, error) {
	key := cache.ScheduleKey("sea", port, "*", from, to)
	var out []model.Voyage
	if c.Cache.Lookup(ctx, cache.NamespaceDepartures, key, &out) {
		return out, nil
	}
	out, err := c.Ports.Departures(ctx, port, from, to)
	if err != nil {
		return nil, err
	}
	c.Cache.Save(ctx, cache.NamespaceDepartures, key, nonNil(out))
	return out, nil
}

type CachedAir struct {
	Cache    *cache.ScheduleCache
	Schedule AirSchedules
}

func (c *CachedAir) AirSchedule(ctx context.Context, fromAirport, toAirport string, date time.Time) ([]model.Flight, error) {
	key := cache.ScheduleKey("air", fromAirport, toAirport, date, date)
	var out []model.Flight
	if c.Cache.Lookup(ctx, cache.NamespaceAir, key, &out) {
		return out, nil
	}
	out, err := c.Schedule.AirSchedule(ctx, fromAirport, toAirport, date)
	if err != nil {
		return nil, err
	}
	c.Cache.Save(ctx, cache.NamespaceAir, key, nonNil(out))
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
