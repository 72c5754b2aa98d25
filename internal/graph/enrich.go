package graph

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freightgraph/internal/model"
)

// USD per km, drawn uniformly per edge.
var costPerKm = map[model.Mode][2]float64{
	model.ModeRoad: {1.0, 2.0},
	model.ModeSea:  {0.05, 0.15},
	model.ModeAir:  {3.0, 5.0},
}

const delayWorkers = 8

// enrich fills cost, weather, hub delay and the predicted figures of every
// edge. Costs are drawn in edge order so a fixed seed gives a fixed graph.
// Weather scales duration, emissions and cost by the severity at the edge
// midpoint; the source hub delay is then added to the duration route search
// weighs.
func (bl *build) enrich(ctx context.Context) {
	bl.acc.mu.Lock()
	edges := bl.acc.edges
	nodes := make(map[string]model.Node, len(bl.acc.nodes))
	for id, n := range bl.acc.nodes {
		nodes[id] = n
	}
	bl.acc.mu.Unlock()

	for i := range edges {
		e := &edges[i]
		r := costPerKm[e.Mode]
		e.Cost = e.DistanceKm * (r[0] + bl.rng.Float64()*(r[1]-r[0]))

		src, dst := nodes[e.Source], nodes[e.Target]
		if sev := bl.weather.Severity((src.Lat+dst.Lat)/2, (src.Lng+dst.Lng)/2); sev > 0 {
			fd, fc := model.WeatherFactors(sev)
			e.WeatherImpact = sev
			e.DurationHours *= fd
			e.EmissionsTons *= fd
			e.Cost *= fc
		}
		if d := bl.hubDelay[e.Source]; d > 0 {
			e.HubDelayHours = d
			e.DurationHours += d
		}
	}

	var g errgroup.Group
	g.SetLimit(delayWorkers)
	for i := range edges {
		g.Go(func() error {
			e := &edges[i]
			delay, err := bl.deps.Delay.Predict(ctx, *e)
			if err != nil {
				bl.acc.failure()
				bl.log.Debug("delay prediction failed", zap.String("edge", e.ID), zap.Error(err))
				delay = 0
			}
			e.DelayMinutes = delay
			e.PredictedDuration = e.DurationHours + delay/60
			if e.DepartureTime != nil {
				e.PredictedArrivalTime = ptr(e.DepartureTime.Add(time.Duration(e.PredictedDuration * float64(time.Hour))))
			}
			return nil
		})
	}
	_ = g.Wait()
}
