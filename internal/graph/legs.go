package graph

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"freightgraph/internal/geo"
	"freightgraph/internal/model"
	"freightgraph/internal/providers"
)

// Nominal speeds used when a leg has a distance but no schedule, or a
// schedule but no coordinates.
const (
	seaSpeedKph = 30
	airSpeedKph = 800
)

func hours(d time.Duration) float64 { return d.Hours() }

func ptr[T any](v T) *T { return &v }

// roadLeg builds the road edge a→b. Both nodes must be located.
func (bl *build) roadLeg(a, b string) (model.Edge, bool) {
	na, okA := bl.acc.node(a)
	nb, okB := bl.acc.node(b)
	if !okA || !okB || a == b {
		return model.Edge{}, false
	}
	km := geo.HaversineKm(na.Lat, na.Lng, nb.Lat, nb.Lng)
	return model.Edge{
		ID:            bl.newID(),
		Source:        a,
		Target:        b,
		Mode:          model.ModeRoad,
		DistanceKm:    km,
		DurationHours: km / bl.opts.RoadSpeedKph,
		EmissionsTons: providers.FallbackTons(model.ModeRoad, km),
		Detail:        model.RoadDetail{},
	}, true
}

// ensureRoad adds the road edge a→b once and returns it.
func (bl *build) ensureRoad(a, b string) (model.Edge, bool) {
	e, ok := bl.roadLeg(a, b)
	if !ok {
		return e, false
	}
	bl.acc.addEdge("road|"+a+"|"+b, e)
	return e, true
}

func roadSegment(e model.Edge, from, to model.Node, depart time.Time) model.LegDetail {
	return model.LegDetail{
		Mode:          model.ModeRoad,
		From:          from.ID,
		To:            to.ID,
		FromName:      from.Name,
		ToName:        to.Name,
		DepartureTime: depart,
		ArrivalTime:   depart.Add(time.Duration(e.DurationHours * float64(time.Hour))),
		DurationHours: e.DurationHours,
		DistanceKm:    e.DistanceKm,
		Detail:        model.RoadDetail{},
	}
}

// stopNode registers a port call as a seaport node, located when either the
// stop or an earlier hub lookup supplied coordinates.
func (bl *build) stopNode(s model.Stop) model.Node {
	n := model.Node{ID: s.Port, Name: s.Name, Kind: model.NodeSeaport}
	if n.Name == "" {
		n.Name = s.Port
	}
	located := s.Lat != nil && s.Lng != nil && geo.ValidCoord(*s.Lat, *s.Lng)
	if located {
		n.Lat, n.Lng = *s.Lat, *s.Lng
	}
	bl.acc.addNode(n, located)
	if known, ok := bl.acc.node(s.Port); ok {
		return known
	}
	return n
}

func stopDeparture(s model.Stop, fallback time.Time) time.Time {
	switch {
	case s.ETD != nil:
		return s.ETD.UTC()
	case s.ETA != nil:
		return s.ETA.UTC()
	}
	return fallback.UTC()
}

func stopArrival(s model.Stop, fallback time.Time) time.Time {
	switch {
	case s.ETA != nil:
		return s.ETA.UTC()
	case s.ETD != nil:
		return s.ETD.UTC()
	}
	return fallback.UTC()
}

// seaLegs turns a voyage into one sea edge and leg per consecutive stop pair.
// Emissions come from one estimator call for the whole voyage, shared out by
// distance.
func (bl *build) seaLegs(ctx context.Context, v model.Voyage) []model.LegDetail {
	stops := v.Stops()
	detail := model.SeaDetail{ShipID: v.ShipID, ShipName: v.ShipName, VoyageCode: v.VoyageCode}
	nodes := make([]model.Node, len(stops))
	for i, s := range stops {
		nodes[i] = bl.stopNode(s)
	}

	legs := make([]model.LegDetail, 0, len(stops)-1)
	var totalKm float64
	for i := 0; i+1 < len(stops); i++ {
		from, to := nodes[i], nodes[i+1]
		if from.ID == to.ID {
			continue
		}
		dep := stopDeparture(stops[i], v.DepartureTime)
		arr := stopArrival(stops[i+1], v.ArrivalTime)
		if arr.Before(dep) {
			arr = dep
		}
		dur := hours(arr.Sub(dep))
		var km float64
		if bl.acc.isLocated(from.ID) && bl.acc.isLocated(to.ID) {
			km = geo.HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
		} else {
			km = dur * seaSpeedKph
		}
		if dur == 0 && km > 0 {
			dur = km / seaSpeedKph
			arr = dep.Add(time.Duration(dur * float64(time.Hour)))
		}
		totalKm += km
		legs = append(legs, model.LegDetail{
			Mode:          model.ModeSea,
			From:          from.ID,
			To:            to.ID,
			FromName:      from.Name,
			ToName:        to.Name,
			DepartureTime: dep,
			ArrivalTime:   arr,
			DurationHours: dur,
			DistanceKm:    km,
			Detail:        detail,
		})
	}

	est, err := bl.deps.Emissions.Sea(ctx, v.FromPort, v.ToPort, v.Line)
	useEstimate := err == nil && totalKm > 0
	if err != nil && !errors.Is(err, providers.ErrNoEstimate) {
		bl.log.Debug("sea emissions estimate unavailable", zap.String("voyage", v.VoyageCode), zap.Error(err))
	}

	for i, l := range legs {
		tons := providers.FallbackTons(model.ModeSea, l.DistanceKm)
		if useEstimate {
			tons = est.TotalCO2Tons * l.DistanceKm / totalKm
		}
		e := model.Edge{
			ID:            bl.newID(),
			Source:        l.From,
			Target:        l.To,
			Mode:          model.ModeSea,
			DistanceKm:    l.DistanceKm,
			DurationHours: l.DurationHours,
			EmissionsTons: tons,
			DepartureTime: ptr(l.DepartureTime),
			ArrivalTime:   ptr(l.ArrivalTime),
			Detail:        detail,
		}
		if bl.acc.addEdge("sea|"+v.DedupKey()+"|"+l.From+"|"+l.To, e) {
			bl.acc.addLegs(legs[i])
		}
	}
	return legs
}

// airLeg adds the air edge for f when it has not been seen in this build and
// returns the flight as a leg either way.
func (bl *build) airLeg(ctx context.Context, f model.Flight) (model.LegDetail, bool) {
	from, okF := bl.acc.node(f.FromAirport)
	to, okT := bl.acc.node(f.ToAirport)
	if !okF || !okT || from.ID == to.ID || f.ArrivalTime.Before(f.DepartureTime) {
		return model.LegDetail{}, false
	}
	dep, arr := f.DepartureTime.UTC(), f.ArrivalTime.UTC()
	km := geo.HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	dur := hours(arr.Sub(dep))
	if dur == 0 {
		dur = km / airSpeedKph
		arr = dep.Add(time.Duration(dur * float64(time.Hour)))
	}
	detail := model.AirDetail{Carrier: f.Carrier, FlightNumber: f.FlightNumber}
	leg := model.LegDetail{
		Mode:          model.ModeAir,
		From:          from.ID,
		To:            to.ID,
		FromName:      from.Name,
		ToName:        to.Name,
		DepartureTime: dep,
		ArrivalTime:   arr,
		DurationHours: dur,
		DistanceKm:    km,
		Detail:        detail,
	}
	if !bl.acc.claimFlight(f.DedupKey()) {
		return leg, true
	}
	tons, err := bl.deps.Emissions.Air(ctx, from.ID, to.ID, bl.opts.CargoTons)
	if err != nil {
		tons = providers.FallbackTons(model.ModeAir, km)
	}
	bl.acc.addEdge("air|"+f.DedupKey(), model.Edge{
		ID:            bl.newID(),
		Source:        from.ID,
		Target:        to.ID,
		Mode:          model.ModeAir,
		DistanceKm:    km,
		DurationHours: dur,
		EmissionsTons: tons,
		DepartureTime: ptr(dep),
		ArrivalTime:   ptr(arr),
		Detail:        detail,
	})
	bl.acc.addLegs(leg)
	return leg, true
}

// journey validates and records a journey built from segments.
func (bl *build) journey(kind model.JourneyKind, segments []model.LegDetail) {
	j := model.Journey{ID: bl.newID(), Kind: kind, Segments: segments}
	for _, s := range segments {
		if len(j.Modes) == 0 || j.Modes[len(j.Modes)-1] != s.Mode {
			j.Modes = append(j.Modes, s.Mode)
		}
	}
	if err := j.Validate(); err != nil {
		bl.acc.dropJourney()
		bl.log.Debug("journey dropped", zap.Error(err))
		return
	}
	j.TotalDuration = j.Span()
	bl.acc.addJourney(j)
}
