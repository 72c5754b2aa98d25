package graph

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freightgraph/internal/model"
)

// stitchSea fetches voyages between every origin and destination seaport
// pair and adds their legs, ship journeys and layover connections.
func (bl *build) stitchSea(ctx context.Context, originPorts []model.Hub, dest sideHubs) {
	if bl.deps.Sea == nil {
		return
	}
	for _, from := range originPorts {
		for _, to := range dest.seaports {
			if from.Code == to.Code {
				continue
			}
			voyages, err := bl.deps.Sea.SeaSchedule(ctx, from.Code, to.Code, bl.start)
			if err != nil {
				bl.acc.failure()
				bl.log.Warn("sea schedule fetch failed",
					zap.String("from", from.Code), zap.String("to", to.Code), zap.Error(err))
				continue
			}
			for _, v := range voyages {
				if !v.Complete() || !bl.acc.claimVoyage(v.DedupKey()) {
					continue
				}
				legs := bl.seaLegs(ctx, v)
				if len(legs) == 0 {
					continue
				}
				bl.journey(model.JourneyShip, legs)
				bl.layovers(ctx, legs, dest.airports)
			}
		}
	}
}

// layovers connects every intermediate port call of a voyage to flights
// towards the destination. Calls are processed in batches; the members of a
// batch run concurrently and batches run one after another.
func (bl *build) layovers(ctx context.Context, legs []model.LegDetail, destAirports []model.Hub) {
	if len(destAirports) == 0 || bl.deps.Air == nil {
		return
	}
	// legs[i].To is an intermediate call for every i but the last.
	calls := make([]int, 0, len(legs)-1)
	for i := 0; i+1 < len(legs); i++ {
		calls = append(calls, i)
	}
	size := bl.opts.LayoverBatchSize
	if size < 1 {
		size = 1
	}
	for lo := 0; lo < len(calls); lo += size {
		hi := min(lo+size, len(calls))
		var g errgroup.Group
		for _, i := range calls[lo:hi] {
			g.Go(func() error {
				bl.layover(ctx, legs[:i+1], destAirports)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// layover handles one port call; inbound is the sea part of the journey up to
// and including the call.
func (bl *build) layover(ctx context.Context, inbound []model.LegDetail, destAirports []model.Hub) {
	last := inbound[len(inbound)-1]
	port, ok := bl.acc.node(last.To)
	if !ok {
		return
	}
	arrival := last.ArrivalTime
	airports, err := bl.deps.Hubs.Nearest(ctx, port.Lat, port.Lng, model.NodeAirport, bl.opts.LayoverAirports)
	if err != nil {
		bl.acc.failure()
		bl.log.Warn("layover airport lookup failed", zap.String("port", port.ID), zap.Error(err))
		return
	}
	day := arrival.Truncate(24 * time.Hour)
	dest, _ := bl.acc.node(DestinationID)

	for _, ap := range airports {
		bl.acc.addNode(ap.Node(), true)
		apNode, _ := bl.acc.node(ap.Code)
		transfer, ok := bl.ensureRoad(port.ID, ap.Code)
		if !ok {
			continue
		}
		toAirport := roadSegment(transfer, port, apNode, arrival)
		earliest := toAirport.ArrivalTime.Add(bl.opts.TransferBuffer)

		for _, da := range destAirports {
			if da.Code == ap.Code {
				continue
			}
			flights, err := bl.deps.Air.AirSchedule(ctx, ap.Code, da.Code, day)
			if err != nil {
				bl.acc.failure()
				bl.log.Warn("layover flight fetch failed",
					zap.String("from", ap.Code), zap.String("to", da.Code), zap.Error(err))
				continue
			}
			for _, f := range flights {
				if f.DepartureTime.Before(earliest) {
					continue
				}
				air, ok := bl.airLeg(ctx, f)
				if !ok {
					continue
				}
				segs := make([]model.LegDetail, 0, len(inbound)+3)
				segs = append(segs, inbound...)
				segs = append(segs, toAirport, air)
				bl.journey(model.JourneyMultimodal, segs)

				lastMile, ok := bl.ensureRoad(da.Code, DestinationID)
				if !ok {
					continue
				}
				daNode, _ := bl.acc.node(da.Code)
				full := append(segs[:len(segs):len(segs)], roadSegment(lastMile, daNode, dest, air.ArrivalTime))
				bl.journey(model.JourneyMultimodal, full)
			}
		}
	}
}

// stitchAir adds direct flights between every origin and destination
// airport pair, one air journey per flight.
func (bl *build) stitchAir(ctx context.Context, originAirports, destAirports []model.Hub) {
	if bl.deps.Air == nil {
		return
	}
	for _, from := range originAirports {
		for _, to := range destAirports {
			if from.Code == to.Code {
				continue
			}
			flights, err := bl.deps.Air.AirSchedule(ctx, from.Code, to.Code, bl.start)
			if err != nil {
				bl.acc.failure()
				bl.log.Warn("air schedule fetch failed",
					zap.String("from", from.Code), zap.String("to", to.Code), zap.Error(err))
				continue
			}
			for _, f := range flights {
				seen := bl.acc.hasFlight(f.DedupKey())
				leg, ok := bl.airLeg(ctx, f)
				if !ok || seen {
					continue
				}
				bl.journey(model.JourneyAir, []model.LegDetail{leg})
			}
		}
	}
}
