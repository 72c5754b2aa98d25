// Package graph assembles a multimodal road/air/sea graph between two
// coordinates from hub lookups and carrier schedules.
package graph

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freightgraph/internal/errs"
	"freightgraph/internal/geo"
	"freightgraph/internal/metrics"
	"freightgraph/internal/model"
	"freightgraph/internal/providers"
)

const (
	OriginID      = "origin"
	DestinationID = "destination"
)

type Options struct {
	// Deadline bounds the whole build; calls still pending when it passes
	// fail and the graph built so far is returned.
	Deadline         time.Duration
	HubsPerSide      int
	LayoverAirports  int
	LayoverBatchSize int
	RoadSpeedKph     float64
	TransferBuffer   time.Duration
	CargoTons        float64
	// Seed drives the cost draws; zero seeds from the clock.
	Seed int64
	// HubDelayHours adds a fixed delay to every edge leaving a hub.
	HubDelayHours map[string]float64
	// Disruptions and Weather apply to every build; a request may add its own.
	Disruptions []model.Disruption
	Weather     *model.WeatherGrid
}

func DefaultOptions() Options {
	return Options{
		Deadline:         5 * time.Minute,
		HubsPerSide:      3,
		LayoverAirports:  2,
		LayoverBatchSize: 3,
		RoadSpeedKph:     60,
		TransferBuffer:   2 * time.Hour,
		CargoTons:        1,
	}
}

type Deps struct {
	Hubs      providers.LocationResolver
	Sea       providers.SeaSchedules
	Air       providers.AirSchedules
	Emissions providers.EmissionsEstimator
	Delay     providers.DelayEstimator
}

type Request struct {
	Origin      model.GeoPoint `json:"origin"`
	Destination model.GeoPoint `json:"destination"`
	StartDate   time.Time      `json:"startDate"`
	// Disruptions add to the builder's; Weather cells override the builder's.
	Disruptions []model.Disruption `json:"disruptions,omitempty"`
	Weather     *model.WeatherGrid `json:"weather,omitempty"`
}

type Builder struct {
	deps  Deps
	log   *zap.Logger
	opts  Options
	newID func() string
}

func NewBuilder(deps Deps, log *zap.Logger, opts Options) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Emissions == nil {
		deps.Emissions = providers.NoEmissions{}
	}
	if deps.Delay == nil {
		deps.Delay = providers.NewStochasticDelay(opts.Seed)
	}
	return &Builder{deps: deps, log: log, opts: opts, newID: uuid.NewString}
}

// build holds the state of one Build call.
type build struct {
	*Builder
	acc   *accumulator
	rng   *rand.Rand
	start time.Time
	log   *zap.Logger

	hubDelay map[string]float64
	blocked  map[string]bool
	weather  *model.WeatherGrid
}

type sideHubs struct {
	airports []model.Hub
	seaports []model.Hub
}

func validate(req Request) error {
	var ve errs.ValidationErrors
	if !geo.ValidCoord(req.Origin.Lat, req.Origin.Lng) {
		ve = append(ve, &errs.ValidationError{Field: "origin", Message: "lat must be in [-90,90] and lng in [-180,180]"})
	}
	if !geo.ValidCoord(req.Destination.Lat, req.Destination.Lng) {
		ve = append(ve, &errs.ValidationError{Field: "destination", Message: "lat must be in [-90,90] and lng in [-180,180]"})
	}
	if req.StartDate.IsZero() {
		ve = append(ve, &errs.ValidationError{Field: "startDate", Message: "required"})
	}
	for i, d := range req.Disruptions {
		if d.Hub == "" {
			ve = append(ve, &errs.ValidationError{Field: fmt.Sprintf("disruptions[%d].hub", i), Message: "required"})
		}
		if d.DelayHours < 0 {
			ve = append(ve, &errs.ValidationError{Field: fmt.Sprintf("disruptions[%d].delayHours", i), Message: "must not be negative"})
		}
	}
	if err := req.Weather.Validate(); err != nil {
		ve = append(ve, &errs.ValidationError{Field: "weather", Message: err.Error()})
	}
	if len(ve) > 0 {
		return ve
	}
	return nil
}

// Build assembles the graph for req. Provider failures degrade the graph but
// never fail the build; only invalid input or a broken internal invariant
// returns an error.
func (b *Builder) Build(ctx context.Context, req Request) (*model.Graph, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	seed := b.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	bl := &build{
		Builder: b,
		acc:     newAccumulator(),
		rng:     rand.New(rand.NewSource(seed)),
		start:   req.StartDate.UTC(),
		log:     b.log.With(zap.String("buildId", b.newID())),
		weather: b.opts.Weather.Merge(req.Weather),
	}
	bl.hubDelay, bl.blocked = model.HubConditions(b.opts.HubDelayHours, append(append([]model.Disruption{}, b.opts.Disruptions...), req.Disruptions...))
	bctx, cancel := context.WithTimeout(ctx, b.opts.Deadline)
	defer cancel()

	bl.acc.addNode(model.Node{ID: OriginID, Name: "Origin", Kind: model.NodeOrigin, Lat: req.Origin.Lat, Lng: req.Origin.Lng}, true)
	bl.acc.addNode(model.Node{ID: DestinationID, Name: "Destination", Kind: model.NodeDestination, Lat: req.Destination.Lat, Lng: req.Destination.Lng}, true)

	origin, dest := bl.resolveHubs(bctx, req)
	bl.connectHubs(origin, dest)
	bl.stitchAir(bctx, origin.airports, dest.airports)
	bl.stitchSea(bctx, origin.seaports, dest)
	bl.roadMesh()
	bl.enrich(bctx)

	deadline := errors.Is(bctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	g, err := bl.finish(deadline, bl.blocked)
	if err != nil {
		metrics.GraphBuilds.WithLabelValues("error").Inc()
		return nil, err
	}
	result := "ok"
	if deadline || g.Stats.ProviderFailures > 0 {
		result = "partial"
	}
	metrics.GraphBuilds.WithLabelValues(result).Inc()
	metrics.GraphEdges.Observe(float64(len(g.Edges)))
	bl.log.Info("graph built",
		zap.Int("nodes", g.Stats.Nodes),
		zap.Int("edges", g.Stats.Edges),
		zap.Int("journeys", g.Stats.Journeys),
		zap.Int("providerFailures", g.Stats.ProviderFailures),
		zap.Int("journeysDropped", g.Stats.JourneysDropped),
		zap.Bool("deadlineExceeded", deadline),
	)
	return g, nil
}

// resolveHubs runs the four nearest-hub lookups concurrently.
func (bl *build) resolveHubs(ctx context.Context, req Request) (origin, dest sideHubs) {
	var g errgroup.Group
	lookup := func(p model.GeoPoint, kind model.NodeKind, out *[]model.Hub) {
		g.Go(func() error {
			hubs, err := bl.deps.Hubs.Nearest(ctx, p.Lat, p.Lng, kind, bl.opts.HubsPerSide)
			if err != nil {
				bl.acc.failure()
				bl.log.Warn("hub lookup failed", zap.String("kind", string(kind)), zap.Error(err))
				return nil
			}
			*out = hubs
			return nil
		})
	}
	lookup(req.Origin, model.NodeAirport, &origin.airports)
	lookup(req.Origin, model.NodeSeaport, &origin.seaports)
	lookup(req.Destination, model.NodeAirport, &dest.airports)
	lookup(req.Destination, model.NodeSeaport, &dest.seaports)
	_ = g.Wait()
	return origin, dest
}

// connectHubs adds hub nodes and the first and last mile road legs.
func (bl *build) connectHubs(origin, dest sideHubs) {
	for _, h := range append(append([]model.Hub{}, origin.airports...), origin.seaports...) {
		bl.acc.addNode(h.Node(), true)
		bl.ensureRoad(OriginID, h.Code)
	}
	for _, h := range append(append([]model.Hub{}, dest.airports...), dest.seaports...) {
		bl.acc.addNode(h.Node(), true)
		bl.ensureRoad(h.Code, DestinationID)
	}
}

// roadMesh adds a road edge for every ordered pair of located nodes that has
// no direct edge yet, so every node can reach every other.
func (bl *build) roadMesh() {
	nodes := bl.acc.nodeList()
	for _, a := range nodes {
		for _, b := range nodes {
			if a.ID == b.ID || bl.acc.hasDirect(a.ID, b.ID) {
				continue
			}
			bl.ensureRoad(a.ID, b.ID)
		}
	}
}

func (bl *build) finish(deadline bool, blocked map[string]bool) (*model.Graph, error) {
	a := bl.acc
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.edges {
		if e.Source == e.Target {
			return nil, &errs.ComputationError{Op: "build graph", Err: fmt.Errorf("edge %s is a self loop on %s", e.ID, e.Source)}
		}
		if _, ok := a.nodes[e.Source]; !ok {
			return nil, &errs.ComputationError{Op: "build graph", Err: fmt.Errorf("edge %s references unknown node %s", e.ID, e.Source)}
		}
		if _, ok := a.nodes[e.Target]; !ok {
			return nil, &errs.ComputationError{Op: "build graph", Err: fmt.Errorf("edge %s references unknown node %s", e.ID, e.Target)}
		}
	}
	g := &model.Graph{
		Nodes:      make([]model.Node, 0, len(a.order)),
		Edges:      a.edges,
		Journeys:   a.journeys,
		LegDetails: a.legs,
	}
	for _, id := range a.order {
		n := a.nodes[id]
		n.Blocked = blocked[id]
		g.Nodes = append(g.Nodes, n)
	}
	if g.Edges == nil {
		g.Edges = []model.Edge{}
	}
	if g.Journeys == nil {
		g.Journeys = []model.Journey{}
	}
	if g.LegDetails == nil {
		g.LegDetails = []model.LegDetail{}
	}
	g.Stats = model.GraphStats{
		Nodes:            len(g.Nodes),
		Edges:            len(g.Edges),
		Journeys:         len(g.Journeys),
		Voyages:          a.nVoyages,
		Flights:          a.nFlights,
		ProviderFailures: a.failures,
		JourneysDropped:  a.dropped,
		DeadlineExceeded: deadline,
	}
	return g, nil
}
