package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"freightgraph/internal/errs"
	"freightgraph/internal/model"
	"freightgraph/internal/providers"
	"freightgraph/internal/route"
)

var day0 = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return day0.Add(d) }

func f64(v float64) *float64 { return &v }

func tm(t time.Time) *time.Time { return &t }

var (
	kochi     = model.GeoPoint{Lat: 9.97, Lng: 76.27}
	amsterdam = model.GeoPoint{Lat: 52.37, Lng: 4.89}
)

func testHubs() *providers.StaticHubs {
	return providers.NewStaticHubs([]model.Hub{
		{Code: "COK", Name: "Cochin International", Kind: model.NodeAirport, Lat: 10.15, Lng: 76.40},
		{Code: "AMS", Name: "Schiphol", Kind: model.NodeAirport, Lat: 52.31, Lng: 4.76},
		{Code: "DXB", Name: "Dubai International", Kind: model.NodeAirport, Lat: 25.25, Lng: 55.36},
		{Code: "INCOK", Name: "Kochi", Kind: model.NodeSeaport, Lat: 9.96, Lng: 76.27},
		{Code: "NLRTM", Name: "Rotterdam", Kind: model.NodeSeaport, Lat: 51.95, Lng: 4.14},
	})
}

type fakeSea struct {
	voyages map[string][]model.Voyage
	err     error
	block   bool
}

func (f *fakeSea) SeaSchedule(ctx context.Context, from, to string, _ time.Time) ([]model.Voyage, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.voyages[from+"-"+to], nil
}

type fakeAir struct {
	flights map[string][]model.Flight
}

func (f *fakeAir) AirSchedule(_ context.Context, from, to string, _ time.Time) ([]model.Flight, error) {
	return f.flights[from+"-"+to], nil
}

type fixedDelay float64

func (d fixedDelay) Predict(context.Context, model.Edge) (float64, error) { return float64(d), nil }

type seaOnlyEmissions struct{ total float64 }

func (seaOnlyEmissions) Air(context.Context, string, string, float64) (float64, error) {
	return 0, providers.ErrNoEstimate
}

func (s seaOnlyEmissions) Sea(context.Context, string, string, string) (providers.SeaEstimate, error) {
	return providers.SeaEstimate{TotalCO2Tons: s.total}, nil
}

// Kochi to Amsterdam: one direct flight, one voyage calling at Jebel Ali,
// and two onward flights from Dubai of which only one leaves late enough.
func scenario() Deps {
	return Deps{
		Hubs: testHubs(),
		Sea: &fakeSea{voyages: map[string][]model.Voyage{
			"INCOK-NLRTM": {{
				ShipID: "9811000", ShipName: "Ever Given", VoyageCode: "042W", Line: "EVERGREEN",
				FromPort: "INCOK", ToPort: "NLRTM",
				DepartureTime: at(48 * time.Hour), ArrivalTime: at(480 * time.Hour),
				Schedule: []model.Stop{
					{Port: "INCOK", ETD: tm(at(48 * time.Hour))},
					{Port: "AEJEA", Name: "Jebel Ali", Lat: f64(25.01), Lng: f64(55.06), ETA: tm(at(144 * time.Hour)), ETD: tm(at(168 * time.Hour))},
					{Port: "NLRTM", ETA: tm(at(480 * time.Hour))},
				},
			}},
		}},
		Air: &fakeAir{flights: map[string][]model.Flight{
			"COK-AMS": {{Carrier: "AI", FlightNumber: "AI131", FromAirport: "COK", ToAirport: "AMS", DepartureTime: at(34 * time.Hour), ArrivalTime: at(46 * time.Hour)}},
			"DXB-AMS": {
				{Carrier: "EK", FlightNumber: "EK147", FromAirport: "DXB", ToAirport: "AMS", DepartureTime: at(149 * time.Hour), ArrivalTime: at(156 * time.Hour)},
				{Carrier: "EK", FlightNumber: "EK149", FromAirport: "DXB", ToAirport: "AMS", DepartureTime: at(145 * time.Hour), ArrivalTime: at(152 * time.Hour)},
			},
		}},
		Emissions: seaOnlyEmissions{total: 2},
		Delay:     fixedDelay(30),
	}
}

func testOptions() Options {
	o := DefaultOptions()
	o.HubsPerSide = 1
	o.Seed = 7
	o.Deadline = 5 * time.Second
	return o
}

func request() Request {
	return Request{Origin: kochi, Destination: amsterdam, StartDate: day0}
}

func buildGraph(t *testing.T, deps Deps, opts Options) *model.Graph {
	t.Helper()
	g, err := NewBuilder(deps, zap.NewNop(), opts).Build(context.Background(), request())
	require.NoError(t, err)
	return g
}

func edgesBetween(g *model.Graph, src, dst string, mode model.Mode) []model.Edge {
	var out []model.Edge
	for _, e := range g.Edges {
		if e.Source == src && e.Target == dst && e.Mode == mode {
			out = append(out, e)
		}
	}
	return out
}

func TestBuildNodesAndEdgeEndpoints(t *testing.T) {
	g := buildGraph(t, scenario(), testOptions())

	idx := g.NodeIndex()
	for _, id := range []string{OriginID, DestinationID, "COK", "AMS", "INCOK", "NLRTM", "AEJEA", "DXB"} {
		assert.Contains(t, idx, id)
	}
	assert.Len(t, g.Nodes, 8)
	assert.Equal(t, len(g.Nodes), g.Stats.Nodes)
	assert.Equal(t, len(g.Edges), g.Stats.Edges)

	for _, e := range g.Edges {
		assert.Contains(t, idx, e.Source)
		assert.Contains(t, idx, e.Target)
		assert.NotEqual(t, e.Source, e.Target)
		assert.NotEmpty(t, e.ID)
		require.NotNil(t, e.Detail)
		assert.Equal(t, e.Mode, e.Detail.Mode())
	}
}

func TestBuildRoadMeshConnectsEveryPair(t *testing.T) {
	g := buildGraph(t, scenario(), testOptions())

	direct := map[[2]string]bool{}
	for _, e := range g.Edges {
		direct[[2]string{e.Source, e.Target}] = true
	}
	for _, a := range g.Nodes {
		for _, b := range g.Nodes {
			if a.ID != b.ID {
				assert.True(t, direct[[2]string{a.ID, b.ID}], "no edge %s→%s", a.ID, b.ID)
			}
		}
	}
	// The mesh never duplicates a scheduled leg with a road edge.
	assert.Empty(t, edgesBetween(g, "INCOK", "AEJEA", model.ModeRoad))
	assert.Len(t, edgesBetween(g, "INCOK", "AEJEA", model.ModeSea), 1)
}

func TestBuildSeaLegsFollowSchedule(t *testing.T) {
	g := buildGraph(t, scenario(), testOptions())

	first := edgesBetween(g, "INCOK", "AEJEA", model.ModeSea)
	second := edgesBetween(g, "AEJEA", "NLRTM", model.ModeSea)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.InDelta(t, 96, first[0].DurationHours, 1e-9)
	assert.InDelta(t, 312, second[0].DurationHours, 1e-9)
	assert.Equal(t, model.SeaDetail{ShipID: "9811000", ShipName: "Ever Given", VoyageCode: "042W"}, first[0].Detail)
	assert.InDelta(t, 2, first[0].EmissionsTons+second[0].EmissionsTons, 1e-9)
	assert.Equal(t, 1, g.Stats.Voyages)
}

func TestBuildJourneys(t *testing.T) {
	g := buildGraph(t, scenario(), testOptions())

	byKind := map[model.JourneyKind][]model.Journey{}
	for _, j := range g.Journeys {
		require.NoError(t, j.Validate())
		byKind[j.Kind] = append(byKind[j.Kind], j)
	}
	require.Len(t, byKind[model.JourneyAir], 1)
	require.Len(t, byKind[model.JourneyShip], 1)
	require.Len(t, byKind[model.JourneyMultimodal], 2)

	ship := byKind[model.JourneyShip][0]
	assert.Equal(t, []model.Mode{model.ModeSea}, ship.Modes)
	assert.Len(t, ship.Segments, 2)
	assert.InDelta(t, 432, ship.TotalDuration, 1e-9)

	modes := [][]model.Mode{}
	for _, j := range byKind[model.JourneyMultimodal] {
		modes = append(modes, j.Modes)
		assert.Equal(t, "EK147", j.Segments[2].Detail.(model.AirDetail).FlightNumber)
	}
	assert.ElementsMatch(t, [][]model.Mode{
		{model.ModeSea, model.ModeRoad, model.ModeAir},
		{model.ModeSea, model.ModeRoad, model.ModeAir, model.ModeRoad},
	}, modes)

	// EK149 leaves before the transfer from Jebel Ali could reach the airport.
	for _, e := range g.Edges {
		if d, ok := e.Detail.(model.AirDetail); ok {
			assert.NotEqual(t, "EK149", d.FlightNumber)
		}
	}
	assert.Equal(t, 2, g.Stats.Flights)
}

func edgeKey(e model.Edge) string {
	return fmt.Sprintf("%s|%s|%s|%v", e.Source, e.Target, e.Mode, e.DepartureTime)
}

func TestBuildEnrichment(t *testing.T) {
	base := buildGraph(t, scenario(), testOptions())
	baseDur := map[string]float64{}
	for _, e := range base.Edges {
		baseDur[edgeKey(e)] = e.DurationHours
	}

	opts := testOptions()
	opts.HubDelayHours = map[string]float64{"DXB": 3}
	g := buildGraph(t, scenario(), opts)

	for _, e := range g.Edges {
		r := costPerKm[e.Mode]
		assert.GreaterOrEqual(t, e.Cost, e.DistanceKm*r[0]-1e-9, e.Mode)
		assert.LessOrEqual(t, e.Cost, e.DistanceKm*r[1]+1e-9, e.Mode)
		assert.Equal(t, 30.0, e.DelayMinutes)
		assert.Zero(t, e.WeatherImpact)

		want := baseDur[edgeKey(e)]
		if e.Source == "DXB" {
			want += 3
			assert.Equal(t, 3.0, e.HubDelayHours)
		} else {
			assert.Zero(t, e.HubDelayHours)
		}
		assert.InDelta(t, want, e.DurationHours, 1e-9)
		assert.InDelta(t, want+0.5, e.PredictedDuration, 1e-9)
		if e.DepartureTime != nil {
			require.NotNil(t, e.PredictedArrivalTime)
			assert.WithinDuration(t, e.DepartureTime.Add(time.Duration((want+0.5)*float64(time.Hour))), *e.PredictedArrivalTime, time.Millisecond)
		} else {
			assert.Nil(t, e.PredictedArrivalTime)
		}
	}
}

func timeRoute(t *testing.T, g *model.Graph) route.Result {
	t.Helper()
	res, err := route.ShortestPath(g, OriginID, DestinationID, model.CriterionTime)
	require.NoError(t, err)
	require.True(t, res.Reachable())
	return res
}

func leavesHub(p []model.Edge, hub string) bool {
	for _, e := range p {
		if e.Source == hub {
			return true
		}
	}
	return false
}

func TestHubDelayChangesFastestRoute(t *testing.T) {
	calm := timeRoute(t, buildGraph(t, scenario(), testOptions()))
	require.True(t, leavesHub(calm.Path, "COK"))

	b := NewBuilder(scenario(), zap.NewNop(), testOptions())
	req := request()
	req.Disruptions = []model.Disruption{{Hub: "COK", Kind: "strike", Name: "ground handling strike", DelayHours: 200}}
	g, err := b.Build(context.Background(), req)
	require.NoError(t, err)

	delayed := timeRoute(t, g)
	assert.False(t, leavesHub(delayed.Path, "COK"))
	assert.Greater(t, float64(delayed.Distance), float64(calm.Distance))
	for _, e := range edgesBetween(g, "COK", "AMS", model.ModeAir) {
		assert.Equal(t, 200.0, e.HubDelayHours)
	}
}

func TestFixedHubDelayIsCapped(t *testing.T) {
	opts := testOptions()
	opts.HubDelayHours = map[string]float64{"COK": 100}
	g := buildGraph(t, scenario(), opts)
	edges := edgesBetween(g, "COK", "AMS", model.ModeAir)
	require.Len(t, edges, 1)
	assert.Equal(t, model.MaxHubDelayHours, edges[0].HubDelayHours)
	assert.InDelta(t, 12+model.MaxHubDelayHours, edges[0].DurationHours, 1e-9)
}

func TestBlockedHubIsAvoided(t *testing.T) {
	b := NewBuilder(scenario(), zap.NewNop(), testOptions())
	req := request()
	req.Disruptions = []model.Disruption{{Hub: "COK", Kind: "closure", Name: "runway closed", Blocked: true}}
	g, err := b.Build(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, g.NodeIndex()["COK"].Blocked)
	assert.False(t, g.NodeIndex()["DXB"].Blocked)
	res := timeRoute(t, g)
	for _, e := range res.Path {
		assert.NotEqual(t, "COK", e.Source)
		assert.NotEqual(t, "COK", e.Target)
	}
}

func TestWeatherScalesEdgeFigures(t *testing.T) {
	calm := buildGraph(t, scenario(), testOptions())

	opts := testOptions()
	storm := &model.WeatherGrid{}
	// Every edge midpoint between Kochi and Amsterdam lies in the northern
	// hemisphere east of Greenwich, so cover that quadrant.
	for lat := 0.0; lat < 60; lat += 5 {
		for lng := 0.0; lng < 80; lng += 5 {
			require.NoError(t, storm.Set(lat, lng, 0.5))
		}
	}
	opts.Weather = storm
	g := buildGraph(t, scenario(), opts)

	byKey := map[string]model.Edge{}
	for _, e := range calm.Edges {
		byKey[edgeKey(e)] = e
	}
	require.Equal(t, len(calm.Edges), len(g.Edges))
	for _, e := range g.Edges {
		c, ok := byKey[edgeKey(e)]
		require.True(t, ok, edgeKey(e))
		assert.Equal(t, 0.5, e.WeatherImpact)
		assert.InDelta(t, c.DurationHours*2, e.DurationHours, 1e-9)
		assert.InDelta(t, c.EmissionsTons*2, e.EmissionsTons, 1e-9)
		assert.InDelta(t, c.Cost*1.75, e.Cost, 1e-6)
	}
}

func TestBuildRejectsBadConditions(t *testing.T) {
	b := NewBuilder(scenario(), zap.NewNop(), testOptions())
	req := request()
	req.Disruptions = []model.Disruption{{DelayHours: -1}}
	req.Weather = &model.WeatherGrid{Cells: map[string]float64{"10,75": 2}}

	_, err := b.Build(context.Background(), req)
	var ve errs.ValidationErrors
	require.ErrorAs(t, err, &ve)
	fields := []string{}
	for _, e := range ve {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"disruptions[0].hub", "disruptions[0].delayHours", "weather"}, fields)
}

func TestBuildSameSeedSameCosts(t *testing.T) {
	costs := func() map[string]float64 {
		g := buildGraph(t, scenario(), testOptions())
		out := map[string]float64{}
		for _, e := range g.Edges {
			out[edgeKey(e)] = e.Cost
		}
		return out
	}
	assert.Equal(t, costs(), costs())
}

func TestBuildProviderFailureDegrades(t *testing.T) {
	deps := scenario()
	deps.Sea = &fakeSea{err: &errs.ProviderError{Provider: "sea", Op: "schedule", Status: 503, Err: errors.New("unavailable")}}
	g := buildGraph(t, deps, testOptions())

	assert.Equal(t, 1, g.Stats.ProviderFailures)
	assert.Empty(t, edgesBetween(g, "INCOK", "NLRTM", model.ModeSea))
	assert.Len(t, edgesBetween(g, "COK", "AMS", model.ModeAir), 1)
	assert.NotContains(t, g.NodeIndex(), "AEJEA")
	assert.Len(t, edgesBetween(g, OriginID, "INCOK", model.ModeRoad), 1)
}

func TestBuildDeadlineReturnsPartialGraph(t *testing.T) {
	deps := scenario()
	deps.Sea = &fakeSea{block: true}
	opts := testOptions()
	opts.Deadline = 50 * time.Millisecond

	g := buildGraph(t, deps, opts)
	assert.True(t, g.Stats.DeadlineExceeded)
	assert.Len(t, edgesBetween(g, "COK", "AMS", model.ModeAir), 1)
	assert.NotEmpty(t, edgesBetween(g, OriginID, DestinationID, model.ModeRoad))
}

func TestBuildValidation(t *testing.T) {
	b := NewBuilder(scenario(), zap.NewNop(), testOptions())
	req := request()
	req.Origin.Lat = 91
	req.StartDate = time.Time{}

	_, err := b.Build(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	var ve errs.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve, 2)
}

func TestBuildWithoutHubs(t *testing.T) {
	deps := scenario()
	deps.Hubs = providers.NewStaticHubs(nil)
	g := buildGraph(t, deps, testOptions())

	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 2)
	assert.Empty(t, g.Journeys)
}

func TestFinishRejectsDanglingEdge(t *testing.T) {
	bl := &build{Builder: NewBuilder(Deps{}, nil, testOptions()), acc: newAccumulator(), log: zap.NewNop()}
	bl.acc.addNode(model.Node{ID: OriginID}, true)
	bl.acc.addEdge("x", model.Edge{ID: "e1", Source: OriginID, Target: "nowhere", Mode: model.ModeRoad})

	_, err := bl.finish(false)
	var ce *errs.ComputationError
	require.ErrorAs(t, err, &ce)
}

func TestAccumulatorLocatedNodeReplacesPlaceholder(t *testing.T) {
	a := newAccumulator()
	a.addNode(model.Node{ID: "AEJEA"}, false)
	_, located := a.node("AEJEA")
	assert.False(t, located)

	a.addNode(model.Node{ID: "AEJEA", Lat: 25, Lng: 55}, true)
	a.addNode(model.Node{ID: "AEJEA", Lat: 1, Lng: 1}, true)
	n, located := a.node("AEJEA")
	assert.True(t, located)
	assert.Equal(t, 25.0, n.Lat)
	assert.Len(t, a.nodeList(), 1)
}

func TestDroppedJourneysAreCounted(t *testing.T) {
	bl := &build{Builder: NewBuilder(scenario(), zap.NewNop(), testOptions()), acc: newAccumulator(), log: zap.NewNop()}
	sea := model.LegDetail{Mode: model.ModeSea, From: "INCOK", To: "AEJEA", DepartureTime: at(48 * time.Hour), ArrivalTime: at(144 * time.Hour), Detail: model.SeaDetail{}}
	early := model.LegDetail{Mode: model.ModeAir, From: "AEJEA", To: "AMS", DepartureTime: at(100 * time.Hour), ArrivalTime: at(110 * time.Hour), Detail: model.AirDetail{}}
	late := early
	late.DepartureTime, late.ArrivalTime = at(150*time.Hour), at(160*time.Hour)

	bl.journey(model.JourneyMultimodal, []model.LegDetail{sea, early})
	bl.journey(model.JourneyMultimodal, []model.LegDetail{sea, late})

	g, err := bl.finish(false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Stats.Journeys)
	assert.Equal(t, 1, g.Stats.JourneysDropped)
}
