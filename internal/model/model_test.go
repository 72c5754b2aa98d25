package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeDetailDecodesByMode(t *testing.T) {
	body := []byte(`[
		{"id":"e1","source":"INCOK","target":"NLRTM","mode":"sea","distanceKm":11000,"detail":{"shipId":"9321483","voyageCode":"123W"}},
		{"id":"e2","source":"COK","target":"AMS","mode":"air","detail":{"carrier":"EK","flightNumber":"EK531"}},
		{"id":"e3","source":"origin","target":"COK","mode":"road"}
	]`)
	var edges []Edge
	require.NoError(t, json.Unmarshal(body, &edges))
	require.Len(t, edges, 3)

	sea, ok := edges[0].Detail.(SeaDetail)
	require.True(t, ok, "want SeaDetail, got %T", edges[0].Detail)
	assert.Equal(t, "123W", sea.VoyageCode)
	air, ok := edges[1].Detail.(AirDetail)
	require.True(t, ok)
	assert.Equal(t, "EK531", air.FlightNumber)
	assert.Equal(t, ModeRoad, edges[2].Detail.Mode())

	out, err := json.Marshal(edges[2])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"detail":{}`)
}

func TestEdgeUnknownModeRejected(t *testing.T) {
	var e Edge
	err := json.Unmarshal([]byte(`{"id":"x","mode":"rail"}`), &e)
	require.Error(t, err)
}

func TestEdgeMetricFallsBackToWeight(t *testing.T) {
	e := Edge{Mode: ModeRoad, DurationHours: 2, Weight: 7}
	v, ok := e.Metric(CriterionTime)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
	v, _ = e.Metric(CriterionCost)
	assert.Equal(t, 7.0, v)
	_, ok = e.Metric("speed")
	assert.False(t, ok)
}

func TestJourneyValidate(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	ok := Journey{ID: "j", Segments: []LegDetail{
		{Mode: ModeSea, From: "INCOK", To: "AEJEA", DepartureTime: t0, ArrivalTime: t0.Add(48 * time.Hour)},
		{Mode: ModeRoad, From: "AEJEA", To: "DXB", DepartureTime: t0.Add(48 * time.Hour), ArrivalTime: t0.Add(49 * time.Hour)},
	}}
	require.NoError(t, ok.Validate())
	assert.Equal(t, 49.0, ok.Span())

	bad := ok
	bad.Segments = append([]LegDetail(nil), ok.Segments...)
	bad.Segments[1].DepartureTime = t0.Add(47 * time.Hour)
	assert.Error(t, bad.Validate())

	assert.Error(t, Journey{ID: "empty"}.Validate())
}

func TestVoyageStopsSynthesised(t *testing.T) {
	dep := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	v := Voyage{ShipID: "s", VoyageCode: "v", FromPort: "INCOK", ToPort: "NLRTM", DepartureTime: dep, ArrivalTime: dep.Add(400 * time.Hour)}
	stops := v.Stops()
	require.Len(t, stops, 2)
	assert.Equal(t, "INCOK", stops[0].Port)
	assert.Equal(t, dep, *stops[0].ETD)
	assert.Equal(t, "s|v|INCOK|NLRTM|2025-05-02T00:00:00Z", v.DedupKey())
}

func TestWeatherGridCells(t *testing.T) {
	var w WeatherGrid
	require.NoError(t, w.Set(12.3, 77.9, 0.6))
	assert.Equal(t, 0.6, w.Cells["10,75"])
	assert.Equal(t, 0.6, w.Severity(14.9, 75.1))
	assert.Zero(t, w.Severity(15.1, 75.1))

	// Cells truncate toward zero, so -3 and 3 share the row at 0.
	require.NoError(t, w.Set(-3, -7, 1))
	assert.Contains(t, w.Cells, "0,-5")
	assert.Error(t, w.Set(0, 0, 1.5))

	var calm *WeatherGrid
	assert.Zero(t, calm.Severity(12, 77))
	assert.NoError(t, calm.Validate())
	assert.Error(t, (&WeatherGrid{Cells: map[string]float64{"north": 0.1}}).Validate())

	merged := w.Merge(&WeatherGrid{Cells: map[string]float64{"10,75": 0.2}})
	assert.Equal(t, 0.2, merged.Severity(12, 77))
	assert.Equal(t, 1.0, merged.Severity(-3, -7))
	assert.Equal(t, 0.6, w.Cells["10,75"])

	fd, fc := WeatherFactors(1)
	assert.Equal(t, 3.0, fd)
	assert.Equal(t, 2.5, fc)
}

func TestHubConditions(t *testing.T) {
	delay, blocked := HubConditions(
		map[string]float64{"DXB": 40, "COK": 2, "AMS": -1},
		[]Disruption{
			{Hub: "COK", Kind: "strike", DelayHours: 30},
			{Hub: "NLRTM", Kind: "closure", Blocked: true},
		},
	)
	assert.Equal(t, MaxHubDelayHours, delay["DXB"])
	assert.Equal(t, 32.0, delay["COK"])
	assert.Zero(t, delay["AMS"])
	assert.Equal(t, map[string]bool{"NLRTM": true}, blocked)
}
