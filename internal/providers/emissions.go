package providers

import (
	"context"
	"net/url"
	"strconv"

	"freightgraph/internal/model"
)

// Per-km fallback factors in kg, applied when no estimator figure is available.
const (
	RoadKgPerKm = 0.12
	SeaKgPerKm  = 0.04
	AirKgPerKm  = 0.00025
)

// FallbackTons converts a distance to tonnes of CO2 with the per-mode factor.
func FallbackTons(mode model.Mode, distanceKm float64) float64 {
	var f float64
	switch mode {
	case model.ModeRoad:
		f = RoadKgPerKm
	case model.ModeSea:
		f = SeaKgPerKm
	case model.ModeAir:
		f = AirKgPerKm
	}
	return distanceKm * f / 1000
}

// EmissionsClient queries a carbon calculator.
//
//	GET /air?from=COK&to=AMS&weight=1   -> {"co2Tons": 4.2} or {"co2Tons": null}
//	GET /sea?from=INCOK&to=NLRTM&line=X -> {"totalCO2": 1.1, "transitTime": 480} or null
type EmissionsClient struct {
	c *Client
}

func NewEmissionsClient(c *Client) *EmissionsClient { return &EmissionsClient{c: c} }

func (e *EmissionsClient) Air(ctx context.Context, from, to string, cargoTons float64) (float64, error) {
	q := url.Values{"from": {from}, "to": {to}, "weight": {strconv.FormatFloat(cargoTons, 'f', -1, 64)}}
	var resp struct {
		CO2Tons *float64 `json:"co2Tons"`
	}
	if err := e.c.GetJSON(ctx, "air", "/air", q, &resp); err != nil {
		return 0, err
	}
	if resp.CO2Tons == nil || *resp.CO2Tons < 0 {
		return 0, ErrNoEstimate
	}
	return *resp.CO2Tons, nil
}

func (e *EmissionsClient) Sea(ctx context.Context, from, to, line string) (SeaEstimate, error) {
	q := url.Values{"from": {from}, "to": {to}}
	if line != "" {
		q.Set("line", line)
	}
	var resp *SeaEstimate
	if err := e.c.GetJSON(ctx, "sea", "/sea", q, &resp); err != nil {
		return SeaEstimate{}, err
	}
	if resp == nil || resp.TotalCO2Tons < 0 {
		return SeaEstimate{}, ErrNoEstimate
	}
	return *resp, nil
}

// NoEmissions is the estimator used when no calculator is configured; every
// leg falls back to the per-km factors.
type NoEmissions struct{}

func (NoEmissions) Air(context.Context, string, string, float64) (float64, error) {
	return 0, ErrNoEstimate
}

func (NoEmissions) Sea(context.Context, string, string, string) (SeaEstimate, error) {
	return SeaEstimate{}, ErrNoEstimate
}
