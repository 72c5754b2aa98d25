// Package providers defines the external collaborators of the graph builder
// and the explorer, together with HTTP clients, cache decorators and local
// fallbacks for them.
package providers

import (
	"context"
	"errors"
	"time"

	"freightgraph/internal/model"
)

// LocationResolver finds the hubs of one kind nearest to a coordinate, closest first.
type LocationResolver interface {
	Nearest(ctx context.Context, lat, lng float64, kind model.NodeKind, limit int) ([]model.Hub, error)
}

// SeaSchedules lists voyages between two ports on or after date.
type SeaSchedules interface {
	SeaSchedule(ctx context.Context, fromPort, toPort string, date time.Time) ([]model.Voyage, error)
}

// PortSchedules lists every voyage departing port within [from, to).
type PortSchedules interface {
	Departures(ctx context.Context, port string, from, to time.Time) ([]model.Voyage, error)
}

type AirSchedules interface {
	AirSchedule(ctx context.Context, fromAirport, toAirport string, date time.Time) ([]model.Flight, error)
}

// ErrNoEstimate is returned by an EmissionsEstimator that has no figure for a leg.
var ErrNoEstimate = errors.New("no emissions estimate")

type SeaEstimate struct {
	TotalCO2Tons     float64 `json:"totalCO2"`
	TransitTimeHours float64 `json:"transitTime"`
}

type EmissionsEstimator interface {
	Air(ctx context.Context, from, to string, cargoTons float64) (float64, error)
	Sea(ctx context.Context, from, to, line string) (SeaEstimate, error)
}

// DelayEstimator predicts the delay of an edge in minutes.
type DelayEstimator interface {
	Predict(ctx context.Context, e model.Edge) (float64, error)
}
