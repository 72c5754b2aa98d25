package providers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"freightgraph/internal/model"
)

// AirClient reads cargo flight schedules.
//
//	GET /flights?from=COK&to=AMS&date=2025-05-01 -> {"flights": [...]}
type AirClient struct {
	c *Client
}

func NewAirClient(c *Client) *AirClient { return &AirClient{c: c} }

type flightDTO struct {
	Carrier      string    `json:"carrier"`
	FlightNumber string    `json:"flightNumber"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	Departure    time.Time `json:"departure"`
	Arrival      time.Time `json:"arrival"`
}

func (s *AirClient) AirSchedule(ctx context.Context, fromAirport, toAirport string, date time.Time) ([]model.Flight, error) {
	q := url.Values{"from": {fromAirport}, "to": {toAirport}, "date": {date.UTC().Format(time.DateOnly)}}
	var resp struct {
		Flights []flightDTO `json:"flights"`
	}
	if err := s.c.GetJSON(ctx, "schedule", "/flights", q, &resp); err != nil {
		return nil, err
	}
	out := make([]model.Flight, 0, len(resp.Flights))
	for _, f := range resp.Flights {
		// Flights without times cannot be placed on a timeline.
		if f.Departure.IsZero() || f.Arrival.IsZero() || f.Arrival.Before(f.Departure) {
			continue
		}
		out = append(out, model.Flight{
			Carrier:       f.Carrier,
			FlightNumber:  f.FlightNumber,
			FromAirport:   strings.ToUpper(f.Origin),
			ToAirport:     strings.ToUpper(f.Destination),
			DepartureTime: f.Departure.UTC(),
			ArrivalTime:   f.Arrival.UTC(),
		})
	}
	return out, nil
}
