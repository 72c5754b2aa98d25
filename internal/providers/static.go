package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"freightgraph/internal/model"
)

// StaticSchedules serves voyages and flights from a fixture file:
//
//	{"voyages": [...model.Voyage], "flights": [...model.Flight]}
//
// It backs offline runs and demos. With no fixtures every lookup is empty.
type StaticSchedules struct {
	Voyages []model.Voyage `json:"voyages"`
	Flights []model.Flight `json:"flights"`
}

func LoadStaticSchedules(path string) (*StaticSchedules, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schedule fixtures: %w", err)
	}
	var s StaticSchedules
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("schedule fixtures %s: %w", path, err)
	}
	return &s, nil
}

// SeaSchedule returns voyages calling at fromPort and later at toPort that depart on or after date.
func (s *StaticSchedules) SeaSchedule(_ context.Context, fromPort, toPort string, date time.Time) ([]model.Voyage, error) {
	var out []model.Voyage
	for _, v := range s.Voyages {
		if v.DepartureTime.Before(date) {
			continue
		}
		if callsInOrder(v, fromPort, toPort) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *StaticSchedules) Departures(_ context.Context, port string, from, to time.Time) ([]model.Voyage, error) {
	var out []model.Voyage
	for _, v := range s.Voyages {
		if v.FromPort == port && !v.DepartureTime.Before(from) && v.DepartureTime.Before(to) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *StaticSchedules) AirSchedule(_ context.Context, fromAirport, toAirport string, date time.Time) ([]model.Flight, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	var out []model.Flight
	for _, f := range s.Flights {
		if f.FromAirport == fromAirport && f.ToAirport == toAirport && !f.DepartureTime.Before(day) {
			out = append(out, f)
		}
	}
	return out, nil
}

func callsInOrder(v model.Voyage, from, to string) bool {
	seen := false
	for _, st := range v.Stops() {
		switch {
		case st.Port == from:
			seen = true
		case seen && st.Port == to:
			return true
		}
	}
	return false
}
