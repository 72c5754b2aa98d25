package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Mode string

const (
	ModeRoad Mode = "road"
	ModeAir  Mode = "air"
	ModeSea  Mode = "sea"
)

// ModeDetail is the mode-specific part of an edge or leg. The variants are
// RoadDetail, AirDetail and SeaDetail; the set is closed.
type ModeDetail interface {
	Mode() Mode
	isModeDetail()
}

type RoadDetail struct{}

type AirDetail struct {
	Carrier      string `json:"carrier"`
	FlightNumber string `json:"flightNumber"`
}

type SeaDetail struct {
	ShipID     string `json:"shipId"`
	ShipName   string `json:"shipName,omitempty"`
	VoyageCode string `json:"voyageCode"`
}

func (RoadDetail) Mode() Mode { return ModeRoad }
func (AirDetail) Mode() Mode  { return ModeAir }
func (SeaDetail) Mode() Mode  { return ModeSea }

func (RoadDetail) isModeDetail() {}
func (AirDetail) isModeDetail()  {}
func (SeaDetail) isModeDetail()  {}

// DetailFor returns the zero detail for a mode.
func DetailFor(m Mode) (ModeDetail, error) {
	switch m {
	case ModeRoad:
		return RoadDetail{}, nil
	case ModeAir:
		return AirDetail{}, nil
	case ModeSea:
		return SeaDetail{}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", m)
}

func decodeDetail(m Mode, raw json.RawMessage) (ModeDetail, error) {
	empty := len(raw) == 0 || string(raw) == "null"
	switch m {
	case ModeRoad:
		return RoadDetail{}, nil
	case ModeAir:
		var d AirDetail
		if !empty {
			if err := json.Unmarshal(raw, &d); err != nil {
				return nil, err
			}
		}
		return d, nil
	case ModeSea:
		var d SeaDetail
		if !empty {
			if err := json.Unmarshal(raw, &d); err != nil {
				return nil, err
			}
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown mode %q", m)
}

// Edge is a directed transport leg between two nodes of a graph.
type Edge struct {
	ID                   string     `json:"id"`
	Source               string     `json:"source"`
	Target               string     `json:"target"`
	Mode                 Mode       `json:"mode"`
	DistanceKm           float64    `json:"distanceKm"`
	DurationHours        float64    `json:"durationHours"`
	EmissionsTons        float64    `json:"emissionsTons"`
	Cost                 float64    `json:"cost"`
	DelayMinutes         float64    `json:"delayMinutes"`
	PredictedDuration    float64    `json:"predictedDuration"`
	PredictedArrivalTime *time.Time `json:"predictedArrivalTime,omitempty"`
	DepartureTime        *time.Time `json:"departureTime,omitempty"`
	ArrivalTime          *time.Time `json:"arrivalTime,omitempty"`
	Weight               float64    `json:"weight,omitempty"`
	// HubDelayHours is the source hub delay already included in DurationHours.
	HubDelayHours float64 `json:"hubDelayHours,omitempty"`
	// WeatherImpact is the severity applied to the edge's base figures.
	WeatherImpact float64    `json:"weatherImpact,omitempty"`
	Detail        ModeDetail `json:"-"`
}

type edgeJSON Edge

func (e Edge) MarshalJSON() ([]byte, error) {
	detail := e.Detail
	if detail == nil {
		d, err := DetailFor(e.Mode)
		if err != nil {
			return nil, err
		}
		detail = d
	}
	return json.Marshal(struct {
		edgeJSON
		Detail ModeDetail `json:"detail"`
	}{edgeJSON(e), detail})
}

func (e *Edge) UnmarshalJSON(b []byte) error {
	var aux struct {
		edgeJSON
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d, err := decodeDetail(aux.Mode, aux.Detail)
	if err != nil {
		return fmt.Errorf("edge %s: %w", aux.ID, err)
	}
	*e = Edge(aux.edgeJSON)
	e.Detail = d
	return nil
}

// Metric returns the criterion value of the edge. When the criterion field is
// unset (zero while a generic weight is present) the generic weight is used.
func (e Edge) Metric(c Criterion) (float64, bool) {
	var v float64
	switch c {
	case CriterionTime:
		v = e.DurationHours
	case CriterionCost:
		v = e.Cost
	case CriterionCO2:
		v = e.EmissionsTons
	default:
		return 0, false
	}
	if v == 0 && e.Weight != 0 {
		return e.Weight, true
	}
	return v, true
}
