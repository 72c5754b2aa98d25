package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type JourneyKind string

const (
	JourneyAir        JourneyKind = "air"
	JourneyShip       JourneyKind = "ship"
	JourneyRoad       JourneyKind = "road"
	JourneyMultimodal JourneyKind = "multimodal"
)

// LegDetail is one scheduled segment of a journey.
type LegDetail struct {
	Mode          Mode       `json:"mode"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	FromName      string     `json:"fromName,omitempty"`
	ToName        string     `json:"toName,omitempty"`
	DepartureTime time.Time  `json:"departureTime"`
	ArrivalTime   time.Time  `json:"arrivalTime"`
	DurationHours float64    `json:"durationHours"`
	DistanceKm    float64    `json:"distanceKm"`
	Detail        ModeDetail `json:"-"`
}

type legJSON LegDetail

func (l LegDetail) MarshalJSON() ([]byte, error) {
	detail := l.Detail
	if detail == nil {
		d, err := DetailFor(l.Mode)
		if err != nil {
			return nil, err
		}
		detail = d
	}
	return json.Marshal(struct {
		legJSON
		Detail ModeDetail `json:"detail"`
	}{legJSON(l), detail})
}

func (l *LegDetail) UnmarshalJSON(b []byte) error {
	var aux struct {
		legJSON
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d, err := decodeDetail(aux.Mode, aux.Detail)
	if err != nil {
		return err
	}
	*l = LegDetail(aux.legJSON)
	l.Detail = d
	return nil
}

type Journey struct {
	ID            string      `json:"id"`
	Kind          JourneyKind `json:"kind"`
	Modes         []Mode      `json:"modes"`
	Segments      []LegDetail `json:"segments"`
	TotalDuration float64     `json:"totalDuration"`
}

// Validate checks that segments are chronological and chained end to start.
func (j Journey) Validate() error {
	if len(j.Segments) == 0 {
		return fmt.Errorf("journey %s: no segments", j.ID)
	}
	for i, s := range j.Segments {
		if s.ArrivalTime.Before(s.DepartureTime) {
			return fmt.Errorf("journey %s: segment %d arrives before it departs", j.ID, i)
		}
		if i == 0 {
			continue
		}
		prev := j.Segments[i-1]
		if s.DepartureTime.Before(prev.ArrivalTime) {
			return fmt.Errorf("journey %s: segment %d departs %s before segment %d arrives %s",
				j.ID, i, s.DepartureTime.Format(time.RFC3339), i-1, prev.ArrivalTime.Format(time.RFC3339))
		}
		if prev.To != s.From {
			return fmt.Errorf("journey %s: segment %d starts at %s, previous ends at %s", j.ID, i, s.From, prev.To)
		}
	}
	return nil
}

// Span returns the door-to-door duration in hours.
func (j Journey) Span() float64 {
	if len(j.Segments) == 0 {
		return 0
	}
	return j.Segments[len(j.Segments)-1].ArrivalTime.Sub(j.Segments[0].DepartureTime).Hours()
}
