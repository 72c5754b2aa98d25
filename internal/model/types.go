package model

import (
	"strings"
	"time"
)

// Core domain types for the multimodal freight graph.

type GeoPoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type NodeKind string

const (
	NodeOrigin      NodeKind = "origin"
	NodeDestination NodeKind = "destination"
	NodeAirport     NodeKind = "airport"
	NodeSeaport     NodeKind = "seaport"
)

// Node ids are unique within one graph.
type Node struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind NodeKind `json:"kind"`
	Lat  float64  `json:"lat"`
	Lng  float64  `json:"lng"`
	// Blocked nodes are never entered by route search.
	Blocked bool `json:"blocked,omitempty"`
}

func (n Node) Point() GeoPoint { return GeoPoint{Lat: n.Lat, Lng: n.Lng} }

// Hub is a resolved airport or seaport near a coordinate.
type Hub struct {
	Code    string   `json:"code" yaml:"code"`
	Name    string   `json:"name" yaml:"name"`
	Kind    NodeKind `json:"kind" yaml:"kind"`
	Lat     float64  `json:"lat" yaml:"lat"`
	Lng     float64  `json:"lng" yaml:"lng"`
	Country string   `json:"country,omitempty" yaml:"country,omitempty"`
}

func (h Hub) Node() Node {
	name := h.Name
	if name == "" {
		name = h.Code
	}
	return Node{ID: h.Code, Name: name, Kind: h.Kind, Lat: h.Lat, Lng: h.Lng}
}

type Stop struct {
	Port string     `json:"port"`
	Name string     `json:"name,omitempty"`
	Lat  *float64   `json:"lat,omitempty"`
	Lng  *float64   `json:"lng,omitempty"`
	ETA  *time.Time `json:"eta,omitempty"`
	ETD  *time.Time `json:"etd,omitempty"`
}

// Voyage is one sailing of one ship as reported by a schedule provider.
type Voyage struct {
	ShipID        string    `json:"shipId"`
	ShipName      string    `json:"shipName,omitempty"`
	VoyageCode    string    `json:"voyageCode"`
	Line          string    `json:"line,omitempty"`
	FromPort      string    `json:"fromPort"`
	ToPort        string    `json:"toPort"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	Schedule      []Stop    `json:"schedule,omitempty"`
}

// Complete reports whether the voyage carries every field needed to place it in a graph.
func (v Voyage) Complete() bool {
	return v.FromPort != "" && v.ToPort != "" && !v.DepartureTime.IsZero() && !v.ArrivalTime.IsZero()
}

// DedupKey identifies a voyage across providers and fetches.
func (v Voyage) DedupKey() string {
	return strings.Join([]string{v.ShipID, v.VoyageCode, v.FromPort, v.ToPort, v.DepartureTime.UTC().Format(time.RFC3339)}, "|")
}

// Stops returns the ordered schedule, synthesising a two-stop one when the provider sent none.
func (v Voyage) Stops() []Stop {
	if len(v.Schedule) >= 2 {
		return v.Schedule
	}
	dep, arr := v.DepartureTime, v.ArrivalTime
	return []Stop{{Port: v.FromPort, ETD: &dep}, {Port: v.ToPort, ETA: &arr}}
}

type Flight struct {
	Carrier       string    `json:"carrier"`
	FlightNumber  string    `json:"flightNumber"`
	FromAirport   string    `json:"fromAirport"`
	ToAirport     string    `json:"toAirport"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
}

func (f Flight) DedupKey() string {
	return strings.Join([]string{f.Carrier, f.FlightNumber, f.FromAirport, f.ToAirport, f.DepartureTime.UTC().Format(time.RFC3339)}, "|")
}

// Criterion selects the scalar edge metric minimised by the route search.
type Criterion string

const (
	CriterionTime     Criterion = "time"
	CriterionCost     Criterion = "cost"
	CriterionCO2      Criterion = "co2"
	CriterionWeighted Criterion = "weighted"
)

func (c Criterion) Valid() bool {
	switch c {
	case CriterionTime, CriterionCost, CriterionCO2, CriterionWeighted:
		return true
	}
	return false
}

type Graph struct {
	Nodes      []Node      `json:"nodes"`
	Edges      []Edge      `json:"edges"`
	Journeys   []Journey   `json:"journeys"`
	LegDetails []LegDetail `json:"legDetails"`
	Stats      GraphStats  `json:"stats"`
}

type GraphStats struct {
	Nodes            int `json:"nodes"`
	Edges            int `json:"edges"`
	Journeys         int `json:"journeys"`
	Voyages          int `json:"voyages"`
	Flights          int `json:"flights"`
	ProviderFailures int `json:"providerFailures"`
	// JourneysDropped counts journeys whose segments failed validation.
	JourneysDropped  int  `json:"journeysDropped"`
	DeadlineExceeded bool `json:"deadlineExceeded"`
}

// NodeIndex maps node ids to nodes.
func (g *Graph) NodeIndex() map[string]Node {
	idx := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		idx[n.ID] = n
	}
	return idx
}
