package providers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"freightgraph/internal/model"
)

// SeaClient reads vessel schedules from a JSON schedule service.
//
//	GET /schedules?from=INCOK&to=NLRTM&date=2025-05-01
//	GET /departures?port=INCOK&from=2025-05-01&to=2025-05-31
//
// Both answer {"voyages": [...]}.
type SeaClient struct {
	c *Client
}

func NewSeaClient(c *Client) *SeaClient { return &SeaClient{c: c} }

type voyageDTO struct {
	VesselIMO    string     `json:"vesselImo"`
	VesselName   string     `json:"vesselName"`
	VoyageNumber string     `json:"voyageNumber"`
	Carrier      string     `json:"carrier"`
	Origin       string     `json:"origin"`
	Destination  string     `json:"destination"`
	ETD          *time.Time `json:"etd"`
	ETA          *time.Time `json:"eta"`
	PortCalls    []struct {
		UNLocode string     `json:"unlocode"`
		Name     string     `json:"name"`
		Lat      *float64   `json:"lat"`
		Lng      *float64   `json:"lng"`
		ETA      *time.Time `json:"eta"`
		ETD      *time.Time `json:"etd"`
	} `json:"portCalls"`
}

type voyagesResponse struct {
	Voyages []voyageDTO `json:"voyages"`
}

func (d voyageDTO) toModel() model.Voyage {
	v := model.Voyage{
		ShipID:     d.VesselIMO,
		ShipName:   d.VesselName,
		VoyageCode: d.VoyageNumber,
		Line:       d.Carrier,
		FromPort:   strings.ToUpper(strings.TrimSpace(d.Origin)),
		ToPort:     strings.ToUpper(strings.TrimSpace(d.Destination)),
	}
	if d.ETD != nil {
		v.DepartureTime = d.ETD.UTC()
	}
	if d.ETA != nil {
		v.ArrivalTime = d.ETA.UTC()
	}
	for _, pc := range d.PortCalls {
		v.Schedule = append(v.Schedule, model.Stop{
			Port: strings.ToUpper(strings.TrimSpace(pc.UNLocode)),
			Name: pc.Name,
			Lat:  pc.Lat,
			Lng:  pc.Lng,
			ETA:  pc.ETA,
			ETD:  pc.ETD,
		})
	}
	return v
}

func (s *SeaClient) SeaSchedule(ctx context.Context, fromPort, toPort string, date time.Time) ([]model.Voyage, error) {
	q := url.Values{"from": {fromPort}, "to": {toPort}, "date": {date.UTC().Format(time.DateOnly)}}
	var resp voyagesResponse
	if err := s.c.GetJSON(ctx, "schedule", "/schedules", q, &resp); err != nil {
		return nil, err
	}
	return toVoyages(resp.Voyages), nil
}

func (s *SeaClient) Departures(ctx context.Context, port string, from, to time.Time) ([]model.Voyage, error) {
	q := url.Values{"port": {port}, "from": {from.UTC().Format(time.DateOnly)}, "to": {to.UTC().Format(time.DateOnly)}}
	var resp voyagesResponse
	if err := s.c.GetJSON(ctx, "departures", "/departures", q, &resp); err != nil {
		return nil, err
	}
	return toVoyages(resp.Voyages), nil
}

func toVoyages(in []voyageDTO) []model.Voyage {
	out := make([]model.Voyage, 0, len(in))
	for _, d := range in {
		out = append(out, d.toModel())
	}
	return out
}
