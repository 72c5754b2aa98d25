package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"freightgraph/internal/errs"
	"freightgraph/internal/explorer"
	"freightgraph/internal/graph"
	"freightgraph/internal/model"
	"freightgraph/internal/route"
)

const maxBodyBytes = 32 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Date accepts either YYYY-MM-DD or an RFC 3339 timestamp.
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("date %q: want YYYY-MM-DD or RFC 3339", s)
}

type multimodalRequest struct {
	Origin      *model.GeoPoint `json:"origin" validate:"required"`
	Destination *model.GeoPoint `json:"destination" validate:"required"`
	StartDate   Date            `json:"startDate"`
	// Disruptions and Weather describe conditions for this build only.
	Disruptions []model.Disruption `json:"disruptions" validate:"omitempty,max=100,dive"`
	Weather     *model.WeatherGrid `json:"weather"`
}

func (m multimodalRequest) toBuild() graph.Request {
	return graph.Request{
		Origin:      *m.Origin,
		Destination: *m.Destination,
		StartDate:   m.StartDate.Time,
		Disruptions: m.Disruptions,
		Weather:     m.Weather,
	}
}

type shipRoutesRequest struct {
	StartPort string `json:"startPort" validate:"required"`
	EndPort   string `json:"endPort"`
	StartDate Date   `json:"startDate"`
	MaxHops   int    `json:"maxHops" validate:"omitempty,min=1,max=10"`
	StreamID  string `json:"streamId" validate:"omitempty,max=128"`
}

func (s shipRoutesRequest) toExplore() explorer.Request {
	return explorer.Request{StartPort: s.StartPort, EndPort: s.EndPort, StartDate: s.StartDate.Time, MaxHops: s.MaxHops}
}

type shortestRequest struct {
	Graph     *model.Graph    `json:"graph" validate:"required"`
	Start     string          `json:"start" validate:"required"`
	End       string          `json:"end" validate:"required"`
	Criterion model.Criterion `json:"criterion" validate:"required"`
	Weights   *route.Weights  `json:"weights"`
	Blocked   []string        `json:"blocked"`
}

// decode reads a JSON body into v and validates its tags. Every failure is a
// ValidationError.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errs.Invalid("body", "invalid JSON: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return errs.Invalid("body", "%v", err)
		}
		out := make(errs.ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			out = append(out, &errs.ValidationError{Field: jsonPath(fe.Namespace()), Message: "failed " + fe.Tag() + " " + fe.Param()})
		}
		return out
	}
	return nil
}

// jsonPath turns "shipRoutesRequest.MaxHops" into "maxHops".
func jsonPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}
