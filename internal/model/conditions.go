package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultWeatherCellDeg is the side of a weather cell in degrees.
const DefaultWeatherCellDeg = 5.0

// MaxHubDelayHours caps the fixed delay configured for a hub.
const MaxHubDelayHours = 24.0

// WeatherGrid holds a severity in [0,1] per lat/lng cell. Cells are keyed
// "lat,lng" by their south-west corner, truncated toward zero.
type WeatherGrid struct {
	CellDeg float64            `json:"cellDeg,omitempty" yaml:"cellDeg"`
	Cells   map[string]float64 `json:"cells" yaml:"cells"`
}

func (w *WeatherGrid) cell() float64 {
	if w.CellDeg <= 0 {
		return DefaultWeatherCellDeg
	}
	return w.CellDeg
}

// CellKey returns the key of the cell containing lat, lng.
func (w *WeatherGrid) CellKey(lat, lng float64) string {
	size := w.cell()
	la := math.Trunc(lat/size) * size
	lo := math.Trunc(lng/size) * size
	return strconv.FormatFloat(la+0, 'f', -1, 64) + "," + strconv.FormatFloat(lo+0, 'f', -1, 64)
}

// Set records severity for the cell containing lat, lng.
func (w *WeatherGrid) Set(lat, lng, severity float64) error {
	if severity < 0 || severity > 1 || math.IsNaN(severity) {
		return fmt.Errorf("severity %v outside [0,1]", severity)
	}
	if w.Cells == nil {
		w.Cells = map[string]float64{}
	}
	w.Cells[w.CellKey(lat, lng)] = severity
	return nil
}

// Severity returns the severity at lat, lng; unknown cells are calm. A nil
// grid is calm everywhere.
func (w *WeatherGrid) Severity(lat, lng float64) float64 {
	if w == nil || len(w.Cells) == 0 {
		return 0
	}
	return w.Cells[w.CellKey(lat, lng)]
}

// Validate checks cell keys and severities.
func (w *WeatherGrid) Validate() error {
	if w == nil {
		return nil
	}
	if w.CellDeg < 0 {
		return fmt.Errorf("cellDeg must not be negative")
	}
	for k, v := range w.Cells {
		la, lo, ok := strings.Cut(k, ",")
		if !ok {
			return fmt.Errorf("cell %q: want \"lat,lng\"", k)
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(la), 64); err != nil {
			return fmt.Errorf("cell %q: %w", k, err)
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(lo), 64); err != nil {
			return fmt.Errorf("cell %q: %w", k, err)
		}
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("cell %q: severity %v outside [0,1]", k, v)
		}
	}
	return nil
}

// Merge returns a grid holding w's cells overlaid with o's. The cell size of
// o wins when set.
func (w *WeatherGrid) Merge(o *WeatherGrid) *WeatherGrid {
	switch {
	case o == nil || len(o.Cells) == 0:
		return w
	case w == nil || len(w.Cells) == 0:
		return o
	}
	out := &WeatherGrid{CellDeg: w.CellDeg, Cells: make(map[string]float64, len(w.Cells)+len(o.Cells))}
	if o.CellDeg > 0 {
		out.CellDeg = o.CellDeg
	}
	for k, v := range w.Cells {
		out.Cells[k] = v
	}
	for k, v := range o.Cells {
		out.Cells[k] = v
	}
	return out
}

// WeatherFactors returns the duration/emissions and cost multipliers for a
// severity. Severity 1 triples duration and emissions and multiplies cost by 2.5.
func WeatherFactors(severity float64) (durationEmissions, cost float64) {
	return 1 + 2*severity, 1 + 1.5*severity
}

// Disruption is a named event at a hub, such as a strike or congestion.
type Disruption struct {
	Hub        string  `json:"hub" yaml:"hub" validate:"required"`
	Kind       string  `json:"kind" yaml:"kind"`
	Name       string  `json:"name" yaml:"name"`
	DelayHours float64 `json:"delayHours" yaml:"delayHours" validate:"gte=0"`
	Blocked    bool    `json:"blocked" yaml:"blocked"`
}

// HubConditions folds fixed hub delays and disruptions into a per-hub delay
// and the set of blocked hubs. A fixed delay is clamped to
// [0, MaxHubDelayHours]; disruption delays add on top of it.
func HubConditions(fixed map[string]float64, events []Disruption) (delay map[string]float64, blocked map[string]bool) {
	delay = make(map[string]float64, len(fixed)+len(events))
	blocked = map[string]bool{}
	for h, d := range fixed {
		delay[h] = math.Max(0, math.Min(MaxHubDelayHours, d))
	}
	for _, ev := range events {
		delay[ev.Hub] += math.Max(0, ev.DelayHours)
		if ev.Blocked {
			blocked[ev.Hub] = true
		}
	}
	return delay, blocked
}
