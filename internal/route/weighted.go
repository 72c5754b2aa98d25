package route

import (
	"freightgraph/internal/errs"
	"freightgraph/internal/model"
)

// Weights blends the three edge metrics into one score.
type Weights struct {
	Duration  float64 `json:"duration" validate:"gte=0"`
	Emissions float64 `json:"emissions" validate:"gte=0"`
	Cost      float64 `json:"cost" validate:"gte=0"`
}

var DefaultWeights = Weights{Duration: 0.4, Emissions: 0.3, Cost: 0.3}

// Reference magnitudes that bring each metric to a comparable scale.
const (
	durationScale  = 100.0  // hours
	emissionsScale = 1000.0 // tonnes
	costScale      = 5000.0 // USD
)

// normalized returns w scaled to sum to one.
func (w Weights) normalized() (Weights, error) {
	if w.Duration < 0 || w.Emissions < 0 || w.Cost < 0 {
		return Weights{}, errs.Invalid("weights", "must not be negative")
	}
	sum := w.Duration + w.Emissions + w.Cost
	if sum == 0 {
		return Weights{}, errs.Invalid("weights", "must not all be zero")
	}
	return Weights{Duration: w.Duration / sum, Emissions: w.Emissions / sum, Cost: w.Cost / sum}, nil
}

// Score is the weighted value of e.
func (w Weights) Score(e model.Edge) float64 {
	return w.Duration*e.DurationHours/durationScale +
		w.Emissions*e.EmissionsTons/emissionsScale +
		w.Cost*e.Cost/costScale
}

func weigher(opts Options) (func(model.Edge) float64, error) {
	switch opts.Criterion {
	case model.CriterionTime, model.CriterionCost, model.CriterionCO2:
		c := opts.Criterion
		return func(e model.Edge) float64 {
			v, _ := e.Metric(c)
			return v
		}, nil
	case model.CriterionWeighted:
		w := DefaultWeights
		if opts.Weights != nil {
			w = *opts.Weights
		}
		n, err := w.normalized()
		if err != nil {
			return nil, err
		}
		return n.Score, nil
	}
	return nil, errs.Invalid("criterion", "must be one of time, cost, co2, weighted; got %q", opts.Criterion)
}
