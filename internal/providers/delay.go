package providers

import (
	"context"
	"math"
	"math/rand"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"freightgraph/internal/model"
)

// StochasticDelay draws a delay from a per-mode normal distribution, clamped at zero.
type StochasticDelay struct {
	mu  sync.Mutex
	rng *rand.Rand
	// MeanMinutes per mode; the standard deviation is half the mean.
	MeanMinutes map[model.Mode]float64
}

func NewStochasticDelay(seed int64) *StochasticDelay {
	return &StochasticDelay{
		rng: rand.New(rand.NewSource(seed)),
		MeanMinutes: map[model.Mode]float64{
			model.ModeRoad: 15,
			model.ModeAir:  45,
			model.ModeSea:  360,
		},
	}
}

func (d *StochasticDelay) Predict(_ context.Context, e model.Edge) (float64, error) {
	mean := d.MeanMinutes[e.Mode]
	d.mu.Lock()
	v := d.rng.NormFloat64()*mean/2 + mean
	d.mu.Unlock()
	return math.Max(0, math.Round(v)), nil
}

// DelayClient asks a prediction service.
//
//	GET /predict?mode=sea&source=INCOK&target=NLRTM&departure=... -> {"delayMinutes": 95}
type DelayClient struct {
	c *Client
}

func NewDelayClient(c *Client) *DelayClient { return &DelayClient{c: c} }

func (d *DelayClient) Predict(ctx context.Context, e model.Edge) (float64, error) {
	q := url.Values{
		"mode":       {string(e.Mode)},
		"source":     {e.Source},
		"target":     {e.Target},
		"durationHr": {strconv.FormatFloat(e.DurationHours, 'f', 2, 64)},
	}
	if e.DepartureTime != nil {
		q.Set("departure", e.DepartureTime.UTC().Format(time.RFC3339))
	}
	var resp struct {
		DelayMinutes float64 `json:"delayMinutes"`
	}
	if err := d.c.GetJSON(ctx, "predict", "/predict", q, &resp); err != nil {
		return 0, err
	}
	return math.Max(0, resp.DelayMinutes), nil
}

// FallbackDelay uses Primary and switches to Fallback when it fails.
type FallbackDelay struct {
	Primary  DelayEstimator
	Fallback DelayEstimator
	Log      *zap.Logger
}

func (f FallbackDelay) Predict(ctx context.Context, e model.Edge) (float64, error) {
	v, err := f.Primary.Predict(ctx, e)
	if err == nil {
		return v, nil
	}
	if f.Log != nil {
		f.Log.Debug("delay prediction fell back to local estimate", zap.String("edge", e.ID), zap.Error(err))
	}
	return f.Fallback.Predict(ctx, e)
}
