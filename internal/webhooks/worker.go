package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"freightgraph/internal/metrics"
)

type Worker struct {
	HTTP        *http.Client
	Secret      string
	MaxAttempts int
	// Backoff is the wait before the given retry; nextBackoff when nil.
	Backoff func(attempt int) time.Duration
	Log     *zap.Logger
}

func NewWorker(secret string, maxAttempts int, log *zap.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{HTTP: &http.Client{Timeout: 5 * time.Second}, Secret: secret, MaxAttempts: maxAttempts, Log: log}
}

// Run delivers queued events until ctx is done or queue is closed.
func (w *Worker) Run(ctx context.Context, queue <-chan Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-queue:
			if !ok {
				return
			}
			w.process(ctx, d)
		}
	}
}

// process retries d until it succeeds, runs out of attempts or ctx ends.
func (w *Worker) process(ctx context.Context, d Delivery) bool {
	backoff := w.Backoff
	if backoff == nil {
		backoff = nextBackoff
	}
	for {
		start := time.Now()
		code, err := w.deliver(ctx, d)
		d.Attempts++
		latency := time.Since(start)
		if err == nil && code >= 200 && code < 300 {
			metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
			w.Log.Debug("webhook delivered", zap.String("id", d.ID), zap.String("url", d.URL), zap.Int("status", code), zap.Duration("latency", latency))
			return true
		}
		if d.Attempts >= w.MaxAttempts {
			metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
			w.Log.Warn("webhook delivery failed", zap.String("id", d.ID), zap.String("url", d.URL),
				zap.Int("attempts", d.Attempts), zap.Int("status", code), zap.Error(err))
			return false
		}
		metrics.WebhookDeliveries.WithLabelValues("retry").Inc()
		t := time.NewTimer(backoff(d.Attempts - 1))
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

func (w *Worker) deliver(ctx context.Context, d Delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	req.Header.Set("X-Event-Id", d.ID)
	if w.Secret != "" {
		now := time.Now()
		req.Header.Set("X-Timestamp", strconv.FormatInt(now.Unix(), 10))
		req.Header.Set("X-Signature", Sign(w.Secret, now, d.Payload))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
