package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"freightgraph/internal/config"
	"freightgraph/internal/errs"
	"freightgraph/internal/metrics"
)

const maxBody = 10 << 20

// Client is the shared HTTP plumbing of every JSON provider: rate limiting,
// a circuit breaker, bounded retries with backoff and bearer token handling.
type Client struct {
	name       string
	base       *url.URL
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	tokens     *TokenSource
	apiKey     string
	maxRetries int
	log        *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewClient(name string, cfg config.ProviderConfig, log *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s provider: base URL not configured", name)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", name, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("provider", name))
	c := &Client{
		name:       name,
		base:       base,
		http:       &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), max(cfg.Burst, 1)),
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		log:        log,
		sleep:      sleepCtx,
	}
	if cfg.RPS <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("provider circuit breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Caller mistakes and cancellations say nothing about provider health.
			var pe *errs.ProviderError
			if errors.As(err, &pe) && pe.Status >= 400 && pe.Status < 500 && pe.Status != http.StatusTooManyRequests {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	if cfg.TokenURL != "" {
		c.tokens = NewTokenSource(clientCredentials(c.http, cfg))
	}
	return c, nil
}

// GetJSON performs GET base+path?q and decodes the JSON response into out.
// Every failure is returned as *errs.ProviderError.
func (c *Client) GetJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	start := time.Now()
	err := c.getJSON(ctx, op, path, q, out)
	metrics.ProviderLatency.WithLabelValues(c.name, op).Observe(float64(time.Since(start).Milliseconds()))
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
	}
	metrics.ProviderCalls.WithLabelValues(c.name, op, outcome).Inc()
	return err
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	u := *c.base
	u.Path = u.Path + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = q.Encode()

	var lastErr error
	refreshed := false
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, nextBackoff(attempt-1)); err != nil {
				return c.fail(op, 0, err)
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(op, 0, err)
		}
		body, err := c.breaker.Execute(func() (any, error) { return c.do(ctx, op, u.String()) })
		if err == nil {
			if err := json.Unmarshal(body.([]byte), out); err != nil {
				return c.fail(op, 0, fmt.Errorf("decode response: %w", err))
			}
			return nil
		}
		lastErr = err
		var pe *errs.ProviderError
		if errors.As(err, &pe) && pe.Status == http.StatusUnauthorized && c.tokens != nil && !refreshed {
			c.tokens.MarkExpired()
			refreshed = true
			attempt--
			continue
		}
		if !retryable(err) {
			break
		}
		c.log.Debug("provider call failed, retrying", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	var pe *errs.ProviderError
	if errors.As(lastErr, &pe) {
		return lastErr
	}
	return c.fail(op, 0, lastErr)
}

func (c *Client) do(ctx context.Context, op, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, c.fail(op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, c.fail(op, 0, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(op, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, c.fail(op, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, c.fail(op, resp.StatusCode, fmt.Errorf("unexpected status: %s", msg))
	}
	return body, nil
}

func (c *Client) fail(op string, status int, err error) error {
	return &errs.ProviderError{Provider: c.name, Op: op, Status: status, Err: err}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var pe *errs.ProviderError
	if errors.As(err, &pe) && pe.Status != 0 {
		return pe.Status == http.StatusTooManyRequests || pe.Status >= 500
	}
	return true
}

// nextBackoff doubles from 250ms per attempt, capped at 10s.
func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := 250 * time.Millisecond * time.Duration(1<<attempts)
	if base > 10*time.Second {
		base = 10 * time.Second
	}
	return base
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// clientCredentials exchanges the configured client id and secret for a
// bearer token. Tokens without an expiry are kept for an hour.
func clientCredentials(hc *http.Client, cfg config.ProviderConfig) RefreshFunc {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return func(ctx context.Context) (string, time.Time, error) {
		tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, hc))
		if err != nil {
			return "", time.Time{}, err
		}
		exp := tok.Expiry
		if exp.IsZero() {
			exp = time.Now().Add(time.Hour)
		}
		return tok.AccessToken, exp, nil
	}
}
