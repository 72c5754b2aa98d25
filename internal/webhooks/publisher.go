// Package webhooks notifies external subscribers when explorations and graph
// builds finish. Deliveries are signed and retried with backoff.
package webhooks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freightgraph/internal/metrics"
)

// Delivery is one event bound for one URL.
type Delivery struct {
	ID        string
	EventType string
	URL       string
	Payload   []byte
	Attempts  int
}

// Publisher fans events out to the configured URLs. A nil Publisher drops
// every event.
type Publisher struct {
	urls  []string
	queue chan Delivery
	log   *zap.Logger
}

func NewPublisher(urls []string, queueSize int, log *zap.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{urls: urls, queue: make(chan Delivery, queueSize), log: log}
}

// Emit queues eventType with data for every URL. A full queue drops the
// event rather than block the caller.
func (p *Publisher) Emit(eventType string, data any) {
	if p == nil || len(p.urls) == 0 {
		return
	}
	id := "evt_" + uuid.NewString()
	body, err := json.Marshal(map[string]any{
		"id":   id,
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	})
	if err != nil {
		p.log.Warn("webhook payload not encodable", zap.String("type", eventType), zap.Error(err))
		return
	}
	for _, u := range p.urls {
		select {
		case p.queue <- Delivery{ID: id, EventType: eventType, URL: u, Payload: body}:
		default:
			metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
			p.log.Warn("webhook queue full, event dropped", zap.String("type", eventType), zap.String("url", u))
		}
	}
}

// Queue is the channel a Worker drains.
func (p *Publisher) Queue() <-chan Delivery { return p.queue }
