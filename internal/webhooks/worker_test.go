package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noWait(int) time.Duration { return time.Millisecond }

func TestWorkerDeliversSignedEvent(t *testing.T) {
	type got struct {
		sig, ts, typ string
		body         []byte
	}
	recv := make(chan got, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		recv <- got{sig: r.Header.Get("X-Signature"), ts: r.Header.Get("X-Timestamp"), typ: r.Header.Get("X-Event-Type"), body: b}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewPublisher([]string{srv.URL}, 4, nil)
	w := NewWorker("secret", 3, nil)
	w.HTTP = srv.Client()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, p.Queue())

	p.Emit("exploration.completed", map[string]any{"streamId": "s1"})

	select {
	case g := <-recv:
		assert.Equal(t, "exploration.completed", g.typ)
		assert.True(t, Verify("secret", g.ts, g.body, g.sig, time.Minute))
		assert.False(t, Verify("other", g.ts, g.body, g.sig, time.Minute))
		var evt struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(g.body, &evt))
		assert.Equal(t, "s1", evt.Data["streamId"])
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := &Worker{HTTP: srv.Client(), MaxAttempts: 5, Backoff: noWait, Log: zap.NewNop()}
	ok := w.process(context.Background(), Delivery{ID: "evt_1", EventType: "graph.built", URL: srv.URL, Payload: []byte(`{}`)})
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWorkerGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWorker("", 2, nil)
	w.HTTP = srv.Client()
	w.Backoff = noWait
	assert.False(t, w.process(context.Background(), Delivery{URL: srv.URL, Payload: []byte(`{}`)}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestPublisherDropsWhenFull(t *testing.T) {
	p := NewPublisher([]string{"http://a", "http://b"}, 1, nil)
	p.Emit("graph.built", nil)
	assert.Len(t, p.Queue(), 1)

	var nilPub *Publisher
	require.NotPanics(t, func() { nilPub.Emit("graph.built", nil) })
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(-1))
	assert.Equal(t, 8*time.Second, nextBackoff(3))
	assert.Equal(t, 1024*time.Second, nextBackoff(42))
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	old := time.Now().Add(-time.Hour)
	sig := Sign("k", old, []byte("x"))
	ts := strconv.FormatInt(old.Unix(), 10)
	assert.False(t, Verify("k", ts, []byte("x"), sig, time.Minute))
	assert.True(t, Verify("k", ts, []byte("x"), sig, 0))
	assert.False(t, Verify("k", "not-a-number", []byte("x"), sig, 0))
}
