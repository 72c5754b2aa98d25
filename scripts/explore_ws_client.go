// Package main runs a demo client that explores sea routes over WebSocket
// while following the same run on the server-sent event stream.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	port := envOr("PORT", "8080")
	base := fmt.Sprintf("http://localhost:%s", port)
	streamID := uuid.NewString()

	// Follow the SSE stream of the run
	go func() {
		resp, err := http.Get(base + "/v1/explorations/" + streamID + "/events")
		if err != nil {
			log.Printf("sse: %v", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "event: ") {
				log.Printf("SSE <- %s", strings.TrimPrefix(line, "event: "))
			}
		}
	}()
	time.Sleep(200 * time.Millisecond)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/explore/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	payload := map[string]any{
		"startPort": envOr("START_PORT", "INCOK"),
		"endPort":   envOr("END_PORT", "NLRTM"),
		"startDate": envOr("START_DATE", time.Now().UTC().Format(time.DateOnly)),
		"streamId":  streamID,
	}
	pl, _ := json.Marshal(payload)
	if err := c.WriteJSON(wsMessage{Type: "explore", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			log.Printf("read: %v", err)
			return
		}
		switch m.Type {
		case "progress":
			log.Printf("WS <- progress: %s", string(m.Payload))
		case "result":
			var res struct {
				CompleteRoutes []struct {
					Path []string `json:"path"`
				} `json:"completeRoutes"`
				Stats json.RawMessage `json:"stats"`
			}
			_ = json.Unmarshal(m.Payload, &res)
			for _, r := range res.CompleteRoutes {
				log.Printf("route: %s", strings.Join(r.Path, " > "))
			}
			log.Printf("stats: %s", string(res.Stats))
			return
		case "error":
			log.Fatalf("exploration failed: %s", string(m.Payload))
		default:
			log.Printf("WS <- %s", m.Type)
		}
	}
}
