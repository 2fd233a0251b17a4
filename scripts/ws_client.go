// Package main submits an ORTEC instance to a running API and prints the
// run's events from its WebSocket stream.
//
//	go run ./scripts/ws_client.go instances/ORTEC-VRPTW-x.txt 5000
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type runEvent struct {
	Type      string `json:"type"`
	Phase     string `json:"phase,omitempty"`
	Iteration int    `json:"iteration,omitempty"`
	Cost      int    `json:"cost"`
	Routes    int    `json:"routes"`
	Status    string `json:"status"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ws_client <instance.txt> [budgetMs]")
	}
	body, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	budget := "5000"
	if len(os.Args) > 2 {
		budget = os.Args[2]
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	req, _ := http.NewRequest(http.MethodPost, base+"/v1/solve?budgetMs="+url.QueryEscape(budget), bytes.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "solver")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("solve: %s", resp.Status)
	}
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	log.Printf("Run ID: %s", run.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + run.ID + "/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	start := time.Now()
	for {
		var evt runEvent
		if err := c.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("stream closed after %s", time.Since(start).Round(time.Millisecond))
				return
			}
			log.Fatalf("read: %v", err)
		}
		log.Printf("WS <- %s %s it=%d cost=%d routes=%d status=%s",
			evt.Type, evt.Phase, evt.Iteration, evt.Cost, evt.Routes, evt.Status)
	}
}
