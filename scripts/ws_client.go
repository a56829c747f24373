// Package main queues an async solve and prints the run's event stream.
//
//	go run ./scripts/ws_client.go internal/instance/testdata/crew.json
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"

	"crewroute/internal/instance"
	"crewroute/internal/model"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatal("usage: ws_client INSTANCE")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	in, err := instance.LoadFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	body, err := json.Marshal(model.SolveRequest{Instance: *in})
	if err != nil {
		log.Fatal(err)
	}
	resp, err := http.Post(base+"/v1/solve?async=true", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("solve: %s", resp.Status)
	}
	var run model.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	log.Printf("queued run %s", run.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + run.ID + "/events"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	for {
		var evt model.Event
		if err := conn.ReadJSON(&evt); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("stream ended: %v", err)
			}
			return
		}
		data, _ := json.Marshal(evt.Data)
		fmt.Printf("%s %-13s %s\n", evt.TS.Format("15:04:05.000"), evt.Type, data)
	}
}
