package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// ws-watch connects to the matrixhalo daemon's /ws endpoint and prints the
// live-state broadcasts as they arrive. Handy for watching the panel chase
// its targets without standing in front of the hardware.

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8080/ws", "matrixhalo websocket URL")
		token = flag.String("token", "1234567890", "API token")
		raw   = flag.Bool("raw", false, "Print raw JSON frames instead of a summary line")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}
	q := u.Query()
	q.Set("token", *token)
	u.RawQuery = q.Encode()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	type frame struct {
		Type string `json:"type"`
		Data struct {
			Colour   float64   `json:"colour"`
			Geometry string    `json:"geometry"`
			Segments []float64 `json:"segments"`
			Age      float64   `json:"age"`
			Quiet    bool      `json:"quiet"`
			Mode     string    `json:"mode"`
			Width    float64   `json:"width"`
			Percent  float64   `json:"percent"`
		} `json:"data"`
	}

	msgs := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			msgs <- msg
		}
	}()

	for {
		select {
		case <-sigc:
			log.Printf("bye")
			return

		case err := <-readErr:
			log.Fatalf("read error: %v", err)

		case msg := <-msgs:
			if *raw {
				fmt.Println(string(msg))
				continue
			}
			var f frame
			if err := json.Unmarshal(msg, &f); err != nil {
				log.Printf("bad frame: %v", err)
				continue
			}
			fmt.Printf("[%s] mode=%s geom=%s colour=%.1f width=%.1f percent=%.2f age=%.1fs quiet=%v\n",
				f.Type, f.Data.Mode, f.Data.Geometry, f.Data.Colour, f.Data.Width, f.Data.Percent, f.Data.Age, f.Data.Quiet)
		}
	}
}
