package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// ============================================================================
// halo-ctl - Command-line IPC Client
// ============================================================================
// Sends update commands to the matrixhalo daemon over its unix socket.
//
// Usage:
//   halo-ctl -mode heat -colour 50
//   halo-ctl -mode custom -geometry square -width 60 -percent 0.5 -element "#00FF00"
//   halo-ctl -segments "10,20,30"
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/matrixhalo.sock)
//
// Only flags that were actually set end up in the command; everything else
// is left untouched on the daemon side.
// ============================================================================

// IPCResponse is the daemon's reply.
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	var (
		socketPath = flag.String("socket", "/tmp/matrixhalo.sock", "Unix domain socket path")
		mode       = flag.String("mode", "", "Command dialect: heat|custom")
		colour     = flag.Float64("colour", 0, "Legacy heat level (0-100)")
		geometry   = flag.String("geometry", "", "Shape: ring|circle|square|triangle|x")
		width      = flag.Float64("width", 0, "Element thickness (0-100)")
		percent    = flag.Float64("percent", 0, "Arc coverage (0-1)")
		element    = flag.String("element", "", "Element color as hex (#RRGGBB)")
		background = flag.String("background", "", "Background color as hex (#RRGGBB)")
		segments   = flag.String("segments", "", "Comma-separated segment values (up to 10)")
	)
	flag.Parse()

	body := map[string]any{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			body["mode"] = *mode
		case "colour":
			body["colour"] = *colour
		case "geometry":
			body["geometry"] = *geometry
		case "width":
			body["width"] = *width
		case "percent":
			body["percent"] = *percent
		case "element":
			body["elementColor"] = *element
		case "background":
			body["backgroundColor"] = *background
		case "segments":
			vals, err := parseSegments(*segments)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			body["segments"] = vals
		}
	})

	if len(body) == 0 {
		fmt.Fprintln(os.Stderr, "error: nothing to send (set at least one field flag)")
		flag.Usage()
		os.Exit(1)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: encode command:", err)
		os.Exit(1)
	}

	conn, err := net.Dial("unix", *socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: connect to %s: %v\n", *socketPath, err)
		fmt.Fprintln(os.Stderr, "is the matrixhalo daemon running?")
		os.Exit(1)
	}
	defer conn.Close()

	if _, err := conn.Write(append(payload, '\n')); err != nil {
		fmt.Fprintln(os.Stderr, "error: send command:", err)
		os.Exit(1)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: read response:", err)
		os.Exit(1)
	}

	var resp IPCResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		fmt.Fprintln(os.Stderr, "error: decode response:", err)
		os.Exit(1)
	}

	if resp.Status != "ok" {
		fmt.Fprintln(os.Stderr, "rejected:", resp.Error)
		os.Exit(1)
	}
	fmt.Println("ok")
}

func parseSegments(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 10 {
		return nil, fmt.Errorf("too many segment values: %d (max 10)", len(parts))
	}
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad segment value %q: %w", p, err)
		}
		vals = append(vals, f)
	}
	return vals, nil
}
