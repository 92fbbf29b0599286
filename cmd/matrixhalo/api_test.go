package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestAPI(t *testing.T) (*apiServer, *StateStore, *LiveView) {
	t.Helper()
	store := NewStateStore(time.Now())
	live := NewLiveView(LiveSnapshot{Mode: ModeHeat, Geometry: GeometryRing, Colour: 30})
	srv := newAPIServer(testLogger(), store, live, DefaultConfig())
	return srv, store, live
}

func TestHandleUpdateUnauthorized(t *testing.T) {
	srv, store, _ := newTestAPI(t)
	before := store.Snapshot()

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/update", strings.NewReader(`{"colour": 50}`))
			if tt.token != "" {
				req.Header.Set(apiTokenHeader, tt.token)
			}
			rec := httptest.NewRecorder()
			srv.handleUpdate(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}

	if store.Snapshot() != before {
		t.Error("unauthorized request touched state")
	}
}

func TestHandleUpdateTokenInHeader(t *testing.T) {
	srv, store, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/update", strings.NewReader(`{"colour": 50}`))
	req.Header.Set(apiTokenHeader, defaultAPIToken)
	rec := httptest.NewRecorder()
	srv.handleUpdate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "OK" {
		t.Errorf("body = %q, want OK", got)
	}
	if store.Snapshot().ColourLevel != 50 {
		t.Errorf("colourLevel = %g, want 50", store.Snapshot().ColourLevel)
	}
}

func TestHandleUpdateTokenInQuery(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/update?token="+defaultAPIToken, strings.NewReader(`{"width": 5}`))
	rec := httptest.NewRecorder()
	srv.handleUpdate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
}

func TestHandleUpdateBadBodies(t *testing.T) {
	srv, store, _ := newTestAPI(t)
	before := store.Snapshot()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", "garbage", ErrInvalidBody.Error()},
		{"json array", "[1,2]", ErrInvalidBody.Error()},
		{"empty object", "{}", ErrNoValidFields.Error()},
		{"only unknown keys", `{"sparkles": true}`, ErrNoValidFields.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/update", strings.NewReader(tt.body))
			req.Header.Set(apiTokenHeader, defaultAPIToken)
			rec := httptest.NewRecorder()
			srv.handleUpdate(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}

	if store.Snapshot() != before {
		t.Error("rejected body touched state")
	}
}

func TestHandleUpdateMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/update", nil)
	req.Header.Set(apiTokenHeader, defaultAPIToken)
	rec := httptest.NewRecorder()
	srv.handleUpdate(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleUpdateOptionsPreflight(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/update", nil)
	rec := httptest.NewRecorder()
	srv.handleUpdate(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header on preflight")
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _, live := newTestAPI(t)
	live.Set(LiveSnapshot{
		Colour:   42.5,
		Geometry: GeometryTriangle,
		Mode:     ModeCustom,
		Age:      3.25,
		Width:    11,
		Percent:  0.5,
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap LiveSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Colour != 42.5 || snap.Geometry != GeometryTriangle || snap.Mode != ModeCustom {
		t.Errorf("snapshot round-trip mismatch: %+v", snap)
	}
}

func TestHandleConfig(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	srv.handleConfig(rec, req)

	var got staticConfig
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := staticConfig{
		Width:         defaultMatrixWidth,
		Height:        defaultMatrixHeight,
		Segments:      numSegments,
		BlankInterval: defaultBlankSec,
		AnimStep:      defaultAnimStep,
		TargetFPS:     defaultTargetFPS,
	}
	if got != want {
		t.Errorf("config = %+v, want %+v", got, want)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)

	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok, _ := got["ok"].(bool); !ok {
		t.Errorf("ok = %v, want true", got["ok"])
	}
	if _, present := got["uptime"]; !present {
		t.Error("uptime missing")
	}
}
