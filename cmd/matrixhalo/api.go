package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ============================================================================
// HTTP API
// ============================================================================
// POST /update  - accept a (partial) display command; token-gated
// GET  /status  - current live projection
// GET  /config  - static process-lifetime facts
// GET  /health  - liveness + uptime
// GET  /ws      - live-state websocket stream (state_ws.go)
//
// The shared-secret token is checked before any parsing. Malformed commands
// are rejected with a short reason and logged; they never touch state.
// ============================================================================

const apiTokenHeader = "X-API-Token"

type apiServer struct {
	logger *slog.Logger

	store *StateStore
	live  *LiveView

	token string
	cfg   Config
	start time.Time
}

func newAPIServer(logger *slog.Logger, store *StateStore, live *LiveView, cfg Config) *apiServer {
	return &apiServer{
		logger: logger,
		store:  store,
		live:   live,
		token:  cfg.API.Token,
		cfg:    cfg,
		start:  time.Now(),
	}
}

func (s *apiServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("/update", s.handleUpdate)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/health", s.handleHealth)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", apiTokenHeader+", Content-Type")
}

// authorized performs a constant-time shared-secret check.
func (s *apiServer) authorized(r *http.Request) bool {
	got := r.Header.Get(apiTokenHeader)
	if got == "" {
		got = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func (s *apiServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		http.Error(w, ErrInvalidBody.Error(), http.StatusBadRequest)
		return
	}

	cmd, err := parseUpdate(body)
	if err != nil {
		s.logger.Warn("update rejected", "reason", err, "remote_addr", r.RemoteAddr)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := s.store.Apply(cmd, time.Now())
	if err != nil {
		s.logger.Warn("update rejected", "reason", err, "remote_addr", r.RemoteAddr)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("update accepted",
		"mode", snap.Mode,
		"geometry", snap.Geometry,
		"colour", snap.ColourLevel,
		"width", snap.Width,
		"percent", snap.Percent)

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "OK")
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, s.live.Get(), s.logger)
}

// staticConfig is the /config payload: facts that never change while the
// process runs.
type staticConfig struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Segments      int     `json:"segments"`
	BlankInterval float64 `json:"blankInterval"`
	AnimStep      float64 `json:"animStep"`
	TargetFPS     int     `json:"targetFps"`
}

func (s *apiServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, staticConfig{
		Width:         s.cfg.Display.Width,
		Height:        s.cfg.Display.Height,
		Segments:      numSegments,
		BlankInterval: s.cfg.Animation.BlankSec,
		AnimStep:      s.cfg.Animation.AnimStep,
		TargetFPS:     s.cfg.Animation.TargetFPS,
	}, s.logger)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, map[string]any{
		"ok":     true,
		"uptime": int64(time.Since(s.start).Seconds()),
	}, s.logger)
}

func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", "error", err)
	}
}

// runAPIServer starts the HTTP server and shuts it down gracefully when ctx
// is canceled.
func runAPIServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	logger.Info("api listening", "port", port)

	errCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
