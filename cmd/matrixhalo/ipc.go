package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Local clients (halo-ctl, scripts, automation) send update commands without
// going through HTTP. Filesystem permissions are the access boundary; there
// is no token on this path.
//
// Protocol: line-delimited JSON
//   - Client sends one update body per line (the exact POST /update format)
//   - Server responds {"status":"ok"} or {"status":"error","error":"msg"}
// ============================================================================

// IPCResponse is the reply sent back to IPC clients.
type IPCResponse struct {
	Status string `json:"status"`          // "ok" or "error"
	Error  string `json:"error,omitempty"` // set when status == "error"
}

// runIPCServer serves the unix socket until ctx is canceled, then closes the
// listener and removes the socket file.
func runIPCServer(ctx context.Context, socketPath string, store *StateStore, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("ipc listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("ipc listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				logger.Debug("ipc listener closed")
				return nil
			}
			logger.Error("ipc accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, store, logger)
	}
}

// handleIPCConnection processes a single IPC client connection.
func handleIPCConnection(conn net.Conn, store *StateStore, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("ipc connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()

		cmd, err := parseUpdate(line)
		if err == nil {
			_, err = store.Apply(cmd, time.Now())
		}

		if err != nil {
			logger.Warn("ipc update rejected", "reason", err)
			if encErr := encoder.Encode(IPCResponse{Status: "error", Error: err.Error()}); encErr != nil {
				logger.Error("ipc failed to send error response", "error", encErr)
				return
			}
			continue
		}

		if encErr := encoder.Encode(IPCResponse{Status: "ok"}); encErr != nil {
			logger.Error("ipc failed to send response", "error", encErr)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Debug("ipc read error", "error", err)
	}
}
