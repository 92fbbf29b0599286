package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("matrixhalo v%s\n", version)
	fmt.Println("RGB matrix display controller daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  matrixhalo [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that drives an RGB LED matrix from asynchronous network")
	fmt.Println("  commands. Accepts legacy \"heat\" and \"custom\" update dialects over")
	fmt.Println("  HTTP and a local unix socket, reconciles them into one target state,")
	fmt.Println("  and animates the panel toward it at a fixed tick rate.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional)")
	fmt.Println()
	fmt.Println("  -fbdev string")
	fmt.Printf("        Framebuffer device to drive (default %q)\n", defaultFbdevPath)
	fmt.Println()
	fmt.Println("  -dry-run")
	fmt.Println("        Render to memory instead of hardware")
	fmt.Println()
	fmt.Println("  -api-port int")
	fmt.Printf("        HTTP API listener port (default %d)\n", defaultAPIPort)
	fmt.Println()
	fmt.Println("  -api-token string")
	fmt.Println("        Shared secret required in the X-API-Token header")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for local commands (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -target-fps int")
	fmt.Printf("        Render loop cadence in frames per second (default %d)\n", defaultTargetFPS)
	fmt.Println()
	fmt.Println("  -blank-sec float")
	fmt.Println("        Blank the panel after this many seconds without commands (0 disables)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		fbdevPath  = flag.String("fbdev", defaultFbdevPath, "Framebuffer device to drive")
		dryRun     = flag.Bool("dry-run", false, "Render to memory instead of hardware")
		apiPort    = flag.Int("api-port", defaultAPIPort, "HTTP API listener port")
		apiToken   = flag.String("api-token", defaultAPIToken, "Shared secret for the X-API-Token header")
		ipcSocket  = flag.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for local commands")
		targetFPS  = flag.Int("target-fps", defaultTargetFPS, "Render loop cadence in frames per second")
		blankSec   = flag.Float64("blank-sec", defaultBlankSec, "Blank after this many seconds without commands (0 disables)")
		logLevel   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVer    = flag.Bool("version", false, "Print version and exit")
		showHelp   = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVer {
		printVersion()
		return
	}

	// Config file first, then flag overrides for flags the user actually set.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fbdev":
			overrides.FbdevPath = fbdevPath
		case "dry-run":
			overrides.DryRun = dryRun
		case "api-port":
			overrides.APIPort = apiPort
		case "api-token":
			overrides.APIToken = apiToken
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocket
		case "target-fps":
			overrides.TargetFPS = targetFPS
		case "blank-sec":
			overrides.BlankSec = blankSec
		case "log-level":
			overrides.LogLevel = logLevel
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid configuration:", err)
		os.Exit(1)
	}

	level, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(level)

	// Acquire the display first; failing here aborts startup, no retry.
	remap := panelMapFromConfig(cfg.Display)
	var display Display
	if cfg.Display.DryRun {
		logger.Info("dry run: rendering to memory sink")
		display = newMemDisplay(remap)
	} else {
		fb, err := openFbdev(cfg.Display.Device, remap)
		if err != nil {
			logger.Error("failed to open display", "device", cfg.Display.Device, "error", err)
			os.Exit(1)
		}
		display = fb
	}

	store := NewStateStore(time.Now())
	live := NewLiveView(LiveSnapshot{})
	renderer := newShapeRenderer(cfg.Animation.GraceSec, cfg.Animation.GrayEndSec)

	api := newAPIServer(logger, store, live, cfg)
	ws := newWSServer(logger, live, api.authorized, HubConfig{})

	mux := http.NewServeMux()
	api.routes(mux)
	ws.Register(mux, "/ws")

	// Tick snapshots flow to the ws broadcaster; the loop never blocks on it.
	snapshots := make(chan LiveSnapshot, 64)
	loop := newRenderLoop(store, renderer, display, live, cfg.Animation, cfg.Display.Width, cfg.Display.Height, snapshots, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting matrixhalo",
		"version", version,
		"api_port", cfg.API.Port,
		"ipc_socket", cfg.IPC.SocketPath,
		"display", cfg.Display.Device,
		"matrix", fmt.Sprintf("%dx%d", cfg.Display.Width, cfg.Display.Height),
		"target_fps", cfg.Animation.TargetFPS,
		"blank_sec", cfg.Animation.BlankSec,
		"dry_run", cfg.Display.DryRun)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return runAPIServer(gctx, cfg.API.Port, mux, logger) })
	g.Go(func() error { return runIPCServer(gctx, cfg.IPC.SocketPath, store, logger) })
	g.Go(func() error { return ws.Hub().Run(gctx) })
	g.Go(func() error { return runBroadcaster(gctx, ws.Hub(), snapshots, logger) })
	g.Go(func() error { return loop.run(gctx) })

	// Close the display before any exit below: os.Exit skips deferred calls.
	waitErr := g.Wait()
	shutdownDisplay(display, logger)

	if waitErr != nil {
		logger.Error("shutdown with error", "error", waitErr)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// shutdownDisplay releases the pixel sink (munmap + fd for the framebuffer).
func shutdownDisplay(d Display, logger *slog.Logger) {
	if err := d.Close(); err != nil {
		logger.Warn("display close failed", "error", err)
	}
}
