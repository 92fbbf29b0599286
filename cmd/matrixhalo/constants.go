package main

import "time"

// Panel layout defaults (3x 64px panels chained side by side).
const (
	defaultMatrixWidth  = 192
	defaultMatrixHeight = 64
	defaultPanelWidth   = 64
)

// numSegments is the number of per-segment thickness slots carried through
// the whole pipeline (command, target state, live state, renderer).
const numSegments = 10

// Animation tuning defaults
const (
	defaultTargetFPS = 40   // render loop cadence (frames per second)
	defaultAnimStep  = 40.0 // scalar/segment chase rate (units per second)
	defaultColorStep = 2.0  // RGB channel chase rate (per second)

	// maxTickDt bounds the worst-case catch-up jump after a stall.
	maxTickDt = 0.1 // seconds

	// defaultGraceSec is how long after the last accepted command the
	// animation clock keeps free-running. Past it the clock freezes to
	// avoid restless churn on a stale signal.
	defaultGraceSec = 60.0

	// defaultGrayEndSec is where the renderer's grayscale background fade
	// completes (the fade ramps from grace to here).
	defaultGrayEndSec = 70.0

	// defaultBlankSec blanks the panel after this much signal silence.
	// 0 disables blanking entirely.
	defaultBlankSec = 0.0
)

// API defaults
const (
	defaultAPIPort  = 8080
	defaultAPIToken = "1234567890"
)

// defaultIPCSocket is the unix domain socket for local command ingest.
const defaultIPCSocket = "/tmp/matrixhalo.sock"

// defaultFbdevPath is the framebuffer device the pixel sink writes to.
const defaultFbdevPath = "/dev/fb0"

// initialSignalAge backdates the boot-time state so the display starts
// out "stale" until the first command arrives.
const initialSignalAge = 10 * time.Second
