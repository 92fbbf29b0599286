package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Render Loop
// ============================================================================
// The single render-tick goroutine. Each tick: measure and clamp elapsed
// time, snapshot the target state, advance the live state, decide between
// rendering and blanking, then push the frame to the display. The loop never
// blocks on command handling; commands never block on the loop beyond the
// StateStore's brief critical section.
// ============================================================================

type renderLoop struct {
	store    *StateStore
	renderer FrameRenderer
	display  Display
	live     *LiveView

	logger *slog.Logger

	// Tuning
	targetFPS int
	animStep  float64
	colorStep float64
	grace     time.Duration
	blank     time.Duration // 0 disables blanking

	// epoch anchors the renderer's animation clock at process start.
	epoch time.Time

	// broadcast receives one coalescible snapshot per tick; nil disables.
	broadcast chan<- LiveSnapshot

	state    LiveState
	lastTick time.Time
	buf      *PixelBuffer
}

func newRenderLoop(store *StateStore, renderer FrameRenderer, display Display, live *LiveView, cfg AnimationConfig, w, h int, broadcast chan<- LiveSnapshot, logger *slog.Logger) *renderLoop {
	now := time.Now()
	return &renderLoop{
		store:     store,
		renderer:  renderer,
		display:   display,
		live:      live,
		logger:    logger,
		targetFPS: cfg.TargetFPS,
		animStep:  cfg.AnimStep,
		colorStep: cfg.ColorStep,
		grace:     secondsToDuration(cfg.GraceSec),
		blank:     secondsToDuration(cfg.BlankSec),
		epoch:     now,
		broadcast: broadcast,
		state:     liveFromTarget(store.Snapshot()),
		lastTick:  now,
		buf:       NewPixelBuffer(w, h),
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// run drives ticks at the target cadence until ctx is canceled, then blanks
// the display on the way out.
func (r *renderLoop) run(ctx context.Context) error {
	period := time.Second / time.Duration(r.targetFPS)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	r.logger.Info("render loop starting", "target_fps", r.targetFPS, "period", period)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("render loop stopping")
			if err := r.display.Blank(); err != nil {
				r.logger.Warn("blank on shutdown failed", "error", err)
			}
			return nil

		case now := <-ticker.C:
			r.tick(now)
		}
	}
}

// tick performs one integration + output step. Separated from run so tests
// can drive it with synthetic times.
func (r *renderLoop) tick(now time.Time) {
	dt := clampDt(now.Sub(r.lastTick).Seconds())
	r.lastTick = now

	target := r.store.Snapshot()
	r.state.advance(target, dt, r.animStep, r.colorStep)

	age := signalAge(now, target)
	clock := animationClock(now, target, r.grace).Sub(r.epoch).Seconds()

	if r.blank == 0 || age < r.blank.Seconds() {
		if err := r.renderer.Render(r.buf, r.state, age, clock); err != nil {
			r.logger.Warn("render failed, blanking frame", "error", err)
			if err := r.display.Blank(); err != nil {
				r.logger.Warn("blank failed", "error", err)
			}
		} else if err := r.display.Frame(r.buf); err != nil {
			r.logger.Warn("frame output failed, blanking", "error", err)
			if err := r.display.Blank(); err != nil {
				r.logger.Warn("blank failed", "error", err)
			}
		}
	} else {
		if err := r.display.Blank(); err != nil {
			r.logger.Warn("blank failed", "error", err)
		}
	}

	snap := r.snapshot(age)
	r.live.Set(snap)

	if r.broadcast != nil {
		// Never block the tick on slow consumers; the broadcaster
		// coalesces latest-wins anyway.
		select {
		case r.broadcast <- snap:
		default:
		}
	}
}

// snapshot projects the live state for external readers.
func (r *renderLoop) snapshot(age float64) LiveSnapshot {
	return LiveSnapshot{
		Colour:   r.state.ColourLevel,
		Geometry: r.state.Geometry,
		Segments: r.state.Segments,
		Age:      age,
		Quiet:    r.blank != 0 && age > r.blank.Seconds(),
		Mode:     r.state.Mode,
		Width:    r.state.Width,
		Percent:  r.state.Percent,
	}
}
