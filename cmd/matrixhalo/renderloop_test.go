package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeRenderer struct {
	calls int
	err   error

	lastAge   float64
	lastClock float64
	lastLive  LiveState
}

func (f *fakeRenderer) Render(buf *PixelBuffer, live LiveState, age, clock float64) error {
	f.calls++
	f.lastAge = age
	f.lastClock = clock
	f.lastLive = live
	return f.err
}

type fakeDisplay struct {
	frames   int
	blanks   int
	closes   int
	frameErr error
	closeErr error
}

func (f *fakeDisplay) Frame(buf *PixelBuffer) error { f.frames++; return f.frameErr }
func (f *fakeDisplay) Blank() error                 { f.blanks++; return nil }
func (f *fakeDisplay) Close() error                 { f.closes++; return f.closeErr }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAnimConfig(blankSec float64) AnimationConfig {
	return AnimationConfig{
		TargetFPS: defaultTargetFPS,
		AnimStep:  defaultAnimStep,
		ColorStep: defaultColorStep,
		GraceSec:  defaultGraceSec,
		BlankSec:  blankSec,
	}
}

func newTestLoop(t *testing.T, store *StateStore, fr FrameRenderer, fd Display, blankSec float64) (*renderLoop, *LiveView) {
	t.Helper()
	live := NewLiveView(LiveSnapshot{})
	loop := newRenderLoop(store, fr, fd, live, testAnimConfig(blankSec), 16, 8, nil, testLogger())
	return loop, live
}

func TestTickRendersAndPublishes(t *testing.T) {
	now := time.Now()
	store := NewStateStore(now)
	fr := &fakeRenderer{}
	fd := &fakeDisplay{}
	loop, live := newTestLoop(t, store, fr, fd, 0)

	loop.tick(now.Add(25 * time.Millisecond))

	if fr.calls != 1 {
		t.Fatalf("render calls = %d, want 1", fr.calls)
	}
	if fd.frames != 1 || fd.blanks != 0 {
		t.Fatalf("frames=%d blanks=%d, want 1/0", fd.frames, fd.blanks)
	}

	snap := live.Get()
	if snap.Mode != ModeHeat || snap.Geometry != GeometryRing {
		t.Errorf("published snapshot %+v missing default discrete state", snap)
	}
	if snap.Quiet {
		t.Error("quiet should be false with blanking disabled")
	}
}

func TestTickBlankingDisabledNeverBlanks(t *testing.T) {
	now := time.Now()
	store := NewStateStore(now)
	fr := &fakeRenderer{}
	fd := &fakeDisplay{}
	loop, _ := newTestLoop(t, store, fr, fd, 0)

	// Default state is backdated; with blankSec 0 even a very old signal
	// still renders.
	loop.tick(now.Add(24 * time.Hour))

	if fd.blanks != 0 {
		t.Fatalf("blanks = %d, want 0", fd.blanks)
	}
	if fr.calls != 1 {
		t.Fatalf("render calls = %d, want 1", fr.calls)
	}
}

func TestTickBlanksPastThreshold(t *testing.T) {
	now := time.Now()
	store := NewStateStore(now)
	fr := &fakeRenderer{}
	fd := &fakeDisplay{}
	loop, live := newTestLoop(t, store, fr, fd, 30)

	// Default LastUpdate is backdated by initialSignalAge; push well past 30s.
	loop.tick(now.Add(31 * time.Second))

	if fr.calls != 0 {
		t.Fatalf("render calls = %d, want 0 (blanked)", fr.calls)
	}
	if fd.blanks != 1 {
		t.Fatalf("blanks = %d, want 1", fd.blanks)
	}
	if !live.Get().Quiet {
		t.Error("quiet should be true past the blank threshold")
	}
}

func TestTickFreshSignalRendersWithBlankingEnabled(t *testing.T) {
	now := time.Now()
	store := NewStateStore(now)
	if _, err := store.Apply(UpdateCommand{Colour: ptrFloat(50)}, now); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	fr := &fakeRenderer{}
	fd := &fakeDisplay{}
	loop, live := newTestLoop(t, store, fr, fd, 30)

	loop.tick(now.Add(5 * time.Second))

	if fr.calls != 1 || fd.blanks != 0 {
		t.Fatalf("calls=%d blanks=%d, want 1/0", fr.calls, fd.blanks)
	}
	if live.Get().Quiet {
		t.Error("quiet should be false while the signal is fresh")
	}
}

func TestTickRenderErrorFallsBackToBlank(t *testing.T) {
	now := time.Now()
	store := NewStateStore(now)
	fr := &fakeRenderer{err: errors.New("boom")}
	fd := &fakeDisplay{}
	loop, _ := newTestLoop(t, store, fr, fd, 0)

	loop.tick(now.Add(25 * time.Millisecond))

	if fd.frames != 0 {
		t.Fatalf("frames = %d, want 0 after render error", fd.frames)
	}
	if fd.blanks != 1 {
		t.Fatalf("blanks = %d, want 1", fd.blanks)
	}
}

func TestTickFrameErrorFallsBackToBlank(t *testing.T) {
	now := time.Now()
	store := NewStateStore(now)
	fr := &fakeRenderer{}
	fd := &fakeDisplay{frameErr: errors.New("device gone")}
	loop, _ := newTestLoop(t, store, fr, fd, 0)

	loop.tick(now.Add(25 * time.Millisecond))

	if fd.frames != 1 {
		t.Fatalf("frames = %d, want 1 attempt", fd.frames)
	}
	if fd.blanks != 1 {
		t.Fatalf("blanks = %d, want 1 fallback", fd.blanks)
	}
}

func TestTickClampsStallDt(t *testing.T) {
	now := time.Now()
	store := NewStateStore(now)
	fr := &fakeRenderer{}
	fd := &fakeDisplay{}
	loop, _ := newTestLoop(t, store, fr, fd, 0)

	// Command lands after the loop seeded its live state from the default.
	if _, err := store.Apply(UpdateCommand{Colour: ptrFloat(100), Mode: ptrMode(ModeCustom)}, now); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Live starts at colour 30 (the boot default). A 5 second stall still
	// integrates at most maxTickDt worth of movement.
	loop.tick(now.Add(5 * time.Second))

	moved := fr.lastLive.ColourLevel - 30
	maxMove := defaultAnimStep * maxTickDt
	if moved > maxMove+floatTol {
		t.Errorf("moved %g in one tick, want at most %g", moved, maxMove)
	}
	if moved <= 0 {
		t.Errorf("live state did not move: %g", moved)
	}
}

func TestTickFrozenClockPastGrace(t *testing.T) {
	now := time.Now()
	store := NewStateStore(now)
	fr := &fakeRenderer{}
	fd := &fakeDisplay{}
	loop, _ := newTestLoop(t, store, fr, fd, 0)

	// Two ticks long past the grace window must see the same clock value.
	loop.tick(now.Add(200 * time.Second))
	first := fr.lastClock
	loop.tick(now.Add(201 * time.Second))
	if fr.lastClock != first {
		t.Errorf("clock advanced while stale: %g -> %g", first, fr.lastClock)
	}

	// Age keeps advancing regardless.
	if fr.lastAge <= 200 {
		t.Errorf("age = %g, want > 200", fr.lastAge)
	}
}

func TestTickBroadcastNeverBlocks(t *testing.T) {
	now := time.Now()
	store := NewStateStore(now)
	fr := &fakeRenderer{}
	fd := &fakeDisplay{}
	live := NewLiveView(LiveSnapshot{})

	// Capacity-1 channel that nobody drains: the second tick must drop its
	// snapshot instead of blocking.
	ch := make(chan LiveSnapshot, 1)
	loop := newRenderLoop(store, fr, fd, live, testAnimConfig(0), 16, 8, ch, testLogger())

	done := make(chan struct{})
	go func() {
		loop.tick(now.Add(25 * time.Millisecond))
		loop.tick(now.Add(50 * time.Millisecond))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick blocked on full broadcast channel")
	}
	if len(ch) != 1 {
		t.Errorf("channel depth = %d, want 1", len(ch))
	}
}
