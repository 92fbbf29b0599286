package main

import (
	"sync"
	"time"
)

// ============================================================================
// Display State Model
// ============================================================================
// TargetState is the last externally requested appearance. It is mutated only
// through StateStore.Apply (which routes through the reconciler) and is the
// single object shared between the command ingest paths and the render loop.
//
// LiveState is the per-tick interpolated state handed to the renderer. It is
// owned exclusively by the render loop goroutine.
// ============================================================================

// TargetState is the desired (not yet rendered) appearance of the panel.
type TargetState struct {
	Mode     Mode
	Geometry Geometry

	ColourLevel float64 // 0..100 legacy heat level
	Width       float64 // 0..100 element thickness
	Percent     float64 // 0..1 arc coverage

	ElementColor    RGB
	BackgroundColor RGB

	// Segments are accepted unnormalized from input; the renderer
	// normalizes when it applies them.
	Segments [numSegments]float64

	// Presence flags: whether element/background color were ever set,
	// explicitly or through mode normalization.
	HaveElementColor    bool
	HaveBackgroundColor bool

	// LastUpdate is the acceptance time of the most recent command.
	LastUpdate time.Time
}

// defaultTargetState is the boot-time appearance: legacy heat ring on blue.
// LastUpdate is backdated so the signal starts out stale.
func defaultTargetState(now time.Time) TargetState {
	return TargetState{
		Mode:            ModeHeat,
		Geometry:        GeometryRing,
		ColourLevel:     30,
		Width:           20,
		Percent:         1,
		ElementColor:    colorWhite,
		BackgroundColor: colorBlue,
		LastUpdate:      now.Add(-initialSignalAge),
	}
}

// LiveState mirrors TargetState's numeric and color fields and chases them
// tick by tick. Discrete fields copy instantly.
type LiveState struct {
	Mode     Mode
	Geometry Geometry

	ColourLevel float64
	Width       float64
	Percent     float64

	ElementColor    RGB
	BackgroundColor RGB

	Segments [numSegments]float64

	HaveElementColor    bool
	HaveBackgroundColor bool
}

// liveFromTarget seeds a LiveState directly from a target, skipping the chase.
// Used once at startup so the first frames start from the default look.
func liveFromTarget(t TargetState) LiveState {
	return LiveState{
		Mode:                t.Mode,
		Geometry:            t.Geometry,
		ColourLevel:         t.ColourLevel,
		Width:               t.Width,
		Percent:             t.Percent,
		ElementColor:        t.ElementColor,
		BackgroundColor:     t.BackgroundColor,
		Segments:            t.Segments,
		HaveElementColor:    t.HaveElementColor,
		HaveBackgroundColor: t.HaveBackgroundColor,
	}
}

// ============================================================================
// StateStore
// ============================================================================

// StateStore owns the single mutable TargetState. Concurrent Apply calls
// serialize on the mutex; the critical section copies fields and nothing
// else, so it never blocks on anything external.
type StateStore struct {
	mu     sync.Mutex
	target TargetState
}

func NewStateStore(now time.Time) *StateStore {
	return &StateStore{target: defaultTargetState(now)}
}

// Apply reconciles cmd into the target state and returns the new snapshot.
// A command with zero recognized fields is rejected without touching state.
func (s *StateStore) Apply(cmd UpdateCommand, now time.Time) (TargetState, error) {
	if cmd.empty() {
		return TargetState{}, ErrNoValidFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.target = reconcile(s.target, cmd, now)
	return s.target, nil
}

// Snapshot returns an independent copy of the target state. All fields are
// value types, so the copy is unaffected by later mutation.
func (s *StateStore) Snapshot() TargetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// ============================================================================
// Live view (render loop -> API handlers / ws broadcasts)
// ============================================================================

// LiveSnapshot is the externally visible projection of the live state,
// published by the render loop once per tick.
type LiveSnapshot struct {
	Colour   float64              `json:"colour"`
	Geometry Geometry             `json:"geometry"`
	Segments [numSegments]float64 `json:"segments"`
	Age      float64              `json:"age"`
	Quiet    bool                 `json:"quiet"`
	Mode     Mode                 `json:"mode"`
	Width    float64              `json:"width"`
	Percent  float64              `json:"percent"`
}

// LiveView holds the latest LiveSnapshot for readers outside the render
// loop (status endpoint, ws state_init). Writers: render loop only.
type LiveView struct {
	mu   sync.Mutex
	snap LiveSnapshot
}

func NewLiveView(initial LiveSnapshot) *LiveView {
	return &LiveView{snap: initial}
}

func (v *LiveView) Set(snap LiveSnapshot) {
	v.mu.Lock()
	v.snap = snap
	v.mu.Unlock()
}

func (v *LiveView) Get() LiveSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}
