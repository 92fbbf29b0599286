package main

import "time"

// ============================================================================
// Mode Reconciliation
// ============================================================================
// reconcile merges one update command into the previous target state. It is
// pure: no I/O, no mutation of prev, deterministic apart from stamping the
// supplied acceptance time.
//
// Two ordered phases:
//
//  1. Raw overrides: every field present in cmd overwrites the matching
//     field of prev, with range clamping. Absent fields pass through.
//
//  2. Mode normalization: the invariants of the resulting mode are applied
//     on top, using presence information from THIS command only.
//
// Heat mode invariants: geometry is always ring, element color is always
// pure white, and the background follows the heat gradient of the colour
// level unless this command carried an explicit background color.
//
// Custom mode: a legacy colour level without an explicit background color
// translates into the background once, at acceptance. There is deliberately
// no change detection: re-sending the same colour re-derives the same
// background.
// ============================================================================

func reconcile(prev TargetState, cmd UpdateCommand, now time.Time) TargetState {
	next := prev

	// Phase 1: raw field overrides.
	if cmd.Mode != nil {
		next.Mode = *cmd.Mode
	}
	if cmd.Colour != nil {
		next.ColourLevel = clampFloat(*cmd.Colour, 0, 100)
	}
	if cmd.Geometry != nil {
		next.Geometry = *cmd.Geometry
	}
	if cmd.Segments != nil {
		// Partial replacement: only the supplied leading slots change.
		for i, v := range cmd.Segments {
			next.Segments[i] = v
		}
	}
	if cmd.Width != nil {
		next.Width = clampFloat(*cmd.Width, 0, 100)
	}
	if cmd.Percent != nil {
		next.Percent = clampFloat(*cmd.Percent, 0, 1)
	}
	if cmd.ElementColor != nil {
		next.ElementColor = *cmd.ElementColor
		next.HaveElementColor = true
	}
	if cmd.BackgroundColor != nil {
		next.BackgroundColor = *cmd.BackgroundColor
		next.HaveBackgroundColor = true
	}

	// Phase 2: mode normalization.
	if next.Mode == ModeHeat {
		next.Geometry = GeometryRing
		next.ElementColor = colorWhite
		next.HaveElementColor = true

		// The background must follow the heat translation unless this
		// command explicitly provided one, even when the colour level
		// came from an earlier command.
		if cmd.BackgroundColor == nil {
			next.BackgroundColor = heatColorGradient(next.ColourLevel)
			next.HaveBackgroundColor = true
		}
	} else {
		// Custom mode: one-shot legacy colour translation.
		if cmd.BackgroundColor == nil && cmd.Colour != nil {
			next.BackgroundColor = heatColorGradient(next.ColourLevel)
			next.HaveBackgroundColor = true
		}
	}

	next.LastUpdate = now
	return next
}
