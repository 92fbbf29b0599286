package main

import (
	"encoding/json"
	"errors"
)

// ============================================================================
// Update Command Parsing
// ============================================================================
// An update body is a JSON object where every recognized key is optional.
// Absence means "no opinion", never "reset to default".
//
// Per-field tolerance: a value that fails to decode for a given field (wrong
// JSON type, unknown geometry name, malformed hex color) drops that field
// only. The whole parse fails only when the body is not a JSON object, or
// when no recognized field survives.
// ============================================================================

var (
	// ErrInvalidBody means the request body was not a JSON object at all.
	ErrInvalidBody = errors.New("invalid body")

	// ErrNoValidFields means the body decoded but carried zero recognized fields.
	ErrNoValidFields = errors.New("no valid fields")
)

// Mode selects which command dialect governs the display.
type Mode string

const (
	ModeHeat   Mode = "heat"
	ModeCustom Mode = "custom"
)

// Geometry names the shape drawn on the panel.
type Geometry string

const (
	GeometryRing     Geometry = "ring"
	GeometryCircle   Geometry = "circle"
	GeometrySquare   Geometry = "square"
	GeometryTriangle Geometry = "triangle"
	GeometryX        Geometry = "x"
)

func parseGeometry(s string) (Geometry, bool) {
	switch Geometry(s) {
	case GeometryRing, GeometryCircle, GeometrySquare, GeometryTriangle, GeometryX:
		return Geometry(s), true
	default:
		return "", false
	}
}

func parseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeHeat, ModeCustom:
		return Mode(s), true
	default:
		return "", false
	}
}

// UpdateCommand is the typed, optional-field form of an update body.
// A nil pointer (or nil Segments slice) means the field was absent.
type UpdateCommand struct {
	Mode            *Mode
	Colour          *float64
	Geometry        *Geometry
	Segments        []float64 // at most numSegments entries; replaces leading slots only
	Width           *float64
	Percent         *float64
	ElementColor    *RGB
	BackgroundColor *RGB
}

// empty reports whether no recognized field was present.
func (c UpdateCommand) empty() bool {
	return c.Mode == nil &&
		c.Colour == nil &&
		c.Geometry == nil &&
		c.Segments == nil &&
		c.Width == nil &&
		c.Percent == nil &&
		c.ElementColor == nil &&
		c.BackgroundColor == nil
}

// parseUpdate decodes an update body into an UpdateCommand.
//
// Unrecognized keys are ignored. Numeric parsing is plain JSON base-10;
// hex colors accept "#RRGGBB" or "RRGGBB" in either case.
func parseUpdate(body []byte) (UpdateCommand, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return UpdateCommand{}, ErrInvalidBody
	}

	var cmd UpdateCommand

	if s, ok := rawString(raw, "mode"); ok {
		if m, ok := parseMode(s); ok {
			cmd.Mode = &m
		}
	}

	if f, ok := rawNumber(raw, "colour"); ok {
		cmd.Colour = &f
	}

	if s, ok := rawString(raw, "geometry"); ok {
		if g, ok := parseGeometry(s); ok {
			cmd.Geometry = &g
		}
	}

	if msg, ok := raw["segments"]; ok {
		var segs []float64
		if err := json.Unmarshal(msg, &segs); err == nil && segs != nil {
			if len(segs) > numSegments {
				segs = segs[:numSegments]
			}
			cmd.Segments = segs
		}
	}

	if f, ok := rawNumber(raw, "width"); ok {
		cmd.Width = &f
	}

	if f, ok := rawNumber(raw, "percent"); ok {
		cmd.Percent = &f
	}

	if s, ok := rawString(raw, "elementColor"); ok {
		if rgb, ok := parseHexColor(s); ok {
			cmd.ElementColor = &rgb
		}
	}

	if s, ok := rawString(raw, "backgroundColor"); ok {
		if rgb, ok := parseHexColor(s); ok {
			cmd.BackgroundColor = &rgb
		}
	}

	if cmd.empty() {
		return UpdateCommand{}, ErrNoValidFields
	}
	return cmd, nil
}

func rawString(raw map[string]json.RawMessage, key string) (string, bool) {
	msg, ok := raw[key]
	if !ok || string(msg) == "null" {
		// Unmarshal of null into a string is a no-op with a nil error,
		// which would make an explicit null count as present.
		return "", false
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return "", false
	}
	return s, true
}

func rawNumber(raw map[string]json.RawMessage, key string) (float64, bool) {
	msg, ok := raw[key]
	if !ok || string(msg) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(msg, &f); err != nil {
		return 0, false
	}
	return f, true
}
