package main

// RGB is a color with channels in [0,1].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

var (
	colorWhite = RGB{R: 1, G: 1, B: 1}
	colorBlue  = RGB{R: 0, G: 0, B: 1}
)

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseHexColor parses "#RRGGBB" or "RRGGBB" (case-insensitive).
// Anything else reports ok=false.
func parseHexColor(s string) (RGB, bool) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return RGB{}, false
	}

	var ch [6]int
	for i := 0; i < 6; i++ {
		v := hexDigit(s[i])
		if v < 0 {
			return RGB{}, false
		}
		ch[i] = v
	}

	return RGB{
		R: float64(ch[0]<<4|ch[1]) / 255.0,
		G: float64(ch[2]<<4|ch[3]) / 255.0,
		B: float64(ch[4]<<4|ch[5]) / 255.0,
	}, true
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return 10 + int(c-'a')
	case c >= 'A' && c <= 'F':
		return 10 + int(c-'A')
	default:
		return -1
	}
}

// heatColorGradient maps a heat level (clamped to [0,100]) onto the legacy
// background gradient:
//
//	 0..33  deep blue -> teal
//	33..66  teal -> yellow
//	66..100 yellow -> red
func heatColorGradient(level float64) RGB {
	c := clampFloat(level, 0, 100)

	switch {
	case c <= 33:
		t := c / 33
		return RGB{R: 0, G: t * 0.5, B: 0.4 + t*0.4}
	case c <= 66:
		t := (c - 33) / 33
		return RGB{R: t, G: 0.6 + t*0.4, B: 1 - t}
	default:
		t := (c - 66) / 34
		return RGB{R: 1, G: 1 - t, B: 0}
	}
}
