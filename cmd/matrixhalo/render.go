package main

import "math"

// ============================================================================
// Software Renderer
// ============================================================================
// CPU port of the panel's procedural look: a shimmering tinted background
// with a geometry element composited purely in front. Thickness reacts to
// the per-segment values, coverage to the percent arc mask, and the
// background fades to grayscale while the signal is stale. The element
// keeps full color regardless of age.
// ============================================================================

// FrameRenderer turns a live state into pixels. age is the signal age in
// seconds; clock is the animation time in seconds (frozen by the driver
// when the signal goes stale).
type FrameRenderer interface {
	Render(buf *PixelBuffer, live LiveState, age, clock float64) error
}

type shapeRenderer struct {
	grayStart float64 // seconds of age where the grayscale fade begins
	grayEnd   float64 // seconds of age where the fade completes
}

func newShapeRenderer(grayStart, grayEnd float64) *shapeRenderer {
	return &shapeRenderer{grayStart: grayStart, grayEnd: grayEnd}
}

func smoothstep(e0, e1, x float64) float64 {
	if e0 == e1 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := clampFloat((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

func mix(a, b, t float64) float64 {
	return a + (b-a)*t
}

// wobble gives shapes their organic breathing edge.
func wobble(x, y, t float64) float64 {
	l := math.Hypot(x, y)
	if l == 0 {
		return 0
	}
	nx, ny := x/l, y/l
	return (math.Sin(ny*5+t*2) - math.Sin(nx*5+t*2)) / 100
}

// arcMask masks the shape to percent coverage with feathered ends. At full
// coverage it bypasses the mask entirely so the seam closes cleanly.
func arcMask(x, y, pct float64) float64 {
	if pct >= 0.99 {
		return 1
	}
	angle := (math.Atan2(y, x) + math.Pi) / (2 * math.Pi)
	const feather = 0.03
	start := smoothstep(0, feather, angle)
	end := smoothstep(pct+feather, pct-feather, angle)
	return start * end
}

// segModulation blends the segment values by angular distance to phi, in
// circular (wrap-around) space so there is no seam at the 0 boundary.
// Segments arrive unnormalized (typically 0..100) and are scaled here.
func segModulation(phi float64, segments [numSegments]float64) float64 {
	sum := 0.0
	for i := 0; i < numSegments; i++ {
		d := math.Abs(phi - float64(i))
		if wrap := float64(numSegments) - d; wrap < d {
			d = wrap
		}
		sum += smoothstep(1, 0, d) * segments[i]
	}
	return clampFloat(sum/100, 0, 1)
}

func ringShape(x, y, w0, width, segf, t float64) float64 {
	f := math.Hypot(x, y) + wobble(x, y, t)
	w := width + width*segf*0.1
	return smoothstep(w0-w, w0, f) - smoothstep(w0, w0+w, f)
}

func boxShape(x, y, b, width, segf, t float64) float64 {
	dx := math.Abs(x) - b
	dy := math.Abs(y) - b
	outside := math.Hypot(math.Max(dx, 0), math.Max(dy, 0))
	inside := math.Min(math.Max(dx, dy), 0)
	f := outside + inside + wobble(x, y, t)
	w := width + width*segf*0.1
	return smoothstep(w, 0, math.Abs(f))
}

func triangleShape(x, y, r, width, segf, t float64) float64 {
	k := math.Sqrt(3.0)
	wob := wobble(x, y, t)
	px := math.Abs(x) - r
	py := y + r/k
	if px+k*py > 0 {
		px, py = (px-k*py)/2, (-k*px-py)/2
	}
	px -= clampFloat(px, -2*r, 0)
	sign := 1.0
	if py < 0 {
		sign = -1.0
	}
	f := -math.Hypot(px, py)*sign + wob
	w := width + width*segf*0.1
	return smoothstep(w, 0, math.Abs(f))
}

func xShape(x, y, baseWidth, activeWobble, pmask, t float64) float64 {
	dist := math.Abs(math.Abs(x)-math.Abs(y)) + wobble(x, y, t)*pmask
	w := baseWidth + baseWidth*activeWobble*0.1
	if dist < w && math.Hypot(x, y) < 0.3 {
		return 1
	}
	return 0
}

// backgroundEnergy is the procedural "magic shine" field the background tint
// gets multiplied with.
func backgroundEnergy(u, v, t float64) float64 {
	px := u*0.5*10.0 - 19.0
	py := v*0.5*10.0 - 19.0
	ix, iy := px, py
	c := 1.0
	const inten = 0.05
	for n := 0; n < 8; n++ {
		ti := t * (0.7 - 0.2/float64(n+1))
		ix, iy = px+math.Cos(ti-ix)+math.Sin(ti+iy), py+math.Sin(ti-iy)+math.Cos(ti+ix)
		sx := px / (2 * math.Sin(ix+ti) / inten)
		sy := py / (math.Cos(iy+ti) / inten)
		c += 1 / math.Hypot(sx, sy)
	}
	c /= 8
	c = 1.5 - math.Sqrt(c*c)
	return c
}

func (r *shapeRenderer) Render(buf *PixelBuffer, live LiveState, age, clock float64) error {
	grayAmount := smoothstep(r.grayStart, r.grayEnd, age)

	for py := 0; py < buf.H; py++ {
		// Logical (0,0) is the top-left pixel; shader space has +y up.
		v := 1 - 2*(float64(py)+0.5)/float64(buf.H)
		for px := 0; px < buf.W; px++ {
			u := 2*(float64(px)+0.5)/float64(buf.W) - 1

			cx, cy := u*0.5, v*0.5

			phi := (math.Atan2(cy, cx) + math.Pi) / math.Pi * float64(numSegments) * 0.5
			segf := segModulation(phi, live.Segments)

			// Background shimmer tinted with the background color.
			energy := backgroundEnergy(u, v, clock)
			shift := (cx + cy + math.Sin(clock*0.5)) * 0.5
			sr := live.BackgroundColor.R + math.Sin(shift*math.Pi)*0.10
			sg := live.BackgroundColor.G + math.Cos(shift*math.Pi)*0.10
			sb := live.BackgroundColor.B + math.Sin(shift*2*math.Pi)*0.10

			// Cold/teal tints get a horizontal green drift instead.
			if live.BackgroundColor.B > 0.5 && live.BackgroundColor.R < 0.3 {
				sg = clampFloat(cx+0.4, 0, 1) * 1.1
				sb *= 0.8
			}

			e4 := energy * energy * energy * energy
			bgR, bgG, bgB := sr*e4, sg*e4, sb*e4

			pmask := arcMask(cx, cy, live.Percent)
			widthActive := mix(0.003, 0.08, clampFloat(live.Width/100, 0, 1))
			const widthInactive = 0.01
			baseWidth := mix(widthInactive, widthActive, pmask)
			activeWobble := segf * pmask

			var shape float64
			switch live.Geometry {
			case GeometryRing:
				shape = ringShape(cx, cy, 0.25, baseWidth, activeWobble, clock)
			case GeometryCircle:
				// A filled disc; width softens the edge, and the arc
				// mask truly hides the inactive part.
				edge := mix(0.01, 0.08, clampFloat(live.Width/100, 0, 1))
				d := math.Hypot(cx, cy) + wobble(cx, cy, clock)
				shape = (1 - smoothstep(0.25-edge, 0.25+edge, d)) * pmask
			case GeometrySquare:
				shape = boxShape(cx, cy, 0.22, baseWidth, activeWobble, clock)
			case GeometryTriangle:
				shape = triangleShape(cx, cy, 0.25, baseWidth, activeWobble, clock)
			case GeometryX:
				shape = xShape(cx, cy, baseWidth, activeWobble, pmask, clock)
			}
			shape = clampFloat(shape, 0, 1)

			// Grayscale fade hits the background only; the element stays
			// pure and in front.
			gray := 0.3*bgR + 0.59*bgG + 0.11*bgB
			fadedR := mix(bgR, gray, grayAmount)
			fadedG := mix(bgG, gray, grayAmount)
			fadedB := mix(bgB, gray, grayAmount)

			outR := mix(fadedR, live.ElementColor.R, shape)
			outG := mix(fadedG, live.ElementColor.G, shape)
			outB := mix(fadedB, live.ElementColor.B, shape)

			buf.SetRGB(px, py,
				byte(clampFloat(outR, 0, 1)*255),
				byte(clampFloat(outG, 0, 1)*255),
				byte(clampFloat(outB, 0, 1)*255))
		}
	}
	return nil
}
