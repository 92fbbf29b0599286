package main

import "time"

// ============================================================================
// Tick Integration
// ============================================================================
// The live state chases the target state with rate-limited linear steps:
// each interpolated field moves toward its target by at most rate*dt per
// tick, settles exactly on the target once within one step's reach, and
// never overshoots. Scalars and segments share one rate; color channels use
// a separate, smaller-step rate so color transitions stay gentle.
// ============================================================================

// stepToward moves cur toward target by at most maxStep, in either
// direction, without overshooting.
func stepToward(cur, target, maxStep float64) float64 {
	d := target - cur
	if d > maxStep {
		d = maxStep
	} else if d < -maxStep {
		d = -maxStep
	}
	return cur + d
}

func stepColor(cur, target RGB, maxStep float64) RGB {
	return RGB{
		R: stepToward(cur.R, target.R, maxStep),
		G: stepToward(cur.G, target.G, maxStep),
		B: stepToward(cur.B, target.B, maxStep),
	}
}

// advance moves the live state one tick toward target. dt is the clamped
// elapsed time in seconds. Discrete fields copy instantly.
func (l *LiveState) advance(target TargetState, dt, animStep, colorStep float64) {
	scalarStep := animStep * dt
	channelStep := colorStep * dt

	l.ColourLevel = stepToward(l.ColourLevel, target.ColourLevel, scalarStep)
	l.Width = stepToward(l.Width, target.Width, scalarStep)
	l.Percent = stepToward(l.Percent, target.Percent, scalarStep)

	for i := range l.Segments {
		l.Segments[i] = stepToward(l.Segments[i], target.Segments[i], scalarStep)
	}

	l.ElementColor = stepColor(l.ElementColor, target.ElementColor, channelStep)
	l.BackgroundColor = stepColor(l.BackgroundColor, target.BackgroundColor, channelStep)

	l.Mode = target.Mode
	l.Geometry = target.Geometry
	l.HaveElementColor = target.HaveElementColor
	l.HaveBackgroundColor = target.HaveBackgroundColor
}

// clampDt bounds the elapsed time integrated in a single tick so a stall
// never produces a huge catch-up jump.
func clampDt(dt float64) float64 {
	if dt < 0 {
		return 0
	}
	if dt > maxTickDt {
		return maxTickDt
	}
	return dt
}

// signalAge is the elapsed time in seconds since the last accepted command.
func signalAge(now time.Time, target TargetState) float64 {
	return now.Sub(target.LastUpdate).Seconds()
}

// animationClock picks the time fed to time-varying visual effects: the
// free-running wall clock while the signal is fresh, frozen at the last
// accepted command once the age reaches the grace threshold. Age itself
// keeps advancing regardless.
func animationClock(now time.Time, target TargetState, grace time.Duration) time.Time {
	if now.Sub(target.LastUpdate) < grace {
		return now
	}
	return target.LastUpdate
}
