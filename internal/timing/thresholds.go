package timing

import (
	"time"

	"github.com/alejandrodnm/predibot/internal/domain"
)

// Thresholds are the duration-scaled parameters of the timing loop. Short
// windows can't wait for big samples; long windows shouldn't fire on thin
// ones.
type Thresholds struct {
	// MinUsers is the volume target: at or above it the data quality
	// multiplier is 1.0 and a stable market fires READY.
	MinUsers int

	// MinPoints is the matching points-volume target.
	MinPoints int

	// AbsoluteFloor is the hard minimum of users; below it, with the
	// fallback horizon gone, the prediction is abandoned.
	AbsoluteFloor int

	// FallbackHorizon is how long before the (profile-adjusted) close we
	// give up waiting for stability and fire with whatever we have.
	FallbackHorizon time.Duration

	// GrowthMax and ShareStdevMax override the stability monitor gates for
	// this window class.
	GrowthMax     float64
	ShareStdevMax float64
}

// Duration tiers. Values tuned on live prediction traffic: sub-minute
// predictions fill fast and close faster, ten-minute ones trickle.
func ForWindow(window time.Duration) Thresholds {
	switch {
	case window <= 60*time.Second:
		return Thresholds{
			MinUsers:        40,
			MinPoints:       2_000,
			AbsoluteFloor:   10,
			FallbackHorizon: 10 * time.Second,
			GrowthMax:       0.25,
			ShareStdevMax:   8.0,
		}
	case window <= 180*time.Second:
		return Thresholds{
			MinUsers:        75,
			MinPoints:       5_000,
			AbsoluteFloor:   15,
			FallbackHorizon: 20 * time.Second,
			GrowthMax:       0.20,
			ShareStdevMax:   6.0,
		}
	case window <= 600*time.Second:
		return Thresholds{
			MinUsers:        120,
			MinPoints:       10_000,
			AbsoluteFloor:   20,
			FallbackHorizon: 45 * time.Second,
			GrowthMax:       0.15,
			ShareStdevMax:   5.0,
		}
	default:
		return Thresholds{
			MinUsers:        200,
			MinPoints:       20_000,
			AbsoluteFloor:   25,
			FallbackHorizon: 90 * time.Second,
			GrowthMax:       0.10,
			ShareStdevMax:   4.0,
		}
	}
}

// highTrafficResolved marks a profile as high traffic: enough resolved
// history that we can afford to be picky about sample size.
const highTrafficResolved = 30

// AdjustFor tunes the thresholds to the streamer's learned profile.
// Early closers get a larger fallback horizon (the announced window lies)
// and a lower volume floor; high-traffic streamers get stricter volume
// targets.
func (t Thresholds) AdjustFor(p domain.StreamerProfile) Thresholds {
	if p.Close.EarlyCloser() {
		t.FallbackHorizon = t.FallbackHorizon * 3 / 2
		t.MinUsers = t.MinUsers * 3 / 4
		t.MinPoints = t.MinPoints * 3 / 4
	}
	if p.TotalResolved() >= highTrafficResolved {
		t.MinUsers = t.MinUsers * 5 / 4
		t.MinPoints = t.MinPoints * 5 / 4
	}
	return t
}

// WithDelay resolves the configured bet delay to a concrete fallback horizon.
// The delay names the preferred point of the window to fire at; it can only
// move the fallback earlier: the tier horizon is the floor and half the
// window the cap.
func (t Thresholds) WithDelay(d domain.DelaySpec, window time.Duration) Thresholds {
	h := delayHorizon(d, window)
	if h <= 0 {
		return t
	}
	if h < t.FallbackHorizon {
		h = t.FallbackHorizon
	}
	if h > window/2 {
		h = window / 2
	}
	t.FallbackHorizon = h
	return t
}

// delayHorizon converts a DelaySpec into "this long before close".
func delayHorizon(d domain.DelaySpec, window time.Duration) time.Duration {
	switch d.Mode {
	case domain.DelayFromStart:
		return window - time.Duration(d.Value*float64(time.Second))
	case domain.DelayFromEnd:
		return time.Duration(d.Value * float64(time.Second))
	case domain.DelayPercentage:
		if d.Value <= 0 || d.Value >= 1 {
			return 0
		}
		return time.Duration((1 - d.Value) * float64(window))
	}
	return 0
}

// EffectiveWindow shrinks the announced window by the streamer's average
// close ratio, so early closers get their schedule compressed to the
// window they actually honor.
func EffectiveWindow(announced time.Duration, p domain.StreamerProfile) time.Duration {
	if p.Close.Samples < 3 || p.Close.AvgCloseRatio <= 0 || p.Close.AvgCloseRatio >= 1 {
		return announced
	}
	return time.Duration(float64(announced) * p.Close.AvgCloseRatio)
}

// Quality maps observed user volume to the data-quality multiplier used in
// fallback mode: 1.0 at the target, stepping down through 0.7 and 0.4,
// with 0.0 meaning abandon rather than bet blind.
func (t Thresholds) Quality(users int) float64 {
	switch {
	case users >= t.MinUsers:
		return 1.0
	case users >= t.MinUsers/2:
		return 0.7
	case users >= 20:
		return 0.4
	default:
		return 0.0
	}
}

// TickInterval scales the polling interval to the window: a twentieth of
// the window, clamped to [3s, 15s].
func TickInterval(window time.Duration) time.Duration {
	tick := window / 20
	if tick < 3*time.Second {
		tick = 3 * time.Second
	}
	if tick > 15*time.Second {
		tick = 15 * time.Second
	}
	return tick
}
