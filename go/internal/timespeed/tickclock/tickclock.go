// Package tickclock rescales the game's progress toward its next 10-minute
// time advance so that the configured tick interval, not the game default,
// decides how fast the clock moves.
package tickclock

const (
	// DefaultIntervalMs replaces a configured interval of 0.
	DefaultIntervalMs = 1000
	// GameIntervalMs is the game's own milliseconds per 10 in-game minutes.
	GameIntervalMs = 7000
)

// Frame is one observation of the game clock.
type Frame struct {
	// Progress is the fraction of the default interval elapsed since the last advance.
	Progress float64
	// Advanced is true when the game clock moved to the next time unit since the last frame.
	Advanced bool
}

// Clock tracks the previous progress and the interval it should be scaled to.
type Clock struct {
	previous   float64
	intervalMs int
	defaultMs  int
	scale      bool
}

// New returns a clock with scaling enabled and the game's default interval.
func New() *Clock {
	return &Clock{
		intervalMs: GameIntervalMs,
		defaultMs:  GameIntervalMs,
		scale:      true,
	}
}

// SetInterval sets the configured milliseconds per 10 in-game minutes. Negative values clamp to 0.
func (c *Clock) SetInterval(ms int) {
	c.intervalMs = max(ms, 0)
}

// Interval returns the configured interval, 0 included.
func (c *Clock) Interval() int {
	return c.intervalMs
}

// SetDefaultInterval sets the game's own interval for the current location.
func (c *Clock) SetDefaultInterval(ms int) {
	c.defaultMs = ms
}

// DefaultInterval returns the game's interval, falling back to GameIntervalMs.
func (c *Clock) DefaultInterval() int {
	if c.defaultMs <= 0 {
		return GameIntervalMs
	}
	return c.defaultMs
}

// SetScaling turns rescaling on or off (off on festival days when configured).
func (c *Clock) SetScaling(enabled bool) {
	c.scale = enabled
}

// Scaling reports whether rescaling is on.
func (c *Clock) Scaling() bool {
	return c.scale
}

// Update returns the progress the game clock should adopt for this frame.
func (c *Clock) Update(f Frame, frozen bool) float64 {
	if f.Progress == c.previous && !f.Advanced {
		return f.Progress
	}

	var next float64
	switch {
	case frozen:
		if f.Advanced {
			next = 0
		} else {
			next = c.previous
		}
	case !c.scale:
		next = f.Progress
	case f.Advanced:
		next = c.rescale(f.Progress)
	default:
		next = c.previous + c.rescale(f.Progress-c.previous)
	}

	next = clamp(next)
	c.previous = next
	return next
}

// Reset forgets the previous progress, e.g. when a new day is loaded.
func (c *Clock) Reset(progress float64) {
	c.previous = clamp(progress)
}

// Progress converts the game's elapsed milliseconds into a progress fraction.
func (c *Clock) Progress(elapsedMs int) float64 {
	return float64(elapsedMs) / float64(c.DefaultInterval())
}

// Elapsed converts a progress fraction back into the game's elapsed milliseconds.
func (c *Clock) Elapsed(progress float64) int {
	return int(progress * float64(c.DefaultInterval()))
}

func (c *Clock) rescale(progress float64) float64 {
	interval := c.intervalMs
	if interval == 0 {
		interval = DefaultIntervalMs
	}
	return progress * float64(c.DefaultInterval()) / float64(interval)
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
