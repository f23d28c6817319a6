package clock

import (
	"sync"
	"time"
)

// Clock is the simulation time source shared by the orchestrator and the
// worker agents. All values are seconds relative to the simulation epoch.
// Workers only ever read the clock; they never reset it.
type Clock interface {
	// Now returns the current simulation-relative time.
	Now() float64
	// Sleep suspends the caller for the given simulated duration.
	Sleep(seconds float64)
	// After returns a channel that fires once the given simulated duration
	// has elapsed. Used for timed waits instead of busy polling.
	After(seconds float64) <-chan time.Time
}

// Wall is a Clock backed by wall time. A speedup factor > 1 compresses the
// run: one simulated second takes 1/speedup wall seconds. Speedup 1 matches
// real time.
type Wall struct {
	epoch   time.Time
	speedup float64
}

// NewWall creates a wall clock with its epoch at the moment of the call.
func NewWall(speedup float64) *Wall {
	if speedup <= 0 {
		speedup = 1
	}
	return &Wall{epoch: time.Now(), speedup: speedup}
}

func (c *Wall) Now() float64 {
	return time.Since(c.epoch).Seconds() * c.speedup
}

func (c *Wall) Sleep(seconds float64) {
	time.Sleep(c.wallDuration(seconds))
}

func (c *Wall) After(seconds float64) <-chan time.Time {
	return time.After(c.wallDuration(seconds))
}

func (c *Wall) wallDuration(seconds float64) time.Duration {
	return time.Duration(seconds / c.speedup * float64(time.Second))
}

// Manual is a Clock that never waits: Sleep advances the clock instantly and
// After fires immediately without advancing, so time moves only when a
// caller sleeps. A timed wait racing another channel in a select must not
// shift the clock when the other case wins, otherwise idle polling would
// inflate timestamps. It keeps admission and execution decisions exactly
// reproducible in tests.
type Manual struct {
	mu  sync.Mutex
	now float64
}

func NewManual() *Manual {
	return &Manual{}
}

func (c *Manual) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Manual) Sleep(seconds float64) {
	c.Advance(seconds)
}

func (c *Manual) After(seconds float64) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// Advance moves the clock forward by the given number of simulated seconds.
func (c *Manual) Advance(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds > 0 {
		c.now += seconds
	}
}
