package automation

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// SampleClock counts rendered frames. Its time is frames / sample rate, so
// it advances exactly as fast as audio leaves the renderer.
type SampleClock struct {
	sampleRate float64
	frames     atomic.Uint64
}

// NewSampleClock returns a clock at frame zero.
func NewSampleClock(sampleRate float64) (*SampleClock, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("automation: invalid sample rate %g", sampleRate)
	}
	return &SampleClock{sampleRate: sampleRate}, nil
}

// Now returns the time of the next frame to be rendered, in seconds.
func (c *SampleClock) Now() float64 {
	return float64(c.frames.Load()) / c.sampleRate
}

// Advance moves the clock forward by n frames.
func (c *SampleClock) Advance(n int) {
	if n > 0 {
		c.frames.Add(uint64(n))
	}
}

func (c *SampleClock) Frames() uint64      { return c.frames.Load() }
func (c *SampleClock) SampleRate() float64 { return c.sampleRate }

// Period returns the duration of one frame in seconds.
func (c *SampleClock) Period() float64 { return 1 / c.sampleRate }

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps the clock to t.
func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Add moves the clock forward by d seconds.
func (c *ManualClock) Add(d float64) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}
