// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultClickThreshold is the per-sample gain step above which a change is
// audible as a click rather than a fade.
const DefaultClickThreshold = 0.01

// Meter accumulates level and gain statistics over a render.
type Meter struct {
	sampleRate     float64
	clickThreshold float64

	frames     uint64
	sumSquares float64
	peak       float64
	blockRMS   []float64

	gainSum   float64
	gainMin   float64
	gainMax   float64
	lastGain  float64
	hasGain   bool
	maxStep   float64
	maxStepAt uint64
	clicks    int
	mono      []float64
	steps     []float64
}

// NewMeter creates a meter for audio at sampleRate. A clickThreshold of 0
// selects DefaultClickThreshold.
func NewMeter(sampleRate, clickThreshold float64) (*Meter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if clickThreshold == 0 {
		clickThreshold = DefaultClickThreshold
	}
	if clickThreshold < 0 {
		return nil, fmt.Errorf("click threshold must be positive, got %f", clickThreshold)
	}
	return &Meter{
		sampleRate:     sampleRate,
		clickThreshold: clickThreshold,
		gainMin:        math.Inf(1),
		gainMax:        math.Inf(-1),
	}, nil
}

// Observe implements Processor.
func (m *Meter) Observe(samples []float32, channels int, gains []float64) {
	n := len(gains)
	if n == 0 || channels <= 0 {
		return
	}
	if cap(m.mono) < n {
		m.mono = make([]float64, n)
		m.steps = make([]float64, n)
	}

	mono := mixDown(m.mono, samples[:n*channels], channels)
	sq := floats.Dot(mono, mono)
	m.sumSquares += sq
	m.blockRMS = append(m.blockRMS, math.Sqrt(sq/float64(n)))
	m.peak = math.Max(m.peak, math.Max(floats.Max(mono), -floats.Min(mono)))

	m.gainSum += floats.Sum(gains)
	m.gainMin = math.Min(m.gainMin, floats.Min(gains))
	m.gainMax = math.Max(m.gainMax, floats.Max(gains))

	// Steps across the block boundary, then within the block.
	steps := m.steps[:0]
	if m.hasGain {
		steps = append(steps, gains[0]-m.lastGain)
	}
	within := m.steps[len(steps) : len(steps)+n-1]
	floats.SubTo(within, gains[1:], gains[:n-1])
	steps = m.steps[:len(steps)+n-1]

	first := m.frames
	if !m.hasGain {
		first++
	}
	for i, s := range steps {
		s = math.Abs(s)
		if s > m.clickThreshold {
			m.clicks++
		}
		if s > m.maxStep {
			m.maxStep = s
			m.maxStepAt = first + uint64(i)
		}
	}

	m.lastGain = gains[n-1]
	m.hasGain = true
	m.frames += uint64(n)
}

// Report summarises everything observed so far.
func (m *Meter) Report() Report {
	r := Report{
		Frames:      m.frames,
		Duration:    float64(m.frames) / m.sampleRate,
		PeakDBFS:    toDBFS(m.peak),
		MaxGainStep: m.maxStep,
		MaxStepTime: float64(m.maxStepAt) / m.sampleRate,
		Clicks:      m.clicks,
	}
	if m.frames == 0 {
		r.RMSDBFS = math.Inf(-1)
		return r
	}
	r.RMSDBFS = toDBFS(math.Sqrt(m.sumSquares / float64(m.frames)))
	r.MeanGain = m.gainSum / float64(m.frames)
	r.MinGain = m.gainMin
	r.MaxGain = m.gainMax
	r.BlockRMSMean, r.BlockRMSStdDev = stat.MeanStdDev(m.blockRMS, nil)
	if len(m.blockRMS) < 2 {
		r.BlockRMSStdDev = 0
	}
	return r
}

// Report is a summary of a Meter.
type Report struct {
	Frames         uint64
	Duration       float64 // Seconds.
	PeakDBFS       float64
	RMSDBFS        float64
	BlockRMSMean   float64
	BlockRMSStdDev float64
	MeanGain       float64
	MinGain        float64
	MaxGain        float64
	MaxGainStep    float64 // Largest change in gain between adjacent frames.
	MaxStepTime    float64 // Seconds.
	Clicks         int     // Steps above the click threshold.
}

func (r Report) String() string {
	return fmt.Sprintf(
		"duration %.3fs, peak %.1f dBFS, rms %.1f dBFS, gain %.4f..%.4f (mean %.4f), max step %.6f at %.3fs, clicks %d",
		r.Duration, r.PeakDBFS, r.RMSDBFS, r.MinGain, r.MaxGain, r.MeanGain, r.MaxGainStep, r.MaxStepTime, r.Clicks)
}

func toDBFS(v float64) float64 {
	return 20 * math.Log10(v)
}
