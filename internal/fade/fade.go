// SPDX-License-Identifier: MIT
/*
Package fade implements the gain fade engine: a single interpolation window
describing which value is in effect at any time, the curve math used to
evaluate it, and the direction debounce that decides whether a new fade
request is honoured.

The engine never renders audio. It computes control points and hands them
to a Scheduler, which owns sample-accurate ramping, and it reads the
current time from a Clock supplied by the host.

Usage:

	engine, err := fade.New(clock, timeline, fade.Config{
		Curve:      fade.Exponential,
		FadeLength: 10,
		StartValue: 1,
	})
	if err != nil {
		return err
	}

	// Mute, then restore. A second FadeOut before the FadeIn is ignored.
	err = engine.FadeOut(fade.Target(0.01))
	err = engine.FadeIn()
*/
package fade

import (
	"fmt"
	"strings"
)

// almostZero is the floor of the reference full-range fade used to derive
// the time rate when a fade is interrupted.
const almostZero = 0.00001

const (
	DefaultCurve       = Exponential
	DefaultFadeLength  = 10.0 // seconds
	DefaultStartValue  = 1.0  // unity gain
	DefaultTargetValue = 1.0
)

// Curve selects the interpolation used between two control points.
type Curve int

const (
	Linear Curve = iota
	Exponential
)

func (c Curve) String() string {
	switch c {
	case Linear:
		return "linear"
	case Exponential:
		return "exponential"
	default:
		return "unknown"
	}
}

// ParseCurve converts a curve name (case-insensitive) to a Curve.
func ParseCurve(name string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear":
		return Linear, nil
	case "exponential", "exp":
		return Exponential, nil
	default:
		return Linear, fmt.Errorf("%w: unknown curve type %q", ErrInvalidConfig, name)
	}
}

// Direction is the tag used for debouncing fade requests.
type Direction int

const (
	None Direction = iota
	In
	Out
)

func (d Direction) String() string {
	switch d {
	case None:
		return "none"
	case In:
		return "fadein"
	case Out:
		return "fadeout"
	default:
		return "unknown"
	}
}

// ParseDirection accepts "in"/"fadein" and "out"/"fadeout".
func ParseDirection(name string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "in", "fadein":
		return In, nil
	case "out", "fadeout":
		return Out, nil
	default:
		return None, fmt.Errorf("fade: unknown direction %q", name)
	}
}

// Clock supplies the authoritative host time in seconds.
type Clock interface {
	Now() float64
}

// Scheduler is the gain automation primitive the engine programs.
type Scheduler interface {
	// CancelFrom discards scheduled automation at or after t.
	CancelFrom(t float64) error
	// PinValueAt fixes the value to v at t.
	PinValueAt(v, t float64) error
	// RampLinearTo ramps linearly from the value in effect to v, ending at t.
	RampLinearTo(v, t float64) error
	// RampExponentialTo ramps geometrically from the value in effect to v, ending at t.
	RampExponentialTo(v, t float64) error
}

// TraceFunc receives diagnostic messages when Config.Debug is set.
type TraceFunc func(format string, args ...any)

// Config is fixed for the lifetime of an Engine. A zero FadeLength takes
// DefaultFadeLength; a zero StartValue is read from the scheduler when it
// can report its value, otherwise DefaultStartValue.
type Config struct {
	Curve      Curve
	FadeLength float64 // seconds for a full-range fade
	StartValue float64 // value in effect before the first fade
	Debug      bool
	Trace      TraceFunc
}

// DefaultConfig returns an exponential fader with a 10 second full-range
// fade starting at unity gain.
func DefaultConfig() Config {
	return Config{
		Curve:      DefaultCurve,
		FadeLength: DefaultFadeLength,
		StartValue: DefaultStartValue,
	}
}

// Window is one fade segment on the host clock.
type Window struct {
	StartValue  float64
	TargetValue float64
	StartTime   float64
	EndTime     float64
	Direction   Direction
}

// Duration returns EndTime - StartTime.
func (w Window) Duration() float64 {
	return w.EndTime - w.StartTime
}

// Active reports whether the window is still ramping at t.
func (w Window) Active(t float64) bool {
	return t < w.EndTime
}

// request holds the resolved options of a single FadeTo call.
type request struct {
	startTime   float64
	targetValue float64
	endTime     float64
	hasStart    bool
	hasEnd      bool
}

// Option overrides a default of a single fade request.
type Option func(*request)

// StartAt sets the time the fade begins. Defaults to the clock's now.
func StartAt(t float64) Option {
	return func(r *request) {
		r.startTime = t
		r.hasStart = true
	}
}

// Target sets the value the fade reaches. Defaults to 1.
func Target(v float64) Option {
	return func(r *request) {
		r.targetValue = v
	}
}

// EndAt sets the time the fade completes. When omitted the end time is
// derived from the configured fade length and the remaining distance.
func EndAt(t float64) Option {
	return func(r *request) {
		r.endTime = t
		r.hasEnd = true
	}
}
