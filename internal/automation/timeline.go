// SPDX-License-Identifier: MIT
/*
Package automation provides the sample-accurate gain automation the fade
engine programs, and the clocks that drive it.

A Timeline holds an ordered list of control events. Each event pins or ramps
the value to a target at a time, and a ramp always starts from the value and
time of the event before it. Evaluation follows the usual audio-parameter
semantics:

	before the first event   default value
	between events           previous value, or the ramp of the next event
	after the last event     last event value

Thread Safety:
- Writers (the fade engine) take the write lock per call
- The audio callback evaluates a whole block under one read lock via Fill
*/
package automation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	ErrInvalidTime     = errors.New("automation: time must be a finite, non-negative number")
	ErrInvalidValue    = errors.New("automation: value must be finite")
	ErrNonPositiveRamp = errors.New("automation: exponential ramp target must be positive")
)

// EventKind describes how an event reaches its value.
type EventKind int

const (
	SetValue EventKind = iota
	LinearRamp
	ExponentialRamp
)

func (k EventKind) String() string {
	switch k {
	case SetValue:
		return "set"
	case LinearRamp:
		return "linear"
	case ExponentialRamp:
		return "exponential"
	default:
		return "unknown"
	}
}

// Event is one control point on the timeline.
type Event struct {
	Kind  EventKind
	Value float64
	Time  float64 // seconds
}

// Timeline is a gain automation lane. The zero value is not usable; use
// NewTimeline.
type Timeline struct {
	mu           sync.RWMutex
	defaultValue float64
	events       []Event
}

// NewTimeline returns an empty timeline producing defaultValue until the
// first event.
func NewTimeline(defaultValue float64) *Timeline {
	return &Timeline{
		defaultValue: defaultValue,
		events:       make([]Event, 0, 16),
	}
}

// CancelFrom removes every event at or after t.
func (tl *Timeline) CancelFrom(t float64) error {
	if !validTime(t) {
		return fmt.Errorf("%w: %g", ErrInvalidTime, t)
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	idx := sort.Search(len(tl.events), func(i int) bool {
		return tl.events[i].Time >= t
	})
	tl.events = tl.events[:idx]
	return nil
}

// PinValueAt sets the value to v at t.
func (tl *Timeline) PinValueAt(v, t float64) error {
	return tl.insert(Event{Kind: SetValue, Value: v, Time: t})
}

// RampLinearTo ramps linearly to v, arriving at t.
func (tl *Timeline) RampLinearTo(v, t float64) error {
	return tl.insert(Event{Kind: LinearRamp, Value: v, Time: t})
}

// RampExponentialTo ramps geometrically to v, arriving at t. v must be positive.
func (tl *Timeline) RampExponentialTo(v, t float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %g", ErrNonPositiveRamp, v)
	}
	return tl.insert(Event{Kind: ExponentialRamp, Value: v, Time: t})
}

// insert places ev after every event at the same or an earlier time.
func (tl *Timeline) insert(ev Event) error {
	if !validTime(ev.Time) {
		return fmt.Errorf("%w: %g", ErrInvalidTime, ev.Time)
	}
	if math.IsNaN(ev.Value) || math.IsInf(ev.Value, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidValue, ev.Value)
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	idx := sort.Search(len(tl.events), func(i int) bool {
		return tl.events[i].Time > ev.Time
	})
	tl.events = append(tl.events, Event{})
	copy(tl.events[idx+1:], tl.events[idx:])
	tl.events[idx] = ev
	return nil
}

// ValueAt returns the automated value at t.
func (tl *Timeline) ValueAt(t float64) float64 {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return tl.valueAt(t)
}

// Fill evaluates dst[i] = ValueAt(t0 + i*dt) under a single lock.
func (tl *Timeline) Fill(dst []float64, t0, dt float64) {
	tl.mu.RLock()
	defer tl.mu.RUnlock()

	for i := range dst {
		dst[i] = tl.valueAt(t0 + float64(i)*dt)
	}
}

func (tl *Timeline) valueAt(t float64) float64 {
	n := len(tl.events)
	next := sort.Search(n, func(i int) bool {
		return tl.events[i].Time > t
	})

	prevValue, prevTime := tl.defaultValue, 0.0
	if next > 0 {
		prev := tl.events[next-1]
		prevValue, prevTime = prev.Value, prev.Time
	}
	if next == n {
		return prevValue
	}

	ev := tl.events[next]
	switch ev.Kind {
	case LinearRamp:
		return rampLinear(prevValue, prevTime, ev.Value, ev.Time, t)
	case ExponentialRamp:
		return rampExponential(prevValue, prevTime, ev.Value, ev.Time, t)
	default:
		return prevValue
	}
}

// Prune collapses the events that ended before t into a single anchor, so a
// long-running lane does not grow without bound. Values at or after t are
// unchanged.
func (tl *Timeline) Prune(t float64) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	k := sort.Search(len(tl.events), func(i int) bool {
		return tl.events[i].Time >= t
	})
	if k <= 1 {
		return
	}

	last := tl.events[k-1]
	tl.events[0] = Event{Kind: SetValue, Value: last.Value, Time: last.Time}
	n := copy(tl.events[1:], tl.events[k:])
	tl.events = tl.events[:1+n]
}

// Events returns a copy of the scheduled events in time order.
func (tl *Timeline) Events() []Event {
	tl.mu.RLock()
	defer tl.mu.RUnlock()

	out := make([]Event, len(tl.events))
	copy(out, tl.events)
	return out
}

// Len returns the number of scheduled events.
func (tl *Timeline) Len() int {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return len(tl.events)
}

func rampLinear(v0, t0, v1, t1, t float64) float64 {
	if t <= t0 {
		return v0
	}
	if t >= t1 || t1 <= t0 {
		return v1
	}
	return v0 + (v1-v0)*(t-t0)/(t1-t0)
}

// rampExponential holds v0 until t1 when the ramp cannot be geometric, i.e.
// when v0 is not positive.
func rampExponential(v0, t0, v1, t1, t float64) float64 {
	if t <= t0 {
		return v0
	}
	if t >= t1 || t1 <= t0 {
		return v1
	}
	if v0 <= 0 {
		return v0
	}
	return v0 * math.Pow(v1/v0, (t-t0)/(t1-t0))
}

func validTime(t float64) bool {
	return t >= 0 && !math.IsInf(t, 0)
}
