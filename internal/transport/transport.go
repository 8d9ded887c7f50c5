package transport

import (
	"errors"

	"smoothfade/internal/fade"
)

// ErrClosed is returned when sending on a closed transport.
var ErrClosed = errors.New("transport: closed")

// Transport defines a generic interface for sending fader state.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// GainSource is the fader state a Monitor samples. *fade.Engine satisfies it.
type GainSource interface {
	Window() fade.Window
	ValueAt(t float64) float64
}

// Snapshot is the state of a fader at one instant of its clock.
type Snapshot struct {
	Time      float64 `json:"time"`       // Clock seconds.
	Value     float64 `json:"value"`      // Gain in effect at Time.
	Direction string  `json:"direction"`  // Last committed direction.
	Target    float64 `json:"target"`     // Gain at the end of the window.
	StartTime float64 `json:"start_time"` // Window start.
	EndTime   float64 `json:"end_time"`   // Window end.
	Fading    bool    `json:"fading"`     // Time is before EndTime.
}

// TakeSnapshot samples src at the clock's current time.
func TakeSnapshot(src GainSource, clock fade.Clock) Snapshot {
	now := clock.Now()
	w := src.Window()
	return Snapshot{
		Time:      now,
		Value:     src.ValueAt(now),
		Direction: w.Direction.String(),
		Target:    w.TargetValue,
		StartTime: w.StartTime,
		EndTime:   w.EndTime,
		Fading:    w.Active(now),
	}
}

// sameState reports whether two snapshots describe the same steady state.
func sameState(a, b Snapshot) bool {
	return a.Value == b.Value && a.Direction == b.Direction &&
		a.Target == b.Target && a.EndTime == b.EndTime && a.Fading == b.Fading
}
