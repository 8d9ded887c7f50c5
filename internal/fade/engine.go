// SPDX-License-Identifier: MIT
package fade

import (
	"fmt"
	"math"
	"sync"
)

// valuer is implemented by schedulers that can report the value they
// currently produce. It seeds the start value when none is configured.
type valuer interface {
	ValueAt(t float64) float64
}

// Engine owns the fade window of one gain control.
//
// Thread Safety:
// - Every operation holds mu, so FadeTo's read-compute-commit is one unit
// - ValueAt is read-only and never touches the scheduler
type Engine struct {
	clock     Clock
	scheduler Scheduler
	config    Config

	mu     sync.Mutex
	window Window
}

// New creates an Engine bound to the given clock and scheduler. The
// returned engine starts with an empty window at the clock's current time,
// holding the configured start value, with no committed direction.
func New(clock Clock, scheduler Scheduler, cfg Config) (*Engine, error) {
	if clock == nil {
		return nil, ErrNilClock
	}
	if scheduler == nil {
		return nil, ErrNilScheduler
	}

	now := clock.Now()
	if cfg.FadeLength == 0 {
		cfg.FadeLength = DefaultFadeLength
	}
	if cfg.StartValue == 0 {
		cfg.StartValue = DefaultStartValue
		if v, ok := scheduler.(valuer); ok {
			cfg.StartValue = v.ValueAt(now)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Engine{
		clock:     clock,
		scheduler: scheduler,
		config:    cfg,
		window: Window{
			StartValue:  cfg.StartValue,
			TargetValue: cfg.StartValue,
			StartTime:   now,
			EndTime:     now,
			Direction:   None,
		},
	}, nil
}

func (c Config) validate() error {
	if c.Curve != Linear && c.Curve != Exponential {
		return fmt.Errorf("%w: unknown curve %d", ErrInvalidConfig, c.Curve)
	}
	if !isFinite(c.FadeLength) || c.FadeLength <= 0 {
		return fmt.Errorf("%w: fade length must be a positive number of seconds, got %g",
			ErrInvalidConfig, c.FadeLength)
	}
	if !isFinite(c.StartValue) || c.StartValue < 0 {
		return fmt.Errorf("%w: start value must be a non-negative number, got %g",
			ErrInvalidConfig, c.StartValue)
	}
	if c.Curve == Exponential && c.StartValue <= 0 {
		return fmt.Errorf("%w: %w: start value %g", ErrInvalidConfig, ErrNonPositiveValue, c.StartValue)
	}
	return nil
}

// Config returns the configuration the engine was built with, defaults applied.
func (e *Engine) Config() Config {
	return e.config
}

// Window returns a copy of the current fade window.
func (e *Engine) Window() Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window
}

// Direction returns the last committed fade direction.
func (e *Engine) Direction() Direction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window.Direction
}

// Value returns the value in effect at the clock's current time.
func (e *Engine) Value() float64 {
	return e.ValueAt(e.clock.Now())
}

// ValueAt returns the value the window predicts at t. It has no side effects.
func (e *Engine) ValueAt(t float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t >= e.window.EndTime {
		return e.window.TargetValue
	}
	return interpolate(e.window, e.config.Curve, t)
}

// FadeIn requests a fade tagged In. See FadeTo.
func (e *Engine) FadeIn(opts ...Option) error {
	return e.FadeTo(In, opts...)
}

// FadeOut requests a fade tagged Out. See FadeTo.
func (e *Engine) FadeOut(opts ...Option) error {
	return e.FadeTo(Out, opts...)
}

// FadeTo programs a new fade starting from wherever the current window is at
// the requested start time. A request in the committed direction is ignored
// and returns nil. A rejected request returns an error before the scheduler
// is touched and leaves the window unchanged.
func (e *Engine) FadeTo(dir Direction, opts ...Option) error {
	if dir != In && dir != Out {
		return fmt.Errorf("fade: cannot fade in direction %s", dir)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if dir == e.window.Direction {
		e.tracef("ignoring repeated %s request", dir)
		return nil
	}

	now := e.clock.Now()
	req := request{
		startTime:   now,
		targetValue: DefaultTargetValue,
	}
	for _, opt := range opts {
		opt(&req)
	}

	if !isFinite(req.startTime) || !isFinite(req.targetValue) || (req.hasEnd && !isFinite(req.endTime)) {
		return fmt.Errorf("%w: start=%g target=%g end=%g", ErrNonFinite, req.startTime, req.targetValue, req.endTime)
	}
	if e.config.Curve == Exponential && req.targetValue <= 0 {
		return fmt.Errorf("%w: target %g", ErrNonPositiveValue, req.targetValue)
	}

	startValue := interpolate(e.window, e.config.Curve, req.startTime)
	e.tracef("start value %g", startValue)
	if !isFinite(startValue) {
		return fmt.Errorf("%w: start value %g", ErrNonFinite, startValue)
	}

	endTime := req.endTime
	if !req.hasEnd {
		var err error
		endTime, err = e.calculateEndTime(now, req.startTime, req.targetValue)
		if err != nil {
			return err
		}
	}
	if !isFinite(endTime) {
		return fmt.Errorf("%w: end time %g", ErrNonFinite, endTime)
	}
	if endTime < req.startTime {
		return fmt.Errorf("%w: start=%g end=%g", ErrDegenerateTiming, req.startTime, endTime)
	}

	if err := e.schedule(startValue, req.startTime, req.targetValue, endTime); err != nil {
		return err
	}

	e.tracef("%g :: %s to %g starting from %g to %g", now, dir, req.targetValue, req.startTime, endTime)

	e.window = Window{
		StartValue:  startValue,
		TargetValue: req.targetValue,
		StartTime:   req.startTime,
		EndTime:     endTime,
		Direction:   dir,
	}
	return nil
}

// schedule hands the control points to the scheduler. Inputs are validated.
func (e *Engine) schedule(startValue, startTime, targetValue, endTime float64) error {
	if err := e.scheduler.CancelFrom(startTime); err != nil {
		return fmt.Errorf("fade: cancel from %g: %w", startTime, err)
	}
	if err := e.scheduler.PinValueAt(startValue, startTime); err != nil {
		return fmt.Errorf("fade: pin %g at %g: %w", startValue, startTime, err)
	}

	var err error
	switch e.config.Curve {
	case Linear:
		err = e.scheduler.RampLinearTo(targetValue, endTime)
	case Exponential:
		err = e.scheduler.RampExponentialTo(targetValue, endTime)
	}
	if err != nil {
		return fmt.Errorf("fade: %s ramp to %g at %g: %w", e.config.Curve, targetValue, endTime, err)
	}
	return nil
}

// calculateEndTime derives when a fade to targetValue starting at startTime
// should finish. Outside a fade it takes the full configured length. Inside
// a fade it scales the configured full-range rate by the distance actually
// left, so an almost-finished fade is not restarted at full length.
func (e *Engine) calculateEndTime(now, startTime, targetValue float64) (float64, error) {
	if !e.window.Active(now) {
		return startTime + e.config.FadeLength, nil
	}

	if targetValue == e.window.StartValue {
		elapsed := now - e.window.StartTime
		e.tracef("end time will be now + %g", elapsed)
		return startTime + elapsed, nil
	}

	startValue := interpolate(e.window, e.config.Curve, startTime)

	var timeTaken float64
	switch e.config.Curve {
	case Linear:
		gradient := e.config.FadeLength / (almostZero - 1)
		timeTaken = (targetValue - startValue) * gradient
		e.tracef("time taken to go linearly from %g to %g is %g", startValue, targetValue, timeTaken)
	case Exponential:
		if startValue <= 0 || targetValue <= 0 {
			return 0, fmt.Errorf("%w: from %g to %g", ErrNonPositiveValue, startValue, targetValue)
		}
		diff := math.Log(targetValue) - math.Log(startValue)
		timeTaken = (e.config.FadeLength / math.Log(almostZero)) * diff
		e.tracef("time taken to go exponentially from %g to %g is %g", startValue, targetValue, timeTaken)
	}

	return startTime + timeTaken, nil
}

func (e *Engine) tracef(format string, args ...any) {
	if e.config.Debug && e.config.Trace != nil {
		e.config.Trace(format, args...)
	}
}

// interpolate evaluates w at t on curve c. It depends on nothing but its
// arguments.
func interpolate(w Window, c Curve, t float64) float64 {
	if t <= w.StartTime {
		return w.StartValue
	}
	if t >= w.EndTime {
		return w.TargetValue
	}

	progress := (t - w.StartTime) / (w.EndTime - w.StartTime)
	switch c {
	case Exponential:
		return w.StartValue * math.Pow(w.TargetValue/w.StartValue, progress)
	default:
		return w.StartValue + (w.TargetValue-w.StartValue)*progress
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
