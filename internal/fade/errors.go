// SPDX-License-Identifier: MIT
package fade

import "errors"

var (
	ErrNilClock         = errors.New("fade: clock cannot be nil")
	ErrNilScheduler     = errors.New("fade: scheduler cannot be nil")
	ErrInvalidConfig    = errors.New("fade: invalid configuration")
	ErrNonPositiveValue = errors.New("fade: exponential curve requires strictly positive values")
	ErrNonFinite        = errors.New("fade: non-finite time or value")
	ErrDegenerateTiming = errors.New("fade: end time precedes start time")
)
