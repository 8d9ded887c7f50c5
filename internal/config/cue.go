package config

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"smoothfade/internal/fade"
)

// Cue is a fade request scheduled at a point on the render timeline.
//
// The compact command-line form is DIRECTION@AT[:TARGET[-END]], e.g.
//
//	out@2        fade out at 2s to the default target
//	in@5:0.8     fade in at 5s to 0.8
//	out@1:0.1-4  fade out at 1s to 0.1, finishing at 4s
type Cue struct {
	At        float64  `yaml:"at"`                 // Seconds from the start of the render.
	Direction string   `yaml:"direction"`          // "in" or "out".
	Target    *float64 `yaml:"target,omitempty"`   // Target gain, default 1.
	EndTime   *float64 `yaml:"end_time,omitempty"` // Absolute end time, default derived by the engine.
}

// ParseCue parses the compact cue form.
func ParseCue(s string) (Cue, error) {
	dir, rest, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok {
		return Cue{}, fmt.Errorf("cue %q: expected DIRECTION@AT", s)
	}

	at, rest, hasTarget := strings.Cut(rest, ":")
	atVal, err := strconv.ParseFloat(at, 64)
	if err != nil {
		return Cue{}, fmt.Errorf("cue %q: invalid time: %w", s, err)
	}
	cue := Cue{At: atVal, Direction: dir}

	if hasTarget {
		target, end, hasEnd := strings.Cut(rest, "-")
		targetVal, err := strconv.ParseFloat(target, 64)
		if err != nil {
			return Cue{}, fmt.Errorf("cue %q: invalid target: %w", s, err)
		}
		cue.Target = &targetVal

		if hasEnd {
			endVal, err := strconv.ParseFloat(end, 64)
			if err != nil {
				return Cue{}, fmt.Errorf("cue %q: invalid end time: %w", s, err)
			}
			cue.EndTime = &endVal
		}
	}

	if _, err := fade.ParseDirection(cue.Direction); err != nil {
		return Cue{}, fmt.Errorf("cue %q: %w", s, err)
	}
	return cue, nil
}

// ParseCues parses each value and returns the cues ordered by time.
func ParseCues(values []string) ([]Cue, error) {
	cues := make([]Cue, 0, len(values))
	for _, v := range values {
		cue, err := ParseCue(v)
		if err != nil {
			return nil, err
		}
		cues = append(cues, cue)
	}
	SortCues(cues)
	return cues, nil
}

// SortCues orders cues by time, keeping the given order for equal times.
func SortCues(cues []Cue) {
	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].At < cues[j].At
	})
}

// FadeDirection returns the parsed direction, or fade.None if invalid.
func (c Cue) FadeDirection() fade.Direction {
	dir, err := fade.ParseDirection(c.Direction)
	if err != nil {
		return fade.None
	}
	return dir
}

// Options converts the cue into fade request options.
func (c Cue) Options() []fade.Option {
	opts := []fade.Option{fade.StartAt(c.At)}
	if c.Target != nil {
		opts = append(opts, fade.Target(*c.Target))
	}
	if c.EndTime != nil {
		opts = append(opts, fade.EndAt(*c.EndTime))
	}
	return opts
}

func (c Cue) String() string {
	s := fmt.Sprintf("%s@%g", c.Direction, c.At)
	if c.Target != nil {
		s += fmt.Sprintf(":%g", *c.Target)
		if c.EndTime != nil {
			s += fmt.Sprintf("-%g", *c.EndTime)
		}
	}
	return s
}

func (c Cue) validate(curve fade.Curve) error {
	if _, err := fade.ParseDirection(c.Direction); err != nil {
		return err
	}
	if c.At < 0 || math.IsNaN(c.At) || math.IsInf(c.At, 0) {
		return fmt.Errorf("at must be a non-negative time, got %g", c.At)
	}
	if c.Target != nil {
		if math.IsNaN(*c.Target) || math.IsInf(*c.Target, 0) {
			return fmt.Errorf("target must be finite")
		}
		if curve == fade.Exponential && *c.Target <= 0 {
			return fmt.Errorf("target %g: %w", *c.Target, fade.ErrNonPositiveValue)
		}
	}
	if c.EndTime != nil && *c.EndTime < c.At {
		return fmt.Errorf("end_time %g precedes at %g", *c.EndTime, c.At)
	}
	return nil
}
