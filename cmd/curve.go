package cmd

import (
	"fmt"
	"io"
	"math"

	"smoothfade/internal/automation"
	"smoothfade/internal/config"
	"smoothfade/internal/fade"

	"github.com/spf13/cobra"
)

type curveOptions struct {
	step  float64
	until float64
}

func newCurveCommand(global *globalOptions) *cobra.Command {
	opts := &curveOptions{}

	curveCmd := &cobra.Command{
		Use:   "curve",
		Short: "Print the gain the cues produce over time, without audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !(opts.step > 0) {
				return fmt.Errorf("step must be positive, got %g", opts.step)
			}
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			return printCurve(cmd.OutOrStdout(), cfg, opts)
		},
	}

	curveCmd.Flags().Float64Var(&opts.step, "step", 0.5,
		"Seconds between rows")
	curveCmd.Flags().Float64Var(&opts.until, "until", 0,
		"Last time to print (default: one fade length past the last cue)")

	return curveCmd
}

// printCurve fires the cues on a manual clock and tabulates the engine's
// prediction next to the scheduler's own value.
func printCurve(w io.Writer, cfg *config.Config, opts *curveOptions) error {
	clock := &automation.ManualClock{}
	timeline, engine, err := newFader(cfg, clock)
	if err != nil {
		return err
	}

	until := opts.until
	if until <= 0 {
		until = cfg.Fade.FadeLength
		if n := len(cfg.Cues); n > 0 {
			until += cfg.Cues[n-1].At
		}
	}

	fmt.Fprintf(w, "%-6s %-10s %-12s %-12s\n", "cue", "time", "engine", "scheduler")

	next := 0
	rows := int(math.Floor(until/opts.step + 1e-9))
	for i := 0; i <= rows; i++ {
		t := float64(i) * opts.step

		for ; next < len(cfg.Cues) && cfg.Cues[next].At <= t; next++ {
			cue := cfg.Cues[next]
			clock.Set(cue.At)
			if err := engine.FadeTo(cue.FadeDirection(), cue.Options()...); err != nil {
				fmt.Fprintf(w, "%-6s %-10.3f rejected: %v\n", cue.String(), cue.At, err)
				continue
			}
			win := engine.Window()
			fmt.Fprintf(w, "%-6s %-10.3f %s %.4f -> %.4f by %.3fs\n",
				cue.String(), cue.At, win.Direction, win.StartValue, win.TargetValue, win.EndTime)
		}

		clock.Set(t)
		fmt.Fprintf(w, "%-6s %-10.3f %-12.6f %-12.6f\n", "", t, engine.ValueAt(t), timeline.ValueAt(t))
	}

	if engine.Direction() == fade.None && len(cfg.Cues) > 0 {
		return fmt.Errorf("no cue was accepted")
	}
	return nil
}
