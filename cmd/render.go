package cmd

import (
	"fmt"
	"os"

	"smoothfade/internal/analysis"
	"smoothfade/internal/audio"
	"smoothfade/internal/automation"
	"smoothfade/internal/config"
	applog "smoothfade/internal/log"

	"github.com/spf13/cobra"
)

type renderOptions struct {
	output   string
	source   string
	duration float64
	bitDepth int
	fftSize  int
	window   string
}

func newRenderCommand(global *globalOptions) *cobra.Command {
	opts := &renderOptions{}

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render cued fades of a tone or audio file to a WAV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("source") {
				cfg.Audio.Source = opts.source
			}
			if cmd.Flags().Changed("duration") {
				cfg.Audio.Duration = opts.duration
			}
			if cmd.Flags().Changed("bit-depth") {
				cfg.Recording.BitDepth = opts.bitDepth
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runRender(cmd, cfg, opts)
		},
	}

	renderCmd.Flags().StringVarP(&opts.output, "output", "o", "render.wav",
		"WAV file to write")
	renderCmd.Flags().StringVarP(&opts.source, "source", "s", "",
		"Audio file to fade instead of the test tone (.wav, .aiff, .mp3, .ogg)")
	renderCmd.Flags().Float64VarP(&opts.duration, "duration", "d", config.DefaultRenderDuration,
		"Seconds to render; stops early when the source ends")
	renderCmd.Flags().IntVarP(&opts.bitDepth, "bit-depth", "b", config.DefaultBitDepth,
		"Output bit depth (16, 24 or 32)")
	renderCmd.Flags().IntVar(&opts.fftSize, "fft-size", 2048,
		"Frame size of the spectral click check (power of two)")
	renderCmd.Flags().StringVar(&opts.window, "window", "hann",
		"Window function of the spectral click check")

	return renderCmd
}

func runRender(cmd *cobra.Command, cfg *config.Config, opts *renderOptions) error {
	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	sampleRate := float64(src.SampleRate())
	clock, err := automation.NewSampleClock(sampleRate)
	if err != nil {
		return err
	}
	timeline, engine, err := newFader(cfg, clock)
	if err != nil {
		return err
	}

	windowType, err := analysis.ParseWindowFunc(opts.window)
	if err != nil {
		return err
	}
	meter, err := analysis.NewMeter(sampleRate, analysis.DefaultClickThreshold)
	if err != nil {
		return err
	}
	spectrum, err := analysis.NewSpectrum(opts.fftSize, sampleRate, analysis.DefaultCutoffHz, windowType)
	if err != nil {
		return err
	}

	renderer, err := audio.NewRenderer(src, cfg.Audio.Channels, clock, timeline, engine, cfg.Cues, meter, spectrum)
	if err != nil {
		return err
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	defer f.Close()

	applog.Infof("Render: %d cue(s), %s curve, %.1fs to %s", len(cfg.Cues), cfg.Curve(), cfg.Audio.Duration, opts.output)
	frames, err := audio.Render(f, renderer, audio.RenderOptions{
		Duration:        cfg.Audio.Duration,
		BitDepth:        cfg.Recording.BitDepth,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ratio, at := spectrum.MaxHighBandRatio()
	fmt.Fprintf(out, "Wrote %d frames to %s\n", frames, opts.output)
	fmt.Fprintf(out, "Meter: %s\n", meter.Report())
	fmt.Fprintf(out, "Spectrum: max energy above %.0f Hz %.2e at %.3fs\n", analysis.DefaultCutoffHz, ratio, at)
	return nil
}

// openSource returns the configured file, or the test tone when none is set.
func openSource(cfg *config.Config) (audio.Source, error) {
	if cfg.Audio.Source != "" {
		return audio.OpenSource(cfg.Audio.Source)
	}
	return audio.NewToneSource(cfg.Audio.ToneHz, cfg.Audio.ToneLevel, int(cfg.Audio.SampleRate), cfg.Audio.Channels)
}
