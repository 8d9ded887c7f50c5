package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smoothfade/internal/analysis"
	"smoothfade/internal/audio"
	"smoothfade/internal/automation"
	"smoothfade/internal/config"
	"smoothfade/internal/fade"
	applog "smoothfade/internal/log"
	"smoothfade/internal/transport"
	"smoothfade/internal/transport/mqtt"
	"smoothfade/internal/transport/udp"
	"smoothfade/internal/tui"

	"github.com/spf13/cobra"
)

type playOptions struct {
	source     string
	deviceID   int
	pick       bool
	lowLatency bool
	record     bool
	output     string
	headless   bool
	inTarget   float64
	outTarget  float64
}

func newPlayCommand(global *globalOptions) *cobra.Command {
	opts := &playOptions{}

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Play a tone or audio file with an interactive fader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("source") {
				cfg.Audio.Source = opts.source
			}
			if flags.Changed("device") {
				cfg.Audio.OutputDevice = opts.deviceID
			}
			if flags.Changed("low-latency") {
				cfg.Audio.LowLatency = opts.lowLatency
			}
			if flags.Changed("record") {
				cfg.Recording.Enabled = opts.record
			}
			if flags.Changed("output") {
				cfg.Recording.OutputFile = opts.output
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if cfg.Curve() == fade.Exponential && (opts.inTarget <= 0 || opts.outTarget <= 0) {
				return fmt.Errorf("exponential fades need positive targets, got in=%g out=%g: %w",
					opts.inTarget, opts.outTarget, fade.ErrNonPositiveValue)
			}
			return runPlay(cmd, cfg, opts)
		},
	}

	// Audio Device Configuration
	playCmd.Flags().StringVarP(&opts.source, "source", "s", "",
		"Audio file to fade instead of the test tone (.wav, .aiff, .mp3, .ogg)")
	playCmd.Flags().IntVarP(&opts.deviceID, "device", "d", config.DefaultOutputDevice,
		"Output device ID. Use 'list' command to see available devices.")
	playCmd.Flags().BoolVarP(&opts.pick, "pick", "p", false,
		"Choose the output device interactively")
	playCmd.Flags().BoolVarP(&opts.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Recording Configuration
	playCmd.Flags().BoolVarP(&opts.record, "record", "r", config.DefaultRecordingEnabled,
		"Record the faded output")
	playCmd.Flags().StringVarP(&opts.output, "output", "o", config.DefaultOutputFile,
		"Output file name. Default is smoothfade-MM-DD-YYYY-HHMMSS.wav")

	// Fader Configuration
	playCmd.Flags().BoolVar(&opts.headless, "headless", false,
		"Run without the terminal fader; only cues change the gain")
	playCmd.Flags().Float64Var(&opts.inTarget, "in-target", tui.DefaultInTarget,
		"Gain the fade in key heads for")
	playCmd.Flags().Float64Var(&opts.outTarget, "out-target", tui.DefaultOutTarget,
		"Gain the fade out key heads for")

	return playCmd
}

func runPlay(cmd *cobra.Command, cfg *config.Config, opts *playOptions) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if opts.pick {
		id, err := tui.PickOutputDevice()
		if err != nil {
			return err
		}
		cfg.Audio.OutputDevice = id
	}

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
	meter, err := analysis.NewMeter(sampleRate, analysis.DefaultClickThreshold)
	if err != nil {
		return err
	}
	renderer, err := audio.NewRenderer(src, cfg.Audio.Channels, clock, timeline, engine, cfg.Cues, meter)
	if err != nil {
		return err
	}

	output, err := audio.NewEngine(cfg, renderer)
	if err != nil {
		return err
	}
	defer func() {
		if err := output.Close(); err != nil {
			applog.Errorf("Error closing audio engine: %v", err)
		}
	}()

	monitor, err := startMonitor(cfg, engine, clock)
	if err != nil {
		return err
	}
	if monitor != nil {
		defer func() {
			if err := monitor.Close(); err != nil {
				applog.Warnf("Error closing monitor: %v", err)
			}
		}()
	}

	publisher, sender, err := startUDP(cfg, engine, clock)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer func() {
			publisher.Close()
			sender.Close()
		}()
	}

	// CRITICAL: Start of real-time audio processing
	if err := output.StartOutputStream(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		if cfg.Recording.OutputFile == "" {
			cfg.Recording.OutputFile = "smoothfade-" + time.Now().UTC().Format("01-02-2006-150405") + ".wav"
		}
		if err := output.StartRecording(cfg.Recording.OutputFile); err != nil {
			return err
		}
	}

	if opts.headless {
		waitForStop(output.Done())
	} else {
		err = tui.RunFader(engine, clock, output.Done(), tui.WithTargets(opts.inTarget, opts.outTarget))
	}

	if stopErr := output.StopOutputStream(); stopErr != nil {
		applog.Warnf("Error stopping output stream: %v", stopErr)
	}

	out := cmd.OutOrStdout()
	if cfg.Recording.Enabled {
		if err := output.StopRecording(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		}
		fmt.Fprintf(out, "\nRecording saved to: %s\n", cfg.Recording.OutputFile)
	}
	fmt.Fprintf(out, "Meter: %s\n", meter.Report())
	return err
}

// waitForStop blocks until the source ends or the process is interrupted.
func waitForStop(done <-chan struct{}) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
	case <-done:
	}
}

// startMonitor starts the JSON snapshot transports that are enabled. It
// returns a nil Monitor when none are.
func startMonitor(cfg *config.Config, source transport.GainSource, clock fade.Clock) (*transport.Monitor, error) {
	tc := cfg.Transport

	var transports []transport.Transport
	closeAll := func() {
		for _, t := range transports {
			t.Close()
		}
	}

	if cfg.Fade.Debug {
		transports = append(transports, transport.NewLoggingTransport())
	}
	if tc.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddr)
		if err != nil {
			closeAll()
			return nil, err
		}
		applog.Infof("Serving gain snapshots on ws://%s/ws", ws.Addr())
		transports = append(transports, ws)
	}
	if tc.MQTTEnabled {
		mt, err := mqtt.New(mqtt.Options{
			Broker:   tc.MQTTBroker,
			ClientID: tc.MQTTClientID,
			Topic:    tc.MQTTTopic,
		})
		if err != nil {
			closeAll()
			return nil, err
		}
		transports = append(transports, mt)
	}

	if len(transports) == 0 {
		return nil, nil
	}

	monitor, err := transport.NewMonitor(source, clock, tc.MonitorInterval, transports...)
	if err != nil {
		closeAll()
		return nil, err
	}
	monitor.Start()
	return monitor, nil
}

// startUDP starts the binary gain publisher when enabled.
func startUDP(cfg *config.Config, source transport.GainSource, clock fade.Clock) (*udp.UDPPublisher, *udp.UDPSender, error) {
	tc := cfg.Transport
	if !tc.UDPEnabled {
		return nil, nil, nil
	}

	sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := udp.NewUDPPublisher(tc.UDPSendInterval, sender, source, clock)
	if err != nil {
		return nil, nil, errors.Join(err, sender.Close())
	}
	publisher.Start()
	return publisher, sender, nil
}
