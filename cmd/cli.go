package cmd

import (
	"fmt"
	"os"

	"smoothfade/internal/automation"
	"smoothfade/internal/config"
	"smoothfade/internal/fade"
	applog "smoothfade/internal/log"
	"smoothfade/pkg/build"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	fadeType   string
	fadeLength float64
	startValue float64
	debug      bool
	logLevel   string
	cues       []string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	buildInfo := build.GetBuildInfo()
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Configuration
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to a YAML config file (default ./"+config.DefaultConfigFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")

	// Fade Configuration
	rootCmd.PersistentFlags().StringVarP(&opts.fadeType, "type", "t", config.DefaultFadeType,
		"Fade curve (linear or exponential)")
	rootCmd.PersistentFlags().Float64VarP(&opts.fadeLength, "fade-length", "f", config.DefaultFadeLength,
		"Seconds for a full-range fade")
	rootCmd.PersistentFlags().Float64Var(&opts.startValue, "start-value", config.DefaultStartValue,
		"Gain before the first fade")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", config.DefaultFadeDebug,
		"Trace fade engine decisions")
	rootCmd.PersistentFlags().StringArrayVar(&opts.cues, "cue", nil,
		"Scripted fade DIRECTION@AT[:TARGET[-END]], e.g. out@2:0.01 (repeatable)")

	rootCmd.AddCommand(
		newListCommand(),
		newRenderCommand(opts),
		newPlayCommand(opts),
		newCurveCommand(opts),
	)

	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(os.Args[1:])
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies the persistent flags the
// user actually set on top of it.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("type") {
		cfg.Fade.Type = opts.fadeType
	}
	if flags.Changed("fade-length") {
		cfg.Fade.FadeLength = opts.fadeLength
	}
	if flags.Changed("start-value") {
		cfg.Fade.StartValue = opts.startValue
	}
	if flags.Changed("debug") {
		cfg.Fade.Debug = opts.debug
	}
	if len(opts.cues) > 0 {
		cues, err := config.ParseCues(opts.cues)
		if err != nil {
			return nil, err
		}
		cfg.Cues = cues
	}
	config.SortCues(cfg.Cues)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	if cfg.Fade.Debug && level > applog.LevelDebug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)

	return cfg, nil
}

// newFader builds a timeline and the fade engine driving it.
func newFader(cfg *config.Config, clock fade.Clock) (*automation.Timeline, *fade.Engine, error) {
	timeline := automation.NewTimeline(cfg.Fade.StartValue)
	engine, err := fade.New(clock, timeline, fade.Config{
		Curve:      cfg.Curve(),
		FadeLength: cfg.Fade.FadeLength,
		StartValue: cfg.Fade.StartValue,
		Debug:      cfg.Fade.Debug,
		Trace:      applog.Debugf,
	})
	if err != nil {
		return nil, nil, err
	}
	return timeline, engine, nil
}
