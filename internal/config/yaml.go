// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	applog "smoothfade/internal/log"
	"smoothfade/internal/fade"
	"smoothfade/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Fade      FadeConfig      `yaml:"fade"`      // Fade engine settings.
	Audio     AudioConfig     `yaml:"audio"`     // Audio output settings.
	Recording RecordingConfig `yaml:"recording"` // Recording of the faded output.
	Transport TransportConfig `yaml:"transport"` // Gain monitoring over the network.
	Cues      []Cue           `yaml:"cues"`      // Scripted fade requests for offline rendering.
}

// FadeConfig holds the fade engine construction options.
type FadeConfig struct {
	Type       string  `yaml:"type"`        // "linear" or "exponential".
	FadeLength float64 `yaml:"fade_length"` // Seconds for a full-range fade.
	StartValue float64 `yaml:"start_value"` // Gain before the first fade (0 reads the scheduler).
	Debug      bool    `yaml:"debug"`       // Trace engine decisions at debug level.
}

// AudioConfig holds settings related to audio output and the signal being faded.
type AudioConfig struct {
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for output (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback, power of two.
	Channels        int     `yaml:"channels"`          // Output channels (1 or 2).
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio.
	ToneHz          float64 `yaml:"tone_hz"`           // Test tone frequency when no source file is set.
	ToneLevel       float64 `yaml:"tone_level"`        // Test tone amplitude (0-1).
	Source          string  `yaml:"source"`            // Optional .wav, .mp3 or .ogg file to fade instead of the tone.
	Duration        float64 `yaml:"duration_seconds"`  // Length of an offline render.
}

// RecordingConfig holds settings related to writing the faded output to disk.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record live output.
	OutputFile string `yaml:"output_file"` // WAV file to write.
	BitDepth   int    `yaml:"bit_depth"`   // 16, 24 or 32.
}

// TransportConfig holds settings related to publishing gain snapshots.
type TransportConfig struct {
	MonitorInterval  time.Duration `yaml:"monitor_interval"`   // Interval between snapshots for JSON transports.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable binary gain packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve snapshots on ws://<addr>/ws.
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address for the WebSocket server.
	MQTTEnabled      bool          `yaml:"mqtt_enabled"`       // Publish snapshots to an MQTT broker.
	MQTTBroker       string        `yaml:"mqtt_broker"`        // Broker URL, e.g. tcp://localhost:1883.
	MQTTTopic        string        `yaml:"mqtt_topic"`         // Topic for snapshots.
	MQTTClientID     string        `yaml:"mqtt_client_id"`     // MQTT client identifier.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Fade: FadeConfig{
			Type:       DefaultFadeType,
			FadeLength: DefaultFadeLength,
			StartValue: DefaultStartValue,
			Debug:      DefaultFadeDebug,
		},
		Audio: AudioConfig{
			OutputDevice:    DefaultOutputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			Channels:        DefaultChannels,
			LowLatency:      DefaultLowLatency,
			ToneHz:          DefaultToneHz,
			ToneLevel:       DefaultToneLevel,
			Duration:        DefaultRenderDuration,
		},
		Recording: RecordingConfig{
			Enabled:    DefaultRecordingEnabled,
			OutputFile: DefaultOutputFile,
			BitDepth:   DefaultBitDepth,
		},
		Transport: TransportConfig{
			MonitorInterval:  DefaultMonitorInterval,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WebSocketAddr:    DefaultWebSocketAddr,
			MQTTBroker:       DefaultMQTTBroker,
			MQTTTopic:        DefaultMQTTTopic,
			MQTTClientID:     DefaultMQTTClientID,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches the working directory for DefaultConfigFile. If no file is found, it uses
// built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	// Fade Validation
	curve, err := fade.ParseCurve(c.Fade.Type)
	if err != nil {
		errs = append(errs, fmt.Errorf("fade.type: %w", err))
	}
	if !(c.Fade.FadeLength > 0) || math.IsInf(c.Fade.FadeLength, 0) {
		errs = append(errs, fmt.Errorf("fade.fade_length must be positive, got %g", c.Fade.FadeLength))
	}
	if c.Fade.StartValue < 0 || math.IsNaN(c.Fade.StartValue) {
		errs = append(errs, fmt.Errorf("fade.start_value must not be negative, got %g", c.Fade.StartValue))
	}

	// Audio Validation
	if c.Audio.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.output_device must be >= %d", MinDeviceID))
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be within [%d, %d], got %g",
			MinSampleRate, MaxSampleRate, c.Audio.SampleRate))
	}
	if !bitint.IsPowerOfTwo(c.Audio.FramesPerBuffer) || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be a power of two up to %d, got %d (try %d)",
			MaxBufferFrames, c.Audio.FramesPerBuffer, min(bitint.NextPowerOfTwo(c.Audio.FramesPerBuffer), MaxBufferFrames)))
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > MaxChannels {
		errs = append(errs, fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels))
	}
	if c.Audio.ToneHz <= 0 || c.Audio.ToneHz >= c.Audio.SampleRate/2 {
		errs = append(errs, fmt.Errorf("audio.tone_hz must be between 0 and Nyquist, got %g", c.Audio.ToneHz))
	}
	if c.Audio.ToneLevel < 0 || c.Audio.ToneLevel > 1 {
		errs = append(errs, fmt.Errorf("audio.tone_level must be within [0, 1], got %g", c.Audio.ToneLevel))
	}
	if c.Audio.Duration <= 0 {
		errs = append(errs, fmt.Errorf("audio.duration_seconds must be positive, got %g", c.Audio.Duration))
	}

	// Recording Validation
	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth))
	}

	// Transport Validation
	if c.Transport.MonitorInterval <= 0 {
		errs = append(errs, fmt.Errorf("transport.monitor_interval must be positive"))
	}
	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid: %w",
				c.Transport.UDPTargetAddress, err))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddr == "" {
		errs = append(errs, fmt.Errorf("transport.websocket_addr must be set when WebSocket is enabled"))
	}
	if c.Transport.MQTTEnabled {
		if c.Transport.MQTTBroker == "" {
			errs = append(errs, fmt.Errorf("transport.mqtt_broker must be set when MQTT is enabled"))
		}
		if c.Transport.MQTTTopic == "" {
			errs = append(errs, fmt.Errorf("transport.mqtt_topic must be set when MQTT is enabled"))
		}
	}

	// Cue Validation
	for i, cue := range c.Cues {
		if err := cue.validate(curve); err != nil {
			errs = append(errs, fmt.Errorf("cues[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Curve returns the parsed fade curve. Validate must have succeeded.
func (c *Config) Curve() fade.Curve {
	curve, _ := fade.ParseCurve(c.Fade.Type)
	return curve
}

// applyEnvOverrides applies SMOOTHFADE_* environment variables on top of the
// file or default values.
func (cfg *Config) applyEnvOverrides() {
	// SMOOTHFADE_LOG_LEVEL
	if val, ok := os.LookupEnv("SMOOTHFADE_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// SMOOTHFADE_FADE_{...}
	// These are specific to the fade engine.

	// SMOOTHFADE_FADE_DEBUG
	if val, ok := os.LookupEnv("SMOOTHFADE_FADE_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Fade.Debug = bVal
			applog.Infof("configuration: Overriding fade.debug from env: %v", bVal)
		}
	}
	// SMOOTHFADE_FADE_TYPE
	if val, ok := os.LookupEnv("SMOOTHFADE_FADE_TYPE"); ok {
		cfg.Fade.Type = strings.ToLower(val)
		applog.Infof("configuration: Overriding fade.type from env: %s", val)
	}
	// SMOOTHFADE_FADE_LENGTH
	if val, ok := os.LookupEnv("SMOOTHFADE_FADE_LENGTH"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Fade.FadeLength = fVal
			applog.Infof("configuration: Overriding fade.fade_length from env: %g", fVal)
		}
	}

	// SMOOTHFADE_UDP_{...}
	// These are specific to the transport layer.

	// SMOOTHFADE_UDP_ENABLED
	if val, ok := os.LookupEnv("SMOOTHFADE_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// SMOOTHFADE_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("SMOOTHFADE_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// SMOOTHFADE_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("SMOOTHFADE_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
	// SMOOTHFADE_MQTT_BROKER
	if val, ok := os.LookupEnv("SMOOTHFADE_MQTT_BROKER"); ok {
		cfg.Transport.MQTTBroker = val
		cfg.Transport.MQTTEnabled = val != ""
		applog.Infof("configuration: Overriding transport.mqtt_broker from env: %s", val)
	}
}
