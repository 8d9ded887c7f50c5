// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smoothfade/internal/fade"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "smoothfade.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Curve() != fade.Exponential {
		t.Errorf("default curve = %s, want exponential", cfg.Curve())
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
fade:
  type: linear
  fade_length: 4
  start_value: 0.8
  debug: true
audio:
  sample_rate: 44100
  frames_per_buffer: 256
  channels: 1
transport:
  udp_enabled: true
  udp_target_address: "10.0.0.2:7000"
  udp_send_interval: 20ms
cues:
  - at: 1
    direction: out
    target: 0.25
  - at: 3
    direction: in
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Curve() != fade.Linear || cfg.Fade.FadeLength != 4 || cfg.Fade.StartValue != 0.8 || !cfg.Fade.Debug {
		t.Errorf("fade section not loaded: %+v", cfg.Fade)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.FramesPerBuffer != 256 || cfg.Audio.Channels != 1 {
		t.Errorf("audio section not loaded: %+v", cfg.Audio)
	}
	if cfg.Audio.ToneHz != DefaultToneHz {
		t.Errorf("unset field should keep default, got tone_hz %g", cfg.Audio.ToneHz)
	}
	if cfg.Transport.UDPSendInterval != 20*time.Millisecond {
		t.Errorf("udp_send_interval = %s, want 20ms", cfg.Transport.UDPSendInterval)
	}
	if len(cfg.Cues) != 2 || cfg.Cues[0].Target == nil || *cfg.Cues[0].Target != 0.25 {
		t.Errorf("cues not loaded: %+v", cfg.Cues)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SMOOTHFADE_FADE_TYPE", "LINEAR")
	t.Setenv("SMOOTHFADE_FADE_LENGTH", "2.5")
	t.Setenv("SMOOTHFADE_UDP_ENABLED", "true")
	t.Setenv("SMOOTHFADE_UDP_SEND_INTERVAL", "10ms")

	path := writeTempConfig(t, "fade:\n  type: exponential\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Curve() != fade.Linear {
		t.Errorf("fade type override ignored: %s", cfg.Fade.Type)
	}
	if cfg.Fade.FadeLength != 2.5 {
		t.Errorf("fade length override ignored: %g", cfg.Fade.FadeLength)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 10*time.Millisecond {
		t.Errorf("UDP overrides ignored: %+v", cfg.Transport)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"Defaults", func(c *Config) {}, ""},
		{"Unknown curve", func(c *Config) { c.Fade.Type = "cubic" }, "fade.type"},
		{"Zero fade length", func(c *Config) { c.Fade.FadeLength = 0 }, "fade.fade_length"},
		{"Negative start", func(c *Config) { c.Fade.StartValue = -1 }, "fade.start_value"},
		{"Bad level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
		{"Low sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "audio.sample_rate"},
		{"Odd buffer", func(c *Config) { c.Audio.FramesPerBuffer = 500 }, "audio.frames_per_buffer"},
		{"Huge buffer", func(c *Config) { c.Audio.FramesPerBuffer = 16384 }, "audio.frames_per_buffer"},
		{"Too many channels", func(c *Config) { c.Audio.Channels = 6 }, "audio.channels"},
		{"Tone above Nyquist", func(c *Config) { c.Audio.ToneHz = 30000 }, "audio.tone_hz"},
		{"Bit depth", func(c *Config) { c.Recording.BitDepth = 12 }, "recording.bit_depth"},
		{"UDP address", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "udp_target_address"},
		{"MQTT broker", func(c *Config) {
			c.Transport.MQTTEnabled = true
			c.Transport.MQTTBroker = ""
		}, "mqtt_broker"},
		{"Exponential cue to zero", func(c *Config) {
			zero := 0.0
			c.Cues = []Cue{{At: 1, Direction: "out", Target: &zero}}
		}, "cues[0]"},
		{"Cue direction", func(c *Config) {
			c.Cues = []Cue{{At: 1, Direction: "up"}}
		}, "cues[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.yaml")

	cfg := Default()
	cfg.Fade.Type = "linear"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Curve() != fade.Linear {
		t.Errorf("saved curve lost: %s", loaded.Fade.Type)
	}
}
