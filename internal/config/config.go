package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the fader and its audio output.
const (
	// Fade defaults
	DefaultFadeType   = "exponential" // Perceptually even fades
	DefaultFadeLength = 10.0          // Seconds for a full-range fade
	DefaultStartValue = 1.0           // Unity gain
	DefaultFadeDebug  = false         // No engine tracing

	// Audio defaults
	DefaultOutputDevice    = MinDeviceID // System default device
	DefaultSampleRate      = 48000       // Hz
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultChannels        = 2           // Stereo
	DefaultLowLatency      = false       // Standard latency mode
	DefaultToneHz          = 440.0       // A4
	DefaultToneLevel       = 0.5         // -6 dBFS before the fader
	DefaultRenderDuration  = 20.0        // Seconds rendered by the render command

	// Recording defaults
	DefaultRecordingEnabled = false
	DefaultOutputFile       = "" // Auto-generated filename
	DefaultBitDepth         = 16

	// Transport defaults
	DefaultMonitorInterval  = 50 * time.Millisecond
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultWebSocketAddr    = ":8080"
	DefaultMQTTBroker       = "tcp://localhost:1883"
	DefaultMQTTTopic        = "smoothfade/gain"
	DefaultMQTTClientID     = "smoothfade"

	DefaultLogLevel = "info"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxChannels     = 2
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "smoothfade.yaml"
