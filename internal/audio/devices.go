package audio

import (
	"fmt"
	"io"

	"smoothfade/internal/config"

	"github.com/gordonklaus/portaudio"
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Device represents an output-capable audio device.
type Device struct {
	ID                int
	Name              string
	MaxOutputChannels int
	DefaultSampleRate float64
	LowLatencyMs      float64
	HighLatencyMs     float64
	IsDefault         bool
}

// paDevicesFunc is swapped out in tests.
var paDevicesFunc = portaudio.Devices

// OutputDevice retrieves the audio output device for the given device ID.
// If deviceID is MinDeviceID (-1), returns the system default output device.
// Returns an error if the device ID is invalid or has no output channels.
func OutputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		return portaudio.DefaultOutputDevice()
	}

	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxOutputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no output channels", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// OutputDevices returns every device with at least one output channel,
// keeping the PortAudio index as the ID.
func OutputDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	var defaultName string
	if def, err := portaudio.DefaultOutputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	return outputDevices(infos, defaultName), nil
}

func outputDevices(infos []*portaudio.DeviceInfo, defaultName string) []Device {
	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		if info.MaxOutputChannels == 0 {
			continue
		}
		devices = append(devices, Device{
			ID:                i,
			Name:              info.Name,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowLatencyMs:      info.DefaultLowOutputLatency.Seconds() * 1000,
			HighLatencyMs:     info.DefaultHighOutputLatency.Seconds() * 1000,
			IsDefault:         info.Name == defaultName,
		})
	}
	return devices
}

// ListDevices writes information about all output devices to w.
func ListDevices(w io.Writer) error {
	devices, err := OutputDevices()
	if err != nil {
		return err
	}
	writeDevices(w, devices)
	return nil
}

func writeDevices(w io.Writer, devices []Device) {
	fmt.Fprintf(w, "\nAvailable Output Devices\n\n")

	for _, d := range devices {
		marker := ""
		if d.IsDefault {
			marker = " (default)"
		}
		fmt.Fprintf(w, "[%d] %s%s\n", d.ID, d.Name, marker)
		fmt.Fprintf(w, "    Output channels: %d\n", d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n", d.LowLatencyMs, d.HighLatencyMs)
		fmt.Fprintln(w)
	}
}
