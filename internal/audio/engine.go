// SPDX-License-Identifier: MIT
/*
Package audio plays and renders faded audio:
- Sources for a test tone and decoded WAV, AIFF, MP3 and Ogg Vorbis files
- A Renderer applying the fade automation sample by sample
- Offline rendering to WAV
- Live PortAudio output with optional WAV recording

Thread Safety:
- The output callback is the only caller of the Renderer
- Recording state is switched with atomic operations
- Buffers are pre-allocated so the hot path does not allocate
*/
package audio

import (
	"errors"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"smoothfade/internal/config"
	applog "smoothfade/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

type Engine struct {
	// Core configuration and state.
	config   *config.Config
	renderer *Renderer

	// Audio output handling.
	outputDevice  *portaudio.DeviceInfo
	outputLatency time.Duration
	outputStream  *portaudio.Stream
	framesPerBuf  int

	// Closed once the source is exhausted.
	done     chan struct{}
	doneOnce sync.Once

	// Recording state and buffers.
	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
}

// NewEngine prepares live output of renderer on the configured device.
func NewEngine(cfg *config.Config, renderer *Renderer) (*Engine, error) {
	if renderer == nil {
		return nil, errors.New("audio: renderer is required")
	}

	outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		renderer:     renderer,
		outputDevice: outputDevice,
		framesPerBuf: cfg.Audio.FramesPerBuffer,
		done:         make(chan struct{}),
	}

	if cfg.Audio.LowLatency {
		engine.outputLatency = outputDevice.DefaultLowOutputLatency
	} else {
		engine.outputLatency = outputDevice.DefaultHighOutputLatency
	}

	return engine, nil
}

func (e *Engine) StartOutputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0, // No input device
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: e.renderer.Channels(),
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.framesPerBuf,
		SampleRate:      float64(e.renderer.SampleRate()),
	}

	stream, err := portaudio.OpenStream(params, e.processOutputStream)
	if err != nil {
		return err
	}
	e.outputStream = stream

	if err := e.outputStream.Start(); err != nil {
		e.outputStream.Close()
		e.outputStream = nil
		return err
	}

	applog.Infof("Audio: Output started on %q (%d Hz, %d ch, latency %s)",
		e.outputDevice.Name, e.renderer.SampleRate(), e.renderer.Channels(), e.outputLatency)
	return nil
}

func (e *Engine) StopOutputStream() error {
	if e.outputStream != nil {
		if err := e.outputStream.Stop(); err != nil {
			return err
		}

		if err := e.outputStream.Close(); err != nil {
			return err
		}

		e.outputStream = nil
	}

	return nil
}

// Done is closed when the source has been played to the end.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// processOutputStream is the audio output callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processOutputStream(out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	_, err := e.renderer.Process(out)
	e.renderer.Prune()

	// Write to WAV file if recording
	if atomic.LoadInt32(&e.isRecording) == 1 && e.wavEncoder != nil {
		toIntBuffer(e.sampleBuf, out, e.config.Recording.BitDepth)
		if werr := e.wavEncoder.Write(e.sampleBuf); werr != nil {
			applog.Errorf("Error writing to WAV file: %v", werr)
		}
	}

	if errors.Is(err, io.EOF) {
		e.doneOnce.Do(func() { close(e.done) })
	} else if err != nil {
		applog.Errorf("Audio: source error: %v", err)
		e.doneOnce.Do(func() { close(e.done) })
	}
}
