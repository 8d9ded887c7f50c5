// Package utils holds signal generators and fakes shared by tests.
package utils

import (
	"math"
	"sync"
)

// MockTransport implements the Transport interface for testing.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool

	// Err is returned from Send when set.
	Err error
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a mono 440Hz tone with two harmonics, peaking
// below 0.9.
func GenerateComplexWave(frames int, sampleRate float64) []float32 {
	buffer := make([]float32, frames)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns interleaved frames of a sine at the given peak
// amplitude, identical on every channel.
func GenerateSineWave(frames, channels int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, frames*channels)
	for i := range frames {
		t := float64(i) / sampleRate
		v := float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
		for ch := range channels {
			buffer[i*channels+ch] = v
		}
	}
	return buffer
}
