// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	applog "smoothfade/internal/log"
	"smoothfade/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// DefaultCutoffHz splits the spectrum for click detection. A clean fade of
// a low tone keeps nearly all energy below it; a gain discontinuity spreads
// energy across the whole band.
const DefaultCutoffHz = 4000.0

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed mono input, filled across calls to Observe.
	filled    int          // Samples currently in input.
	fftOutput []complex128 // FFT complex results.
	magnitude []float64    // Power per bin.
	window    []float64    // Pre-calculated window coefficients.
}

// Spectrum tracks how much of the output energy sits above a cutoff
// frequency, frame by frame. Spikes in that ratio locate audible clicks that
// a per-sample gain check cannot see, such as ones already present in the
// source.
type Spectrum struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64
	cutoffBin     int
	workspace     fftWorkspace

	frames     int
	maxRatio   float64
	maxRatioAt float64
}

// NewSpectrum creates a Spectrum analysing fftSize-sample frames.
func NewSpectrum(fftSize int, sampleRate, cutoffHz float64, windowType WindowFunc) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d (try %d)", fftSize, bitint.NextPowerOfTwo(fftSize))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if cutoffHz <= 0 || cutoffHz >= sampleRate/2 {
		return nil, fmt.Errorf("cutoff must be between 0 and %f Hz, got %f", sampleRate/2, cutoffHz)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	// FFT output size for real input is N/2 + 1 complex values.
	binCount := fftSize/2 + 1

	applog.Debugf("Analysis: Initializing Spectrum (Size: %d, SampleRate: %.1f Hz, Cutoff: %.0f Hz)", fftSize, sampleRate, cutoffHz)

	return &Spectrum{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		cutoffBin:     int(cutoffHz * float64(fftSize) / sampleRate),
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, binCount),
			magnitude: make([]float64, binCount),
			window:    windowCoeffs,
		},
	}, nil
}

// Observe implements Processor. Samples are buffered until a full FFT frame
// is available; frames do not overlap.
func (s *Spectrum) Observe(samples []float32, channels int, gains []float64) {
	if channels <= 0 {
		return
	}
	ws := &s.workspace
	frames := len(samples) / channels
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		ws.input[ws.filled] = float64(sum) / float64(channels) * ws.window[ws.filled]
		ws.filled++
		if ws.filled == s.fftSize {
			s.analyse()
			ws.filled = 0
		}
	}
}

func (s *Spectrum) analyse() {
	ws := &s.workspace
	s.fftCalculator.Coefficients(ws.fftOutput, ws.input)
	for i, c := range ws.fftOutput {
		m := cmplx.Abs(c)
		ws.magnitude[i] = m * m
	}

	total := floats.Sum(ws.magnitude)
	if total > 0 {
		ratio := floats.Sum(ws.magnitude[s.cutoffBin:]) / total
		if ratio > s.maxRatio {
			s.maxRatio = ratio
			s.maxRatioAt = float64(s.frames*s.fftSize) / s.sampleRate
		}
	}
	s.frames++
}

// MaxHighBandRatio returns the largest fraction of frame energy found above
// the cutoff, and the start time in seconds of the frame it was found in.
func (s *Spectrum) MaxHighBandRatio() (ratio, at float64) {
	return s.maxRatio, s.maxRatioAt
}

// GetFrequencyForBin returns the center frequency (Hz) for a given FFT bin index.
func (s *Spectrum) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(s.workspace.fftOutput) {
		return 0.0
	}
	return float64(binIndex) * (s.sampleRate / float64(s.fftSize))
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window function, Hann if the
// type is unknown.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// Window funcs multiply in place.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
