// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"smoothfade/internal/fade"
)

func TestToneSource(t *testing.T) {
	tone, err := NewToneSource(250, 0.5, testSampleRate, 2)
	if err != nil {
		t.Fatalf("NewToneSource: %v", err)
	}

	// A quarter of the sample rate repeats every 4 frames: 0, 0.5, 0, -0.5.
	buf := make([]float32, 8*2)
	n, err := tone.ReadSamples(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("ReadSamples = %d, %v", n, err)
	}
	want := []float64{0, 0.5, 0, -0.5, 0, 0.5, 0, -0.5}
	for i, w := range want {
		for ch := range 2 {
			if got := float64(buf[i*2+ch]); math.Abs(got-w) > 1e-6 {
				t.Errorf("frame %d ch %d = %g, want %g", i, ch, got, w)
			}
		}
	}
}

func TestToneSourceErrors(t *testing.T) {
	tests := []struct {
		name       string
		freq       float64
		sampleRate int
		channels   int
	}{
		{"Zero rate", 440, 0, 1},
		{"Zero channels", 440, 48000, 0},
		{"Above Nyquist", 600, testSampleRate, 1},
		{"Zero frequency", 0, testSampleRate, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewToneSource(tt.freq, 0.5, tt.sampleRate, tt.channels); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestOpenSourceErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := OpenSource(filepath.Join(dir, "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}

	flac := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(flac, []byte("fLaC"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenSource(flac); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("flac: got %v, want ErrUnsupportedFormat", err)
	}

	bogus := filepath.Join(dir, "bogus.wav")
	if err := os.WriteFile(bogus, []byte("not a riff file at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenSource(bogus); err == nil {
		t.Error("bogus wav: expected error")
	}

	bogusMP3 := filepath.Join(dir, "bogus.mp3")
	if err := os.WriteFile(bogusMP3, []byte{0, 1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenSource(bogusMP3); err == nil {
		t.Error("bogus mp3: expected error")
	}
}

func TestWAVSourceRoundTrip(t *testing.T) {
	for _, bitDepth := range []int{16, 24, 32} {
		t.Run(fmt.Sprintf("%dbit", bitDepth), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tone.wav")
			f, err := os.Create(path)
			if err != nil {
				t.Fatal(err)
			}

			tone, _ := NewToneSource(250, 0.5, testSampleRate, 1)
			rig := newTestRig(t, tone, 1, fade.Linear)
			if _, err := Render(f, rig.renderer, RenderOptions{Duration: 0.1, BitDepth: bitDepth}); err != nil {
				t.Fatalf("Render: %v", err)
			}
			f.Close()

			src, err := OpenSource(path)
			if err != nil {
				t.Fatalf("OpenSource: %v", err)
			}
			defer src.Close()

			samples := readAll(t, src)
			if len(samples) != 100 {
				t.Fatalf("read %d samples, want 100", len(samples))
			}
			if math.Abs(float64(samples[1])-0.5) > 1e-3 || math.Abs(float64(samples[3])+0.5) > 1e-3 {
				t.Errorf("decoded tone = %v", samples[:4])
			}
		})
	}
}
