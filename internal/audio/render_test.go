// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"smoothfade/internal/analysis"
	"smoothfade/internal/automation"
	"smoothfade/internal/config"
	"smoothfade/internal/fade"
)

func TestRendererAppliesCuedFade(t *testing.T) {
	rig := newTestRig(t, newConstSource(2000, 1, 1), 2, fade.Linear, "out@0.5:0")

	out := make([]float32, 2000*2)
	for off := 0; off < len(out); off += testFrameSize * 2 {
		end := min(off+testFrameSize*2, len(out))
		if _, err := rig.renderer.Process(out[off:end]); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}

	tests := []struct {
		frame int
		want  float64
	}{
		{0, 1},
		{499, 1},
		{500, 1},
		{750, 0.75},
		{1000, 0.5},
		{1250, 0.25},
		{1500, 0},
		{1999, 0},
	}
	for _, tt := range tests {
		for ch := range 2 {
			if got := float64(out[tt.frame*2+ch]); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("frame %d ch %d = %g, want %g", tt.frame, ch, got, tt.want)
			}
		}
	}

	if rig.fader.Direction() != fade.Out {
		t.Errorf("cue did not reach the fader, direction %s", rig.fader.Direction())
	}
	if rig.clock.Frames() != 2000 {
		t.Errorf("clock advanced %d frames, want 2000", rig.clock.Frames())
	}
}

func TestRendererMatchesEngineWindow(t *testing.T) {
	rig := newTestRig(t, newConstSource(3000, 1, 1), 1, fade.Exponential,
		"out@0.2:0.01", "in@0.9", "out@1.3:0.1")

	out := make([]float32, 3000)
	for off := 0; off < len(out); off += testFrameSize {
		end := min(off+testFrameSize, len(out))
		if _, err := rig.renderer.Process(out[off:end]); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}

	// After the last cue the output follows the committed window exactly.
	for frame := 1300; frame < 3000; frame += 37 {
		want := rig.fader.ValueAt(float64(frame) / testSampleRate)
		if got := float64(out[frame]); math.Abs(got-want) > 1e-5 {
			t.Errorf("frame %d = %g, engine predicts %g", frame, got, want)
		}
	}
}

func TestRendererSourceEnd(t *testing.T) {
	rig := newTestRig(t, newConstSource(100, 1, 0.5), 1, fade.Linear)

	out := make([]float32, 128)
	for i := range out {
		out[i] = 9
	}
	n, err := rig.renderer.Process(out)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if n != 100 {
		t.Errorf("rendered %d frames, want 100", n)
	}
	if out[99] != 0.5 || out[100] != 0 || out[127] != 0 {
		t.Errorf("tail not zeroed: %g %g %g", out[99], out[100], out[127])
	}
}

func TestRendererProcessors(t *testing.T) {
	src := newConstSource(1000, 1, 1)
	clock, _ := automation.NewSampleClock(testSampleRate)
	timeline := automation.NewTimeline(1)
	fader, _ := fade.New(clock, timeline, fade.Config{Curve: fade.Linear, FadeLength: 1, StartValue: 1})
	meter, _ := analysis.NewMeter(testSampleRate, 0)

	r, err := NewRenderer(src, 1, clock, timeline, fader, nil, meter)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if err := fader.FadeOut(fade.Target(0.5)); err != nil {
		t.Fatalf("FadeOut: %v", err)
	}

	out := make([]float32, 1000)
	if _, err := r.Process(out); err != nil {
		t.Fatalf("Process: %v", err)
	}

	report := meter.Report()
	if report.Frames != 1000 {
		t.Errorf("meter saw %d frames, want 1000", report.Frames)
	}
	if report.Clicks != 0 {
		t.Errorf("smooth fade reported %d clicks", report.Clicks)
	}
	if math.Abs(report.MaxGain-1) > 1e-9 || report.MinGain > 0.51 {
		t.Errorf("gain range %g..%g, want 0.5..1", report.MinGain, report.MaxGain)
	}
}

func TestNewRendererErrors(t *testing.T) {
	clock, _ := automation.NewSampleClock(testSampleRate)
	otherClock, _ := automation.NewSampleClock(48000)
	timeline := automation.NewTimeline(1)
	src := newConstSource(10, 1, 1)
	cues, _ := config.ParseCues([]string{"in@1"})

	tests := []struct {
		name     string
		src      Source
		channels int
		clock    *automation.SampleClock
		gain     GainProvider
		fader    Fader
	}{
		{"Nil source", nil, 1, clock, timeline, nil},
		{"Nil clock", src, 1, nil, timeline, nil},
		{"Nil gain", src, 1, clock, nil, nil},
		{"Too many channels", src, 6, clock, timeline, nil},
		{"Rate mismatch", src, 1, otherClock, timeline, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRenderer(tt.src, tt.channels, tt.clock, tt.gain, tt.fader, nil); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := NewRenderer(src, 1, clock, timeline, nil, cues); err == nil {
		t.Error("expected error for cues without a fader")
	}
}

func TestRenderWAV(t *testing.T) {
	rig := newTestRig(t, newConstSource(5000, 2, 0.5), 2, fade.Linear, "out@0.5:0")
	path := filepath.Join(t.TempDir(), "render.wav")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	frames, err := Render(f, rig.renderer, RenderOptions{Duration: 2, BitDepth: 16, FramesPerBuffer: testFrameSize})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	f.Close()
	if frames != 2000 {
		t.Errorf("Render wrote %d frames, want 2000", frames)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	if src.SampleRate() != testSampleRate || src.Channels() != 2 {
		t.Fatalf("format = %d Hz %d ch", src.SampleRate(), src.Channels())
	}
	samples := readAll(t, src)
	if len(samples) != 4000 {
		t.Fatalf("read %d samples, want 4000", len(samples))
	}
	for _, tt := range []struct {
		frame int
		want  float64
	}{{0, 0.5}, {1000, 0.25}, {1600, 0}} {
		if got := float64(samples[tt.frame*2]); math.Abs(got-tt.want) > 1e-3 {
			t.Errorf("frame %d = %g, want %g", tt.frame, got, tt.want)
		}
	}
}

func TestRenderStopsAtSourceEnd(t *testing.T) {
	rig := newTestRig(t, newConstSource(300, 1, 0.5), 1, fade.Linear)
	f, err := os.Create(filepath.Join(t.TempDir(), "short.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	frames, err := Render(f, rig.renderer, RenderOptions{Duration: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if frames != 300 {
		t.Errorf("Render wrote %d frames, want 300", frames)
	}

	if _, err := Render(f, rig.renderer, RenderOptions{}); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestRemix(t *testing.T) {
	stereo := make([]float32, 4)
	remix(stereo, 2, []float32{0.1, 0.2}, 1)
	if stereo[0] != 0.1 || stereo[1] != 0.1 || stereo[2] != 0.2 || stereo[3] != 0.2 {
		t.Errorf("mono to stereo = %v", stereo)
	}

	mono := make([]float32, 2)
	remix(mono, 1, []float32{0.2, 0.4, -1, 1}, 2)
	if math.Abs(float64(mono[0])-0.3) > 1e-6 || mono[1] != 0 {
		t.Errorf("stereo to mono = %v", mono)
	}
}

func BenchmarkRendererProcess(b *testing.B) {
	tone, _ := NewToneSource(100, 0.5, testSampleRate, 2)
	rig := newTestRig(b, tone, 2, fade.Exponential)
	out := make([]float32, testFrameSize*2)

	b.ReportAllocs()
	for b.Loop() {
		_, _ = rig.renderer.Process(out)
	}
}
