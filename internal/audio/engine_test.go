package audio

import (
	"testing"

	"smoothfade/internal/config"
	"smoothfade/internal/fade"
)

// newTestEngine builds an Engine around a renderer without opening a
// PortAudio stream; tests drive processOutputStream directly.
func newTestEngine(t testing.TB, src Source) (*Engine, *testRig) {
	t.Helper()
	cfg := config.Default()
	cfg.Audio.FramesPerBuffer = testFrameSize

	rig := newTestRig(t, src, 2, fade.Linear)
	return &Engine{
		config:       cfg,
		renderer:     rig.renderer,
		framesPerBuf: testFrameSize,
		done:         make(chan struct{}),
	}, rig
}

func TestProcessOutputStreamSignalsDone(t *testing.T) {
	engine, _ := newTestEngine(t, newConstSource(100, 2, 0.25))
	out := make([]float32, testFrameSize*2)

	engine.processOutputStream(out)
	select {
	case <-engine.Done():
		t.Fatal("Done closed before the source ended")
	default:
	}

	engine.processOutputStream(out)
	select {
	case <-engine.Done():
	default:
		t.Fatal("Done not closed after the source ended")
	}
	// 36 frames remain in the second block.
	if out[35*2] != 0.25 || out[36*2] != 0 {
		t.Errorf("second block = %g, %g, want 0.25 then silence", out[35*2], out[36*2])
	}

	// Further callbacks keep producing silence without panicking on close.
	engine.processOutputStream(out)
}

func TestProcessOutputStreamPrunes(t *testing.T) {
	tone, _ := NewToneSource(100, 0.5, testSampleRate, 2)
	engine, rig := newTestEngine(t, tone)
	out := make([]float32, testFrameSize*2)

	for i := range 4 {
		dir := fade.Out
		if i%2 == 1 {
			dir = fade.In
		}
		if err := rig.fader.FadeTo(dir, fade.Target(0.5), fade.EndAt(rig.clock.Now()+0.01)); err != nil {
			t.Fatalf("FadeTo: %v", err)
		}
		for range 2 {
			engine.processOutputStream(out)
		}
	}

	if n := rig.timeline.Len(); n > 2 {
		t.Errorf("timeline holds %d events after pruning, want at most 2", n)
	}
}

func TestProcessOutputStreamZeroAllocs(t *testing.T) {
	tone, _ := NewToneSource(100, 0.5, testSampleRate, 2)
	engine, _ := newTestEngine(t, tone)
	out := make([]float32, testFrameSize*2)
	engine.processOutputStream(out)

	allocs := testing.AllocsPerRun(100, func() {
		engine.processOutputStream(out)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in output callback, got %.1f", allocs)
	}
}

func BenchmarkProcessOutputStream(b *testing.B) {
	tone, _ := NewToneSource(100, 0.5, testSampleRate, 2)
	engine, _ := newTestEngine(b, tone)
	out := make([]float32, testFrameSize*2)

	b.ReportAllocs()
	for b.Loop() {
		engine.processOutputStream(out)
	}
}
