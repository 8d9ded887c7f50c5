package audio

import (
	"io"
	"testing"

	"smoothfade/internal/automation"
	"smoothfade/internal/config"
	"smoothfade/internal/fade"
)

const (
	testSampleRate = 1000
	testFrameSize  = 64
)

// sliceSource plays back a fixed buffer of interleaved samples.
type sliceSource struct {
	rate     int
	channels int
	data     []float32
	pos      int
	closed   bool
}

func newConstSource(frames, channels int, v float32) *sliceSource {
	data := make([]float32, frames*channels)
	for i := range data {
		data[i] = v
	}
	return &sliceSource{rate: testSampleRate, channels: channels, data: data}
}

func (s *sliceSource) SampleRate() int { return s.rate }
func (s *sliceSource) Channels() int   { return s.channels }
func (s *sliceSource) Close() error    { s.closed = true; return nil }

func (s *sliceSource) ReadSamples(dst []float32) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(dst[:len(dst)-len(dst)%s.channels], s.data[s.pos:])
	s.pos += n
	return n, nil
}

type testRig struct {
	clock    *automation.SampleClock
	timeline *automation.Timeline
	fader    *fade.Engine
	renderer *Renderer
}

func newTestRig(t testing.TB, src Source, channels int, curve fade.Curve, cues ...string) *testRig {
	t.Helper()

	clock, err := automation.NewSampleClock(float64(src.SampleRate()))
	if err != nil {
		t.Fatalf("NewSampleClock: %v", err)
	}
	timeline := automation.NewTimeline(1)
	fader, err := fade.New(clock, timeline, fade.Config{Curve: curve, FadeLength: 1, StartValue: 1})
	if err != nil {
		t.Fatalf("fade.New: %v", err)
	}
	parsed, err := config.ParseCues(cues)
	if err != nil {
		t.Fatalf("ParseCues: %v", err)
	}
	renderer, err := NewRenderer(src, channels, clock, timeline, fader, parsed)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return &testRig{clock: clock, timeline: timeline, fader: fader, renderer: renderer}
}

// readAll drains src.
func readAll(t *testing.T, src Source) []float32 {
	t.Helper()
	var out []float32
	buf := make([]float32, 256)
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples: %v", err)
		}
	}
}
