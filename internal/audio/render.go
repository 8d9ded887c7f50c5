// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	"smoothfade/internal/analysis"
	"smoothfade/internal/automation"
	"smoothfade/internal/config"
	"smoothfade/internal/fade"
	applog "smoothfade/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// GainProvider evaluates per-frame gain, dst[i] at t0 + i*dt.
type GainProvider interface {
	Fill(dst []float64, t0, dt float64)
}

// Fader receives scripted fade requests.
type Fader interface {
	FadeTo(dir fade.Direction, opts ...fade.Option) error
}

// pruner is implemented by gain providers that can drop past automation.
type pruner interface {
	Prune(t float64)
}

// Renderer pulls frames from a Source, applies the automated gain and
// advances the sample clock. Cues fire on the exact frame they are due, so a
// block is split at every cue boundary.
//
// A Renderer is driven by one goroutine at a time (the audio callback or
// Render); fades may be requested concurrently from elsewhere.
type Renderer struct {
	source     Source
	channels   int
	clock      *automation.SampleClock
	gain       GainProvider
	fader      Fader
	cues       []config.Cue
	next       int
	processors []analysis.Processor

	srcBuf  []float32
	gainBuf []float64
}

// NewRenderer creates a renderer producing channels-wide frames from src.
// cues must be sorted by time; fader may be nil when cues is empty.
func NewRenderer(src Source, channels int, clock *automation.SampleClock, gain GainProvider,
	fader Fader, cues []config.Cue, processors ...analysis.Processor) (*Renderer, error) {
	if src == nil || clock == nil || gain == nil {
		return nil, errors.New("renderer: source, clock and gain are required")
	}
	if channels < 1 || channels > config.MaxChannels {
		return nil, fmt.Errorf("renderer: unsupported output channel count %d", channels)
	}
	if float64(src.SampleRate()) != clock.SampleRate() {
		return nil, fmt.Errorf("renderer: source rate %d Hz does not match clock rate %g Hz",
			src.SampleRate(), clock.SampleRate())
	}
	if len(cues) > 0 && fader == nil {
		return nil, errors.New("renderer: cues require a fader")
	}

	return &Renderer{
		source:     src,
		channels:   channels,
		clock:      clock,
		gain:       gain,
		fader:      fader,
		cues:       cues,
		processors: processors,
	}, nil
}

// Channels returns the output channel count.
func (r *Renderer) Channels() int { return r.channels }

// SampleRate returns the output sample rate in Hz.
func (r *Renderer) SampleRate() int { return r.source.SampleRate() }

// Process fills out with whole frames and returns the number of frames
// rendered. When the source ends the rest of out is zeroed and io.EOF is
// returned.
func (r *Renderer) Process(out []float32) (int, error) {
	frames := len(out) / r.channels
	done := 0
	for done < frames {
		r.fireDueCues()

		n := frames - done
		if due, ok := r.nextCueFrame(); ok {
			n = min(n, int(due-r.clock.Frames()))
		}

		got, err := r.renderSegment(out[done*r.channels : (done+n)*r.channels])
		done += got
		if err != nil {
			clear(out[done*r.channels:])
			return done, err
		}
	}
	return done, nil
}

// renderSegment renders len(seg)/channels frames with no cue inside.
func (r *Renderer) renderSegment(seg []float32) (int, error) {
	frames := len(seg) / r.channels
	srcChannels := r.source.Channels()
	want := frames * srcChannels
	if cap(r.srcBuf) < want {
		r.srcBuf = make([]float32, want)
	}
	if cap(r.gainBuf) < frames {
		r.gainBuf = make([]float64, frames)
	}
	src := r.srcBuf[:want]

	// Sources may return short reads.
	read := 0
	var err error
	for read < want {
		var n int
		n, err = r.source.ReadSamples(src[read:])
		read += n
		if err != nil || n == 0 {
			break
		}
	}
	got := read / srcChannels
	if got < frames && err == nil {
		err = io.EOF
	}

	remix(seg[:got*r.channels], r.channels, src[:got*srcChannels], srcChannels)

	gains := r.gainBuf[:got]
	r.gain.Fill(gains, r.clock.Now(), r.clock.Period())
	for i, g := range gains {
		for ch := range r.channels {
			seg[i*r.channels+ch] *= float32(g)
		}
	}

	for _, p := range r.processors {
		p.Observe(seg[:got*r.channels], r.channels, gains)
	}
	r.clock.Advance(got)

	return got, err
}

func (r *Renderer) cueFrame(c config.Cue) uint64 {
	return uint64(math.Ceil(c.At * r.clock.SampleRate()))
}

func (r *Renderer) nextCueFrame() (uint64, bool) {
	if r.next >= len(r.cues) {
		return 0, false
	}
	return r.cueFrame(r.cues[r.next]), true
}

func (r *Renderer) fireDueCues() {
	now := r.clock.Frames()
	for r.next < len(r.cues) && r.cueFrame(r.cues[r.next]) <= now {
		cue := r.cues[r.next]
		r.next++
		if err := r.fader.FadeTo(cue.FadeDirection(), cue.Options()...); err != nil {
			applog.Warnf("Renderer: cue %s rejected: %v", cue, err)
			continue
		}
		applog.Debugf("Renderer: cue %s fired at %.4fs", cue, r.clock.Now())
	}
}

// Prune drops automation that ended before the clock's current time.
func (r *Renderer) Prune() {
	if p, ok := r.gain.(pruner); ok {
		p.Prune(r.clock.Now())
	}
}

// remix copies src into dst converting between mono and multichannel.
func remix(dst []float32, dstChannels int, src []float32, srcChannels int) {
	switch {
	case srcChannels == dstChannels:
		copy(dst, src)
	case srcChannels == 1:
		for i, v := range src {
			for ch := range dstChannels {
				dst[i*dstChannels+ch] = v
			}
		}
	default:
		frames := len(src) / srcChannels
		scale := 1 / float32(srcChannels)
		for i := range frames {
			var sum float32
			for ch := range srcChannels {
				sum += src[i*srcChannels+ch]
			}
			v := sum * scale
			for ch := range dstChannels {
				dst[i*dstChannels+ch] = v
			}
		}
	}
}

// RenderOptions controls an offline render.
type RenderOptions struct {
	Duration        float64 // Seconds; the render stops earlier if the source ends.
	BitDepth        int     // 16, 24 or 32.
	FramesPerBuffer int
}

// Render runs r for opts.Duration seconds and writes the result to w as a
// PCM WAV file. It returns the number of frames written.
func Render(w io.WriteSeeker, r *Renderer, opts RenderOptions) (int, error) {
	if opts.Duration <= 0 {
		return 0, fmt.Errorf("render: duration must be positive, got %g", opts.Duration)
	}
	if opts.FramesPerBuffer <= 0 {
		opts.FramesPerBuffer = config.DefaultFramesPerBuffer
	}
	if opts.BitDepth == 0 {
		opts.BitDepth = config.DefaultBitDepth
	}

	enc := wav.NewEncoder(w, r.SampleRate(), opts.BitDepth, r.Channels(), 1)
	out := make([]float32, opts.FramesPerBuffer*r.Channels())
	buf := newIntBuffer(r.SampleRate(), r.Channels(), opts.BitDepth, len(out))

	total := int(math.Round(opts.Duration * float64(r.SampleRate())))
	written := 0
	for written < total {
		frames := min(opts.FramesPerBuffer, total-written)
		n, err := r.Process(out[:frames*r.Channels()])
		if n > 0 {
			toIntBuffer(buf, out[:n*r.Channels()], opts.BitDepth)
			if werr := enc.Write(buf); werr != nil {
				return written, fmt.Errorf("render: write: %w", werr)
			}
			written += n
		}
		if errors.Is(err, io.EOF) {
			applog.Infof("Renderer: source ended after %.3fs", float64(written)/float64(r.SampleRate()))
			break
		}
		if err != nil {
			return written, fmt.Errorf("render: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return written, fmt.Errorf("render: finalise: %w", err)
	}
	return written, nil
}

func newIntBuffer(sampleRate, channels, bitDepth, size int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, size),
		SourceBitDepth: bitDepth,
	}
}

// toIntBuffer converts float samples to bitDepth PCM, clipping at full scale.
func toIntBuffer(buf *audio.IntBuffer, samples []float32, bitDepth int) {
	full := float64(int64(1)<<(bitDepth-1) - 1)
	buf.Data = buf.Data[:len(samples)]
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		buf.Data[i] = int(math.Round(v * full))
	}
}
