// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidFile       = errors.New("invalid audio file")
)

// Source produces interleaved float32 samples in [-1, 1].
type Source interface {
	// SampleRate of the stream in Hz.
	SampleRate() int
	// Channels is the number of interleaved channels.
	Channels() int
	// ReadSamples fills dst with whole frames and returns the number of
	// values written. It returns io.EOF once the stream is exhausted.
	ReadSamples(dst []float32) (int, error)
	// Close releases the underlying file, if any.
	Close() error
}

// ToneSource is an endless sine wave, identical on every channel.
type ToneSource struct {
	sampleRate int
	channels   int
	level      float64
	phase      float64
	step       float64
}

// NewToneSource creates a sine of freq Hz at the given peak level.
func NewToneSource(freq, level float64, sampleRate, channels int) (*ToneSource, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("tone: invalid format %d Hz, %d channels", sampleRate, channels)
	}
	if freq <= 0 || freq >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("tone: frequency %g Hz outside (0, %d)", freq, sampleRate/2)
	}
	return &ToneSource{
		sampleRate: sampleRate,
		channels:   channels,
		level:      level,
		step:       2 * math.Pi * freq / float64(sampleRate),
	}, nil
}

func (s *ToneSource) SampleRate() int { return s.sampleRate }
func (s *ToneSource) Channels() int   { return s.channels }
func (s *ToneSource) Close() error    { return nil }

func (s *ToneSource) ReadSamples(dst []float32) (int, error) {
	frames := len(dst) / s.channels
	for i := range frames {
		v := float32(s.level * math.Sin(s.phase))
		for ch := range s.channels {
			dst[i*s.channels+ch] = v
		}
		s.phase += s.step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	return frames * s.channels, nil
}

// OpenSource opens a decoded file source, choosing the decoder by extension:
// .wav, .aif/.aiff, .mp3 or .ogg.
func OpenSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var src Source
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		src, err = newWAVSource(f)
	case ".aif", ".aiff":
		src, err = newAIFFSource(f)
	case ".mp3":
		src, err = newMP3Source(f)
	case ".ogg", ".oga":
		src, err = newOggSource(f)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return src, nil
}

// pcmDecoder is the part of the go-audio wav and aiff decoders used here.
type pcmDecoder interface {
	Format() *audio.Format
	PCMBuffer(buf *audio.IntBuffer) (int, error)
}

// pcmSource adapts an integer PCM decoder.
type pcmSource struct {
	file   io.Closer
	dec    pcmDecoder
	format *audio.Format
	scale  float32
	intBuf *audio.IntBuffer
}

func newPCMSource(file io.Closer, dec pcmDecoder, bitDepth int) (*pcmSource, error) {
	format := dec.Format()
	if format == nil || format.NumChannels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing format", ErrInvalidFile)
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, bitDepth)
	}
	return &pcmSource{
		file:   file,
		dec:    dec,
		format: format,
		scale:  1 / float32(int64(1)<<(bitDepth-1)),
		intBuf: &audio.IntBuffer{Format: format, SourceBitDepth: bitDepth},
	}, nil
}

func newWAVSource(f *os.File) (Source, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, err
	}
	return newPCMSource(f, dec, int(dec.BitDepth))
}

func newAIFFSource(f *os.File) (Source, error) {
	dec := aiff.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile
	}
	dec.ReadInfo()
	return newPCMSource(f, dec, int(dec.BitDepth))
}

func (s *pcmSource) SampleRate() int { return s.format.SampleRate }
func (s *pcmSource) Channels() int   { return s.format.NumChannels }
func (s *pcmSource) Close() error    { return s.file.Close() }

func (s *pcmSource) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.format.NumChannels
	if want == 0 {
		return 0, nil
	}
	if cap(s.intBuf.Data) < want {
		s.intBuf.Data = make([]int, want)
	}
	s.intBuf.Data = s.intBuf.Data[:want]

	n, err := s.dec.PCMBuffer(s.intBuf)
	for i := range n {
		dst[i] = float32(s.intBuf.Data[i]) * s.scale
	}
	if n == 0 && err == nil {
		err = io.EOF
	}
	return n, err
}

// mp3Source decodes with go-mp3, which always yields 16-bit stereo.
type mp3Source struct {
	file       io.Closer
	dec        io.Reader
	sampleRate int
	buf        []byte
}

func newMP3Source(f *os.File) (Source, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	return &mp3Source{file: f, dec: dec, sampleRate: dec.SampleRate()}, nil
}

func (s *mp3Source) SampleRate() int { return s.sampleRate }
func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) Close() error    { return s.file.Close() }

func (s *mp3Source) ReadSamples(dst []float32) (int, error) {
	// Whole frames of 2 channels x 2 bytes.
	bytesNeeded := (len(dst) / 2) * 4
	if bytesNeeded == 0 {
		return 0, nil
	}
	if cap(s.buf) < bytesNeeded {
		s.buf = make([]byte, bytesNeeded)
	}
	s.buf = s.buf[:bytesNeeded]

	n, err := io.ReadFull(s.dec, s.buf)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	samples := (n / 4) * 2
	for i := range samples {
		v := int16(uint16(s.buf[2*i]) | uint16(s.buf[2*i+1])<<8)
		dst[i] = float32(v) / 32768.0
	}
	if samples == 0 && err == nil {
		err = io.EOF
	}
	return samples, err
}

// oggSource decodes Ogg Vorbis, which is float32 already.
type oggSource struct {
	file io.Closer
	dec  *oggvorbis.Reader
}

func newOggSource(f *os.File) (Source, error) {
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, err
	}
	return &oggSource{file: f, dec: dec}, nil
}

func (s *oggSource) SampleRate() int { return s.dec.SampleRate() }
func (s *oggSource) Channels() int   { return s.dec.Channels() }
func (s *oggSource) Close() error    { return s.file.Close() }

func (s *oggSource) ReadSamples(dst []float32) (int, error) {
	// Read returns a count of values, always a multiple of Channels.
	want := len(dst) - len(dst)%s.dec.Channels()
	if want == 0 {
		return 0, nil
	}
	return s.dec.Read(dst[:want])
}
