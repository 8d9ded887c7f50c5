// SPDX-License-Identifier: MIT
package analysis

// Processor observes rendered audio together with the gain applied to it.
// Implementations are called from the render path, once per block, and
// should avoid allocating.
type Processor interface {
	// Observe receives one block of interleaved output samples and the
	// per-frame gain that produced it. len(gains) is the frame count.
	Observe(samples []float32, channels int, gains []float64)
}

// Compile-time checks for interface implementations.
var _ Processor = (*Meter)(nil)
var _ Processor = (*Spectrum)(nil)

// mixDown averages interleaved samples into dst, one value per frame.
func mixDown(dst []float64, samples []float32, channels int) []float64 {
	frames := len(samples) / channels
	dst = dst[:frames]
	scale := 1 / float64(channels)
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(samples[i*channels+ch])
		}
		dst[i] = sum * scale
	}
	return dst
}
