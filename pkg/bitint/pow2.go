/*
Package bitint provides the power-of-two helpers used to size audio
buffers. PortAudio callbacks and the render loop work in blocks whose
frame count is a power of two, so configuration is checked and rounded
here.

Usage:

	// Reject a buffer size the output stream would not accept
	ok := bitint.IsPowerOfTwo(framesPerBuffer)

	// Suggest the closest valid size
	frames := bitint.NextPowerOfTwo(1000) // Returns 1024
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
// size-1 keeps exact powers of two unchanged: for 8, bits.Len(7) is 3 and
// 1<<3 is 8, whereas bits.Len(8) would give 16.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has a single bit set, so clearing its lowest set bit leaves zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
