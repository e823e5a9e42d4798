// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size and index
the capture ring and the transform length.

A ring whose capacity is a power of two can wrap its write cursor with a
mask instead of a modulo:

	cursor = (cursor + 1) & bitint.Mask(capacity)

Mask is only meaningful when IsPowerOfTwo(capacity) holds, which the
config layer validates at startup.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
// Non-positive sizes round up to 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// (n & (n-1)) clears the lowest set bit, leaving zero only when one bit was set.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Mask returns n-1, the index mask for a power-of-two sized buffer.
func Mask(n int) int {
	return n - 1
}

// Log2 returns the exponent of a power of two. The result is undefined for
// other inputs.
func Log2(n int) int {
	return bits.TrailingZeros(uint(n))
}
