// SPDX-License-Identifier: MIT

// Package tone generates synthetic 16-bit signals for tests and locates the
// peak of a histogram or spectrum. PeakIndex runs once per analysis tick.
package tone

import (
	"math"
)

// Number is any value a peak search can compare.
type Number interface {
	~int16 | ~int32 | ~int | ~float64
}

// Sine returns n samples of a sine at freq Hz. amplitude is a fraction of
// full scale (0..1).
func Sine(n int, sampleRate, freq, amplitude float64) []int16 {
	buffer := make([]int16, n)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*freq*t) * math.MaxInt16 * amplitude)
	}
	return buffer
}

// SineAt is Sine with a starting sample offset, so consecutive chunks join
// without a phase jump.
func SineAt(offset, n int, sampleRate, freq, amplitude float64) []int16 {
	buffer := make([]int16, n)
	for i := range buffer {
		t := float64(offset+i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*freq*t) * math.MaxInt16 * amplitude)
	}
	return buffer
}

// Chord sums equal-weight sines. The total peak never exceeds amplitude.
func Chord(n int, sampleRate, amplitude float64, freqs ...float64) []int16 {
	buffer := make([]int16, n)
	if len(freqs) == 0 {
		return buffer
	}
	partial := amplitude / float64(len(freqs))
	for i := range buffer {
		t := float64(i) / sampleRate
		var signal float64
		for _, f := range freqs {
			signal += math.Sin(2*math.Pi*f*t) * partial
		}
		buffer[i] = int16(signal * math.MaxInt16)
	}
	return buffer
}

// PeakIndex returns the index of the largest value, preferring the first on
// ties. It returns 0 for an empty slice.
func PeakIndex[T Number](values []T) int {
	return PeakIndexIn(values, 0, len(values)-1)
}

// PeakIndexIn searches values[start..end] inclusive, clamping both bounds.
func PeakIndexIn[T Number](values []T, start, end int) int {
	if len(values) == 0 {
		return 0
	}
	if start < 0 {
		start = 0
	}
	if end >= len(values) {
		end = len(values) - 1
	}
	if start > end {
		return start
	}

	peak := start
	for i := start + 1; i <= end; i++ {
		if values[i] > values[peak] {
			peak = i
		}
	}
	return peak
}
