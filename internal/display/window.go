// SPDX-License-Identifier: MIT
/*
Package display chooses which part of a pitch histogram to surface around a
selected note and renders it as text.

A window around anchor a spans [a-Below, a+Above], inclusive, clamped to the
histogram bounds. Near either edge the window becomes asymmetric rather than
shifting.
*/
package display

import "tuner/internal/pitch"

const (
	DefaultBelow = 15
	DefaultAbove = 16
)

// Window is a view into a histogram. Bins aliases the histogram it was cut
// from and is only valid until that histogram is reused.
type Window struct {
	Start int
	End   int // inclusive
	Bins  pitch.Histogram
}

// Len returns the number of bins in the window.
func (w Window) Len() int {
	return len(w.Bins)
}

// Selector holds the half-widths on either side of the anchor.
type Selector struct {
	Below int
	Above int
}

func DefaultSelector() Selector {
	return Selector{Below: DefaultBelow, Above: DefaultAbove}
}

// SelectWindow applies the default selector.
func SelectWindow(hist pitch.Histogram, anchor pitch.Anchor) Window {
	return DefaultSelector().Select(hist, anchor)
}

// Select returns the clamped window around anchor. An anchor outside the
// histogram is first moved to the nearest valid bin. It never fails; an
// empty histogram yields an empty window.
func (s Selector) Select(hist pitch.Histogram, anchor pitch.Anchor) Window {
	last := len(hist) - 1
	if last < 0 {
		return Window{Start: 0, End: -1}
	}

	a := min(max(int(anchor), 0), last)
	start := max(a-max(s.Below, 0), 0)
	end := min(a+max(s.Above, 0), last)

	return Window{Start: start, End: end, Bins: hist[start : end+1]}
}
