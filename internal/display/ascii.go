// SPDX-License-Identifier: MIT
package display

import (
	"fmt"
	"io"
	"strings"

	"tuner/internal/pitch"
)

const (
	DefaultRows        = 30
	DefaultSensitivity = 200
)

// ASCII draws a window as an axis line of note names followed by Rows bar
// rows, top row first. Row r marks a bin with '#' when its energy exceeds
// r*Sensitivity.
type ASCII struct {
	Rows        int
	Sensitivity pitch.Energy
	axis        []byte
}

// NewASCII builds the note axis for a histogram of binCount bins.
func NewASCII(binCount, rows int, sensitivity pitch.Energy) *ASCII {
	axis := []byte(strings.Repeat(" ", binCount))
	for s := range 12 {
		a := int(pitch.SemitoneAnchor(s, binCount))
		copy(axis[a:], pitch.Label(a, binCount))
	}
	return &ASCII{Rows: rows, Sensitivity: sensitivity, axis: axis}
}

// Axis returns the axis characters above the window.
func (r *ASCII) Axis(w Window) string {
	if w.Len() == 0 || w.Start >= len(r.axis) {
		return ""
	}
	return string(r.axis[w.Start:min(w.End+1, len(r.axis))])
}

// Lines returns the axis followed by every bar row.
func (r *ASCII) Lines(w Window) []string {
	lines := make([]string, 0, r.Rows+1)
	lines = append(lines, r.Axis(w))

	row := make([]byte, w.Len())
	for level := r.Rows; level > 0; level-- {
		threshold := pitch.Energy(level) * r.Sensitivity
		for j, e := range w.Bins {
			if e > threshold {
				row[j] = '#'
			} else {
				row[j] = ' '
			}
		}
		lines = append(lines, string(row))
	}
	return lines
}

// Render writes Lines to out, one per line.
func (r *ASCII) Render(out io.Writer, w Window) error {
	for _, line := range r.Lines(w) {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write histogram: %w", err)
		}
	}
	return nil
}
