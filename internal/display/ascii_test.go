// SPDX-License-Identifier: MIT
package display

import (
	"bytes"
	"strings"
	"testing"

	"tuner/internal/pitch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestASCII_Axis(t *testing.T) {
	r := NewASCII(pitch.DefaultBinCount, DefaultRows, DefaultSensitivity)
	hist := make(pitch.Histogram, pitch.DefaultBinCount)

	axis := r.Axis(SelectWindow(hist, 0))
	assert.Len(t, axis, 17)
	assert.True(t, strings.HasPrefix(axis, "A "), "axis %q", axis)

	// E sits at the centre offset of its own window.
	e, err := pitch.ParseNote("E", pitch.DefaultBinCount)
	require.NoError(t, err)
	axis = r.Axis(SelectWindow(hist, e))
	assert.Equal(t, byte('E'), axis[DefaultBelow])
	assert.Len(t, axis, DefaultBelow+DefaultAbove+1)
}

func TestASCII_Lines(t *testing.T) {
	r := NewASCII(pitch.DefaultBinCount, DefaultRows, DefaultSensitivity)
	hist := make(pitch.Histogram, pitch.DefaultBinCount)
	hist[171] = 200*10 + 1 // clears rows 1..10
	hist[172] = 200 * 10   // equal to row 10's threshold, clears 1..9

	lines := r.Lines(SelectWindow(hist, 171))
	require.Len(t, lines, DefaultRows+1)

	for i, line := range lines[1:] {
		level := DefaultRows - i
		assert.Len(t, line, 32)
		assert.Equal(t, level <= 10, line[15] == '#', "row %d col 15", level)
		assert.Equal(t, level <= 9, line[16] == '#', "row %d col 16", level)
		assert.Equal(t, byte(' '), line[0])
	}
}

func TestASCII_Render(t *testing.T) {
	r := NewASCII(pitch.DefaultBinCount, 4, 1)
	hist := make(pitch.Histogram, pitch.DefaultBinCount)
	hist[1] = 3

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, Selector{Below: 1, Above: 1}.Select(hist, 1)))

	want := "A  \n" +
		"   \n" +
		"   \n" +
		" # \n" +
		" # \n"
	assert.Equal(t, want, buf.String())
}
