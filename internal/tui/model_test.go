// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	"tuner/internal/display"
	"tuner/internal/pitch"
	"tuner/internal/tuner"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTuner struct {
	anchor   pitch.Anchor
	running  bool
	starts   int
	stops    int
	frame    tuner.Frame
	hasFrame bool
	startErr error
	err      error
}

func (f *fakeTuner) SetAnchor(a pitch.Anchor) { f.anchor = a }

func (f *fakeTuner) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.running = true
	return nil
}

func (f *fakeTuner) Stop() {
	f.stops++
	f.running = false
}

func (f *fakeTuner) Latest() (tuner.Frame, bool) { return f.frame, f.hasFrame }
func (f *fakeTuner) Err() error                  { return f.err }

func newTestModel(ft *fakeTuner) Model {
	return NewModel(ft, pitch.DefaultBinCount, display.NewASCII(pitch.DefaultBinCount, 4, 1))
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, c := m.Update(msg)
		m, cmd = next.(Model), c
	}
	return m, cmd
}

func TestModel_SelectStartsTuning(t *testing.T) {
	ft := &fakeTuner{}
	m := newTestModel(ft)

	m, cmd := press(t, m, "down", "enter") // A string
	assert.Equal(t, TuningPage, m.Page())
	assert.Equal(t, pitch.Anchor(0), ft.anchor)
	assert.Equal(t, 1, ft.starts)
	assert.NotNil(t, cmd, "tuning page should schedule a refresh")
}

func TestModel_DirectNoteKeys(t *testing.T) {
	tests := []struct {
		key  string
		want pitch.Anchor
	}{
		{"E", 200},
		{"A", 0},
		{"D", 143},
		{"G", 286},
		{"B", 57},
		{"e", 200},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			ft := &fakeTuner{anchor: -1}
			m, _ := press(t, newTestModel(ft), tt.key)
			assert.Equal(t, TuningPage, m.Page())
			assert.Equal(t, tt.want, ft.anchor)
		})
	}
}

func TestModel_BackStopsTuning(t *testing.T) {
	ft := &fakeTuner{}
	m, _ := press(t, newTestModel(ft), "G")
	require.True(t, ft.running)

	m, _ = press(t, m, "esc")
	assert.Equal(t, NotePage, m.Page())
	assert.False(t, ft.running)
	assert.Equal(t, 1, ft.stops)

	// Back on the note page does nothing.
	m, _ = press(t, m, "esc")
	assert.Equal(t, 1, ft.stops)

	// Re-entering restarts the tick.
	_, _ = press(t, m, "enter")
	assert.Equal(t, 2, ft.starts)
}

func TestModel_NoteKeysIgnoredWhileTuning(t *testing.T) {
	ft := &fakeTuner{}
	m, _ := press(t, newTestModel(ft), "A")
	m, _ = press(t, m, "D", "down", "enter")
	assert.Equal(t, TuningPage, m.Page())
	assert.Equal(t, pitch.Anchor(0), ft.anchor)
	assert.Equal(t, 1, ft.starts)
}

func TestModel_QuitStopsTuner(t *testing.T) {
	ft := &fakeTuner{}
	m, _ := press(t, newTestModel(ft), "B")
	_, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, ft.running)
}

func TestModel_StartErrorStaysOnNotePage(t *testing.T) {
	ft := &fakeTuner{startErr: errors.New("no device")}
	m, _ := press(t, newTestModel(ft), "enter")
	assert.Equal(t, NotePage, m.Page())
	assert.Contains(t, m.View(), "no device")
}

func TestModel_FrameRendersWindow(t *testing.T) {
	bins := make(pitch.Histogram, 17)
	bins[1] = 3
	ft := &fakeTuner{
		frame:    tuner.Frame{Seq: 1, Anchor: 0, Start: 0, End: 16, Bins: bins, Peak: 1, Energy: 3},
		hasFrame: true,
	}
	m, _ := press(t, newTestModel(ft), "A")
	assert.Contains(t, m.View(), "Listening")

	next, cmd := m.Update(frameMsg{})
	m = next.(Model)
	assert.NotNil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Tuning A2")
	assert.Contains(t, view, "#")
	assert.Contains(t, view, "▲")
}

func TestModel_IgnoresFrameForOtherNote(t *testing.T) {
	bins := make(pitch.Histogram, 17)
	bins[1] = 3
	ft := &fakeTuner{
		frame:    tuner.Frame{Seq: 4, Anchor: 0, Start: 0, End: 16, Bins: bins, Peak: 1, Energy: 3},
		hasFrame: true,
	}

	// The tuner still holds an A frame while D is being tuned.
	m, _ := press(t, newTestModel(ft), "D")
	next, _ := m.Update(frameMsg{})
	m = next.(Model)
	assert.Contains(t, m.View(), "Listening")
	assert.NotContains(t, m.View(), "#")

	ft.frame.Anchor = 143
	next, _ = m.Update(frameMsg{})
	assert.Contains(t, next.(Model).View(), "#")
}

func TestModel_TunerErrorLeavesTuning(t *testing.T) {
	ft := &fakeTuner{}
	m, _ := press(t, newTestModel(ft), "E")

	ft.err = errors.New("length mismatch")
	next, cmd := m.Update(frameMsg{})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, NotePage, m.Page())
	assert.Equal(t, 1, ft.stops)
	assert.Contains(t, m.View(), "length mismatch")
}

func TestModel_FrameIgnoredOnNotePage(t *testing.T) {
	m := newTestModel(&fakeTuner{})
	next, cmd := m.Update(frameMsg{})
	assert.Nil(t, cmd)
	assert.Equal(t, NotePage, next.(Model).Page())
}

func TestTarget_WrapsAndClamps(t *testing.T) {
	m := newTestModel(&fakeTuner{})
	m.hasFrame = true
	m.frame = tuner.Frame{Anchor: 0, Peak: 342, Energy: 1}
	assert.InDelta(t, -12.0/343, m.target(), 1e-9, "peak one bin below A wraps")

	m.frame = tuner.Frame{Anchor: 200, Peak: 0, Energy: 1}
	assert.Equal(t, offsetRange, m.target(), "A sits five semitones above E and is clamped")

	m.frame = tuner.Frame{Anchor: 200, Peak: 210, Energy: 1, Gated: true}
	assert.Equal(t, 0.0, m.target(), "gated frames centre the needle")
}

func TestGauge(t *testing.T) {
	tests := []struct {
		offset float64
		pos    int
	}{
		{0, gaugeWidth / 2},
		{offsetRange, gaugeWidth - 1},
		{-offsetRange, 0},
		{5, gaugeWidth - 1},
	}
	for _, tt := range tests {
		g := []rune(strings.TrimSuffix(strings.TrimPrefix(gauge(tt.offset), "♭ "), " ♯"))
		require.Len(t, g, gaugeWidth)
		assert.Equal(t, '▲', g[tt.pos], "offset %v", tt.offset)
	}
}
