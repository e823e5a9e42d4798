// SPDX-License-Identifier: MIT

// Package tui is the interactive tuner: a note page listing the six guitar
// strings and a tuning page showing the live histogram window around the
// chosen note.
package tui

import (
	"fmt"
	"strings"
	"time"

	"tuner/internal/display"
	"tuner/internal/log"
	"tuner/internal/pitch"
	"tuner/internal/tuner"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
)

const (
	fps         = 30
	gaugeWidth  = 41
	springFreq  = 6.0
	springDamp  = 0.6
	offsetRange = 1.0 // semitones shown either side of the note
)

// Tuner is the part of *tuner.Tuner the interface drives.
type Tuner interface {
	SetAnchor(a pitch.Anchor)
	Start() error
	Stop()
	Latest() (tuner.Frame, bool)
	Err() error
}

var _ Tuner = (*tuner.Tuner)(nil)

// Page identifies the active screen.
type Page int

const (
	NotePage Page = iota
	TuningPage
)

type frameMsg time.Time

// Model is the bubbletea model for the tuner.
type Model struct {
	tuner    Tuner
	strings  []pitch.String
	binCount int
	cursor   int
	page     Page

	renderer *display.ASCII
	frame    tuner.Frame
	hasFrame bool

	spring    harmonica.Spring
	needle    float64 // semitones from the note
	needleVel float64

	keys keyMap
	help help.Model
	err  error
}

// NewModel builds the note page. renderer draws the histogram window.
func NewModel(t Tuner, binCount int, renderer *display.ASCII) Model {
	return Model{
		tuner:    t,
		strings:  pitch.GuitarStrings(binCount),
		binCount: binCount,
		renderer: renderer,
		spring:   harmonica.NewSpring(harmonica.FPS(fps), springFreq, springDamp),
		keys:     keys,
		help:     help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case frameMsg:
		if m.page != TuningPage {
			return m, nil
		}
		if err := m.tuner.Err(); err != nil {
			m.err = err
			return m.leaveTuning(), nil
		}
		// A frame for another note predates the current session.
		if f, ok := m.tuner.Latest(); ok && f.Anchor == m.strings[m.cursor].Anchor {
			m.frame, m.hasFrame = f, true
		}
		m.needle, m.needleVel = m.spring.Update(m.needle, m.needleVel, m.target())
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.page == TuningPage {
				m = m.leaveTuning()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Back):
			return m.leaveTuning(), nil

		case m.page != NotePage:
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.strings)-1 {
				m.cursor++
			}

		case key.Matches(msg, m.keys.Select):
			return m.enterTuning()

		default:
			// Direct selection by string name.
			for i, s := range m.strings {
				if msg.String() == s.Key {
					m.cursor = i
					return m.enterTuning()
				}
			}
		}
	}
	return m, nil
}

func (m Model) enterTuning() (tea.Model, tea.Cmd) {
	s := m.strings[m.cursor]
	m.tuner.SetAnchor(s.Anchor)
	if err := m.tuner.Start(); err != nil {
		m.err = err
		return m, nil
	}
	log.Infof("tui: tuning %s (bin %d)", s.Note, s.Anchor)

	m.page = TuningPage
	m.err = nil
	m.hasFrame = false
	m.needle, m.needleVel = 0, 0
	m.keys.Back.SetEnabled(true)
	m.keys.Select.SetEnabled(false)
	return m, tick()
}

func (m Model) leaveTuning() Model {
	if m.page != TuningPage {
		return m
	}
	m.tuner.Stop()
	m.page = NotePage
	m.keys.Back.SetEnabled(false)
	m.keys.Select.SetEnabled(true)
	return m
}

// target is the peak's signed distance from the note in semitones, wrapped
// into half an octave and clamped to the gauge range.
func (m Model) target() float64 {
	if !m.hasFrame || m.frame.Gated || m.frame.Energy == 0 {
		return 0
	}
	d := (m.frame.Peak - int(m.frame.Anchor)) % m.binCount
	if d > m.binCount/2 {
		d -= m.binCount
	} else if d < -m.binCount/2 {
		d += m.binCount
	}
	semis := float64(d) * 12 / float64(m.binCount)
	return max(-offsetRange, min(offsetRange, semis))
}

// Page reports the active screen.
func (m Model) Page() Page {
	return m.page
}

func (m Model) View() string {
	var b strings.Builder
	if m.page == TuningPage {
		s := m.strings[m.cursor]
		b.WriteString(titleStyle.Render("Tuning " + s.Note))
		b.WriteString("\n\n")
		b.WriteString(m.viewTuning())
	} else {
		b.WriteString(titleStyle.Render("Select a string"))
		b.WriteString("\n\n")
		b.WriteString(m.viewNotes())
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) viewNotes() string {
	var b strings.Builder
	for i, s := range m.strings {
		line := fmt.Sprintf("  %s  %-3s bin %d", s.Key, s.Note, s.Anchor)
		if i == m.cursor {
			line = highlightStyle.Render("▶" + line[1:])
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewTuning() string {
	if !m.hasFrame {
		return infoStyle.Render("Listening...") + "\n"
	}

	var b strings.Builder
	w := display.Window{Start: m.frame.Start, End: m.frame.End, Bins: m.frame.Bins}
	for i, line := range m.renderer.Lines(w) {
		if i == 0 {
			b.WriteString(axisStyle.Render(line))
		} else {
			b.WriteString(barStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(gauge(m.needle))
	b.WriteString("\n")
	if m.frame.Gated {
		b.WriteString(infoStyle.Render("(below gate threshold)"))
		b.WriteString("\n")
	}
	return b.String()
}

// gauge draws a needle at offset semitones on a centred scale.
func gauge(offset float64) string {
	scale := []rune(strings.Repeat("─", gaugeWidth))
	centre := gaugeWidth / 2
	scale[centre] = '┼'

	pos := centre + int(offset/offsetRange*float64(centre)+0.5*sign(offset))
	pos = max(0, min(gaugeWidth-1, pos))
	scale[pos] = '▲'

	return fmt.Sprintf("♭ %s ♯", string(scale))
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// Run starts the interactive program and blocks until the user quits.
func Run(t Tuner, binCount int, renderer *display.ASCII) error {
	p := tea.NewProgram(NewModel(t, binCount, renderer), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
