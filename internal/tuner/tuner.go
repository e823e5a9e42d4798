// SPDX-License-Identifier: MIT
/*
Package tuner runs the periodic analysis tick:

	snapshot ring -> gate -> window + FFT -> octave fold -> display window

One Tuner owns the scratch buffers for every stage, so a tick allocates only
the frame it hands out. Start drives Tick from a ticker goroutine; Stop halts
it deterministically. The capture producer keeps writing to the ring
independently and never waits on the tick.
*/
package tuner

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tuner/internal/capture"
	"tuner/internal/display"
	"tuner/internal/log"
	"tuner/internal/pitch"
	"tuner/internal/spectrum"
	"tuner/internal/transport"
	"tuner/pkg/tone"
)

var (
	ErrAlreadyRunning = errors.New("tuner already running")
	ErrMismatch       = errors.New("ring, analyzer and mapper lengths disagree")
)

// Ring is the read side of the capture buffer.
type Ring interface {
	Capacity() int
	SnapshotInto(dst []capture.Sample) error
}

// Analyzer turns a snapshot into a magnitude spectrum.
type Analyzer interface {
	Len() int
	AnalyzeInto(dst []spectrum.Magnitude, samples []capture.Sample) error
}

// Mapper folds a spectrum into a pitch histogram.
type Mapper interface {
	BinCount() int
	FoldInto(dst pitch.Histogram, mags []spectrum.Magnitude)
}

// Gate decides whether a snapshot carries enough signal to analyse.
type Gate interface {
	Open(samples []capture.Sample) bool
}

var (
	_ Ring     = (*capture.Ring)(nil)
	_ Analyzer = (*spectrum.Analyzer)(nil)
	_ Mapper   = (*pitch.Mapper)(nil)
)

// Frame is the result of one tick.
type Frame struct {
	Seq     uint32          `json:"seq"`
	Time    time.Time       `json:"time"`
	Anchor  pitch.Anchor    `json:"anchor"`
	Start   int             `json:"start"`
	End     int             `json:"end"` // inclusive
	Bins    pitch.Histogram `json:"bins"`
	Peak    int             `json:"peak"` // argmax over the whole histogram
	Energy  pitch.Energy    `json:"energy"`
	Gated   bool            `json:"gated"`
	Elapsed time.Duration   `json:"elapsed"`
}

// Clone returns a frame that shares no memory with f.
func (f Frame) Clone() Frame {
	f.Bins = append(pitch.Histogram(nil), f.Bins...)
	return f
}

// Config holds the tick settings.
type Config struct {
	Interval time.Duration
	Selector display.Selector
	Anchor   pitch.Anchor
}

// Tuner owns one analysis pipeline and the loop that ticks it.
type Tuner struct {
	cfg      Config
	ring     Ring
	analyzer Analyzer
	mapper   Mapper
	gate     Gate
	sinks    []transport.Transport

	anchor atomic.Int64

	// Scratch buffers, guarded by tickMu.
	tickMu   sync.Mutex
	samples  []capture.Sample
	spectrum []spectrum.Magnitude
	hist     pitch.Histogram
	seq      uint32

	latestMu sync.RWMutex
	latest   Frame
	hasFrame bool
	err      error

	ticker   *time.Ticker
	doneChan chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // guards ticker, doneChan and loopDone
}

// New wires the stages together. gate may be nil. Every sink receives each
// frame by value.
func New(cfg Config, ring Ring, analyzer Analyzer, mapper Mapper, gate Gate, sinks ...transport.Transport) (*Tuner, error) {
	if ring == nil || analyzer == nil || mapper == nil {
		return nil, errors.New("tuner: ring, analyzer and mapper are required")
	}
	if ring.Capacity() != analyzer.Len() {
		return nil, fmt.Errorf("%w: ring %d, analyzer %d", ErrMismatch, ring.Capacity(), analyzer.Len())
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("tuner: tick interval must be positive, got %s", cfg.Interval)
	}

	t := &Tuner{
		cfg:      cfg,
		ring:     ring,
		analyzer: analyzer,
		mapper:   mapper,
		gate:     gate,
		sinks:    sinks,
		samples:  make([]capture.Sample, ring.Capacity()),
		spectrum: make([]spectrum.Magnitude, analyzer.Len()),
		hist:     make(pitch.Histogram, mapper.BinCount()),
	}
	t.anchor.Store(int64(cfg.Anchor))
	return t, nil
}

// SetAnchor selects the note surfaced by the next tick.
func (t *Tuner) SetAnchor(a pitch.Anchor) {
	t.anchor.Store(int64(a))
}

func (t *Tuner) Anchor() pitch.Anchor {
	return pitch.Anchor(t.anchor.Load())
}

// Interval returns the tick period.
func (t *Tuner) Interval() time.Duration {
	return t.cfg.Interval
}

// Tick runs the whole pipeline once on a fresh snapshot. The returned frame
// is also stored for Latest and passed to every sink.
func (t *Tuner) Tick() (Frame, error) {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	start := time.Now()

	if err := t.ring.SnapshotInto(t.samples); err != nil {
		return Frame{}, fmt.Errorf("snapshot failed: %w", err)
	}

	gated := t.gate != nil && !t.gate.Open(t.samples)
	if gated {
		clear(t.hist)
	} else {
		if err := t.analyzer.AnalyzeInto(t.spectrum, t.samples); err != nil {
			return Frame{}, fmt.Errorf("analysis failed: %w", err)
		}
		t.mapper.FoldInto(t.hist, t.spectrum)
	}

	anchor := t.Anchor()
	window := t.cfg.Selector.Select(t.hist, anchor)
	peak := tone.PeakIndex(t.hist)

	t.seq++
	frame := Frame{
		Seq:     t.seq,
		Time:    start,
		Anchor:  anchor,
		Start:   window.Start,
		End:     window.End,
		Bins:    append(pitch.Histogram(nil), window.Bins...),
		Peak:    peak,
		Gated:   gated,
		Elapsed: time.Since(start),
	}
	if len(t.hist) > 0 {
		frame.Energy = t.hist[peak]
	}

	t.latestMu.Lock()
	t.latest = frame
	t.hasFrame = true
	t.latestMu.Unlock()

	for _, sink := range t.sinks {
		if err := sink.Send(frame); err != nil {
			log.Errorf("tuner: failed to send frame %d: %v", frame.Seq, err)
		}
	}

	if log.Enabled(log.LevelDebug) {
		log.Debugf("tuner: frame %d anchor %d window [%d, %d] peak %d (%d) gated %v in %s",
			frame.Seq, anchor, frame.Start, frame.End, peak, frame.Energy, gated, frame.Elapsed)
	}
	return frame, nil
}

// Latest returns a copy of the most recent frame and whether one exists.
func (t *Tuner) Latest() (Frame, bool) {
	t.latestMu.RLock()
	defer t.latestMu.RUnlock()
	return t.latest.Clone(), t.hasFrame
}

// Err returns the error that stopped the loop, if any.
func (t *Tuner) Err() error {
	t.latestMu.RLock()
	defer t.latestMu.RUnlock()
	return t.err
}

func (t *Tuner) setErr(err error) {
	t.latestMu.Lock()
	t.err = err
	t.latestMu.Unlock()
}

// Running reports whether the tick loop is active.
func (t *Tuner) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker == nil {
		return false
	}
	select {
	case <-t.loopDone:
		return false
	default:
		return true
	}
}

// Start launches the tick loop. A loop that already ended on an error is
// cleaned up and replaced; a live loop yields ErrAlreadyRunning. The error
// and the latest frame of the previous run are cleared.
func (t *Tuner) Start() error {
	t.mu.Lock()
	if t.ticker != nil {
		select {
		case <-t.loopDone:
			t.mu.Unlock()
			t.Stop()
			t.mu.Lock()
		default:
			t.mu.Unlock()
			return ErrAlreadyRunning
		}
	}

	t.latestMu.Lock()
	t.err = nil
	t.latest = Frame{}
	t.hasFrame = false
	t.latestMu.Unlock()

	t.ticker = time.NewTicker(t.cfg.Interval)
	t.doneChan = make(chan struct{})
	t.loopDone = make(chan struct{})
	t.stopOnce = sync.Once{}

	ticker := t.ticker
	doneChan := t.doneChan
	loopDone := t.loopDone
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(loopDone)
		log.Debugf("tuner: tick loop started (interval %s)", t.cfg.Interval)
		for {
			select {
			case <-ticker.C:
				// Stop may race with a pending tick; it wins.
				select {
				case <-doneChan:
					return
				default:
				}
				frame, err := t.Tick()
				if err != nil {
					log.Errorf("tuner: stopping after tick error: %v", err)
					t.setErr(err)
					return
				}
				if frame.Elapsed > t.cfg.Interval {
					log.Warnf("tuner: tick %d took %s, longer than the %s interval",
						frame.Seq, frame.Elapsed, t.cfg.Interval)
				}
			case <-doneChan:
				return
			}
		}
	}()
	return nil
}

// Stop halts the loop and waits for it to exit. No tick starts after Stop
// returns. It is safe to call Stop more than once.
func (t *Tuner) Stop() {
	t.mu.Lock()
	if t.ticker == nil {
		t.mu.Unlock()
		return
	}
	t.stopOnce.Do(func() {
		close(t.doneChan)
		t.ticker.Stop()
		t.ticker = nil
	})
	t.mu.Unlock()

	t.wg.Wait()
	log.Debugf("tuner: tick loop stopped")
}
