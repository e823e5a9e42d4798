// SPDX-License-Identifier: MIT
/*
Package pitch folds a linear magnitude spectrum into a one-octave,
log-spaced pitch histogram.

Bin i covers [ref·step^i, ref·step^(i+1)) with step = 2^(1/BinCount), so the
BinCount bins span exactly one octave above the reference pitch. Each bin
collects energy from Octaves successive octaves: for octave j the frequency
range is scaled by 2^j and mapped to spectrum indices (k ↔ k·rate/N). Every
index in that range adds its magnitude divided by Octaves and by the
unrounded index width of the range.

	bins[i] = Σ_{j<Octaves} Σ_{lo_ij ≤ k < hi_ij} spectrum[k] / Octaves / width_ij

An index range that rounds to empty contributes nothing. Ranges past the
Nyquist index are clamped.

Two accumulation modes exist. Exact sums in float64 and truncates once per
bin. Truncating works in float32, divides each magnitude by Octaves as an
integer, and truncates the running total after every addition, so its values
run slightly below Exact.
*/
package pitch

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"tuner/internal/spectrum"
)

const (
	DefaultBinCount  = 343
	DefaultReference = 55.0 // A1
	DefaultOctaves   = 8
)

// ErrUnknownAccumulation is returned by ParseAccumulation.
var ErrUnknownAccumulation = errors.New("unknown accumulation mode")

// Energy is one histogram value.
type Energy = int32

// Histogram holds one Energy per bin, index 0 at the reference pitch.
type Histogram []Energy

// Accumulation selects how partial sums are rounded.
type Accumulation int

const (
	Exact Accumulation = iota
	Truncating
)

func (a Accumulation) String() string {
	switch a {
	case Exact:
		return "exact"
	case Truncating:
		return "truncate"
	default:
		return fmt.Sprintf("Accumulation(%d)", int(a))
	}
}

// ParseAccumulation converts a config name to an Accumulation.
func ParseAccumulation(name string) (Accumulation, error) {
	switch strings.ToLower(name) {
	case "", "exact", "float":
		return Exact, nil
	case "truncate", "truncating", "parity":
		return Truncating, nil
	default:
		return Exact, fmt.Errorf("%w: '%s'", ErrUnknownAccumulation, name)
	}
}

// Config describes the spectrum being folded and the histogram produced.
type Config struct {
	SampleRate   float64 // Hz
	Length       int     // transform length N
	BinCount     int
	Reference    float64 // Hz of bin 0
	Octaves      int
	Accumulation Accumulation
}

// DefaultConfig returns the standard layout for a transform of length n.
func DefaultConfig(sampleRate float64, n int) Config {
	return Config{
		SampleRate:   sampleRate,
		Length:       n,
		BinCount:     DefaultBinCount,
		Reference:    DefaultReference,
		Octaves:      DefaultOctaves,
		Accumulation: Exact,
	}
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %f", c.SampleRate)
	case c.Length < 2:
		return fmt.Errorf("spectrum length must be >= 2, got %d", c.Length)
	case c.BinCount <= 0:
		return fmt.Errorf("bin count must be positive, got %d", c.BinCount)
	case c.Reference <= 0:
		return fmt.Errorf("reference pitch must be positive, got %f", c.Reference)
	case c.Octaves <= 0:
		return fmt.Errorf("octave count must be positive, got %d", c.Octaves)
	case c.Accumulation != Exact && c.Accumulation != Truncating:
		return fmt.Errorf("%w: %v", ErrUnknownAccumulation, c.Accumulation)
	}
	return nil
}

// span is the half-open spectrum index range for one bin at one octave.
type span struct {
	lo, hi int
	width  float64 // unrounded index width
}

// Mapper is immutable after construction and safe for concurrent use.
type Mapper struct {
	cfg   Config
	step  float64
	spans []span // BinCount*Octaves, bin-major
}

// NewMapper precomputes every bin's index ranges.
func NewMapper(cfg Config) (*Mapper, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Mapper{
		cfg:   cfg,
		step:  math.Pow(2, 1/float64(cfg.BinCount)),
		spans: make([]span, cfg.BinCount*cfg.Octaves),
	}

	// Real input: indices above N/2 mirror the lower half.
	limit := min(cfg.Length/2+1, cfg.Length)

	if cfg.Accumulation == Truncating {
		m.buildTruncatingSpans(limit)
	} else {
		m.buildExactSpans(limit)
	}
	return m, nil
}

func (m *Mapper) buildExactSpans(limit int) {
	res := float64(m.cfg.Length) / m.cfg.SampleRate
	for i := range m.cfg.BinCount {
		index := m.BinFrequency(i) * res
		indexNext := index * m.step
		for j := range m.cfg.Octaves {
			m.spans[i*m.cfg.Octaves+j] = clampSpan(math.Round(index), math.Round(indexNext), limit, indexNext-index)
			index *= 2
			indexNext *= 2
		}
	}
}

// buildTruncatingSpans computes every edge in float32.
func (m *Mapper) buildTruncatingSpans(limit int) {
	step := float32(math.Pow(2, 1.0/float64(m.cfg.BinCount)))
	res := float32(m.cfg.Length) / float32(m.cfg.SampleRate)
	ref := float32(m.cfg.Reference)
	for i := range m.cfg.BinCount {
		binFreq := float32(float64(ref) * math.Pow(float64(step), float64(float32(i))))
		index := binFreq * res
		indexNext := binFreq * step * res
		for j := range m.cfg.Octaves {
			lo := math.Round(float64(index))
			hi := math.Round(float64(indexNext))
			m.spans[i*m.cfg.Octaves+j] = clampSpan(lo, hi, limit, float64(indexNext-index))
			index *= 2
			indexNext *= 2
		}
	}
}

func clampSpan(lo, hi float64, limit int, width float64) span {
	s := span{lo: int(lo), hi: int(hi), width: width}
	if s.lo < 0 {
		s.lo = 0
	}
	if s.hi > limit {
		s.hi = limit
	}
	if s.hi < s.lo || width <= 0 {
		s.hi = s.lo
	}
	return s
}

// Config returns the layout the mapper was built with.
func (m *Mapper) Config() Config {
	return m.cfg
}

// BinCount returns the histogram length.
func (m *Mapper) BinCount() int {
	return m.cfg.BinCount
}

// Step returns the per-bin frequency ratio 2^(1/BinCount).
func (m *Mapper) Step() float64 {
	return m.step
}

// BinFrequency returns the lower edge of bin i in Hz.
func (m *Mapper) BinFrequency(i int) float64 {
	return m.cfg.Reference * math.Pow(m.step, float64(i))
}

// Frequencies returns the lower edge of every bin.
func (m *Mapper) Frequencies() []float64 {
	out := make([]float64, m.cfg.BinCount)
	for i := range out {
		out[i] = m.BinFrequency(i)
	}
	return out
}

// Fold allocates and returns the histogram for mags.
func (m *Mapper) Fold(mags []spectrum.Magnitude) Histogram {
	out := make(Histogram, m.cfg.BinCount)
	m.FoldInto(out, mags)
	return out
}

// FoldInto writes the histogram for mags into dst, which must hold
// BinCount() values. A spectrum shorter than the configured length is read
// only up to its own end.
func (m *Mapper) FoldInto(dst Histogram, mags []spectrum.Magnitude) {
	octaves := m.cfg.Octaves
	n := len(mags)

	for i := range dst[:m.cfg.BinCount] {
		spans := m.spans[i*octaves : (i+1)*octaves]
		if m.cfg.Accumulation == Truncating {
			dst[i] = foldTruncating(spans, mags, n, octaves)
		} else {
			dst[i] = foldExact(spans, mags, n, octaves)
		}
	}
}

func foldExact(spans []span, mags []spectrum.Magnitude, n, octaves int) Energy {
	var total float64
	for _, s := range spans {
		hi := min(s.hi, n)
		if hi <= s.lo {
			continue
		}
		var sum int64
		for _, v := range mags[s.lo:hi] {
			sum += int64(v)
		}
		total += float64(sum) / float64(octaves) / s.width
	}
	return Energy(min(total, math.MaxInt32))
}

func foldTruncating(spans []span, mags []spectrum.Magnitude, n, octaves int) Energy {
	var bin Energy
	for _, s := range spans {
		width := float32(s.width)
		hi := min(s.hi, n)
		for k := s.lo; k < hi; k++ {
			part := float32(int32(mags[k])/int32(octaves)) / width
			bin = Energy(float32(bin) + part)
		}
	}
	return bin
}
