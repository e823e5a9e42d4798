// SPDX-License-Identifier: MIT
/*
Package spectrum turns a block of captured samples into an integer
magnitude spectrum:

 1. multiply by a Hann window, w[i] = 0.5*(1 - cos(2πi/(N-1)))
 2. forward complex DFT of the windowed, zero-imaginary signal
 3. |X[k]| / attenuation, truncated toward zero and clamped to MaxMagnitude

The output has N entries, one per transform bin. All buffers are allocated
once in NewAnalyzer; Analyzer is not safe for concurrent use.
*/
package spectrum

import (
	"fmt"
	"math"

	"tuner/internal/capture"

	"gonum.org/v1/gonum/dsp/window"
)

// Magnitude is one scaled spectrum value in [0, MaxMagnitude].
type Magnitude = int16

const (
	// MaxMagnitude caps scaled values so downstream integer sums stay bounded.
	MaxMagnitude = math.MaxInt16
	// DefaultAttenuation is the default divisor applied to raw magnitudes.
	DefaultAttenuation = 200.0
)

// Analyzer turns a block of samples into a scaled magnitude spectrum. It
// reuses its buffers and is not safe for concurrent use.
type Analyzer struct {
	n           int
	attenuation float64
	window      []float64 // Hann coefficients
	fft         Transformer
	in          []complex128
	out         []complex128
}

// NewAnalyzer prepares an analyzer for blocks of exactly n samples.
func NewAnalyzer(n int, backend Backend, attenuation float64) (*Analyzer, error) {
	if attenuation <= 0 {
		return nil, fmt.Errorf("attenuation must be positive, got %f", attenuation)
	}
	t, err := NewTransformer(backend, n)
	if err != nil {
		return nil, err
	}
	return NewAnalyzerWith(t, attenuation), nil
}

// NewAnalyzerWith uses a caller-supplied transform; its length fixes N.
func NewAnalyzerWith(t Transformer, attenuation float64) *Analyzer {
	n := t.Len()
	return &Analyzer{
		n:           n,
		attenuation: attenuation,
		window:      HannWindow(n),
		fft:         t,
		in:          make([]complex128, n),
		out:         make([]complex128, n),
	}
}

// HannWindow returns the n symmetric Hann coefficients.
func HannWindow(n int) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1
	}
	return window.Hann(coeffs)
}

// Len returns the block length N.
func (a *Analyzer) Len() int {
	return a.n
}

// Analyze returns a freshly allocated spectrum for samples.
func (a *Analyzer) Analyze(samples []capture.Sample) ([]Magnitude, error) {
	out := make([]Magnitude, a.n)
	if err := a.AnalyzeInto(out, samples); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeInto writes the spectrum of samples into dst without allocating
// (for the gonum backend). Both slices must have length Len().
func (a *Analyzer) AnalyzeInto(dst []Magnitude, samples []capture.Sample) error {
	if len(samples) != a.n || len(dst) != a.n {
		return fmt.Errorf("%w: samples %d, dst %d, want %d", ErrLength, len(samples), len(dst), a.n)
	}

	for i, s := range samples {
		a.in[i] = complex(float64(s)*a.window[i], 0)
	}

	if err := a.fft.Transform(a.out, a.in); err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}

	for i, c := range a.out {
		dst[i] = scale(math.Hypot(real(c), imag(c)) / a.attenuation)
	}
	return nil
}

// scale truncates toward zero and clamps into the Magnitude range.
func scale(v float64) Magnitude {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Abs(v)
	if v >= MaxMagnitude {
		return MaxMagnitude
	}
	return Magnitude(v)
}
