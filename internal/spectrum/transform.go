// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"fmt"
	"strings"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

var (
	// ErrLength is returned when a sequence does not match the transform length.
	ErrLength = errors.New("sequence length does not match transform length")
	// ErrUnknownBackend is returned by ParseBackend for unrecognised names.
	ErrUnknownBackend = errors.New("unknown fft backend")
)

// Transformer computes the forward discrete Fourier transform of a fixed
// length complex sequence. Output bin k holds frequency k*rate/N, with the
// upper half mirroring the lower half for real input.
type Transformer interface {
	// Transform writes the N coefficients of src into dst. Both must have
	// length Len().
	Transform(dst, src []complex128) error
	Len() int
}

// Backend selects a Transformer implementation.
type Backend int

const (
	Gonum Backend = iota
	GoDSP
)

func (b Backend) String() string {
	switch b {
	case Gonum:
		return "gonum"
	case GoDSP:
		return "godsp"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend converts a config name (case-insensitive) to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "", "gonum":
		return Gonum, nil
	case "godsp", "go-dsp":
		return GoDSP, nil
	default:
		return Gonum, fmt.Errorf("%w: '%s'", ErrUnknownBackend, name)
	}
}

// NewTransformer builds the transform for length n.
func NewTransformer(b Backend, n int) (Transformer, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: transform length must be >= 2, got %d", ErrLength, n)
	}
	switch b {
	case Gonum:
		return &gonumTransformer{fft: fourier.NewCmplxFFT(n), n: n}, nil
	case GoDSP:
		return &goDSPTransformer{n: n}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownBackend, b)
	}
}

// gonumTransformer wraps gonum's complex FFT, which reuses its twiddle
// tables across calls and writes into dst without allocating.
type gonumTransformer struct {
	fft *fourier.CmplxFFT
	n   int
}

func (g *gonumTransformer) Len() int { return g.n }

func (g *gonumTransformer) Transform(dst, src []complex128) error {
	if len(src) != g.n || len(dst) != g.n {
		return fmt.Errorf("%w: src %d, dst %d, want %d", ErrLength, len(src), len(dst), g.n)
	}
	g.fft.Coefficients(dst, src)
	return nil
}

// goDSPTransformer uses go-dsp, which allocates its result on every call.
type goDSPTransformer struct {
	n int
}

func (g *goDSPTransformer) Len() int { return g.n }

func (g *goDSPTransformer) Transform(dst, src []complex128) error {
	if len(src) != g.n || len(dst) != g.n {
		return fmt.Errorf("%w: src %d, dst %d, want %d", ErrLength, len(src), len(dst), g.n)
	}
	copy(dst, dspfft.FFT(src))
	return nil
}
