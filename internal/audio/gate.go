// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"

	"tuner/internal/capture"
)

// Gate suppresses analysis of snapshots whose peak amplitude stays at or
// below a threshold. It may be reconfigured while the tick is running.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Int32 // absolute amplitude, 0..32767
}

// NewGate returns a gate at threshold (0..1 of full scale). A threshold of
// zero leaves the gate disabled.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.enabled.Store(threshold > 0)
	return g
}

func (g *Gate) Enable() {
	g.enabled.Store(true)
}

func (g *Gate) Disable() {
	g.enabled.Store(false)
}

func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(int32(threshold * math.MaxInt16))
}

// Threshold returns the current threshold as a fraction of full scale.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold.Load()) / math.MaxInt16
}

// Open reports whether samples should be analysed. A disabled or nil gate is
// always open.
func (g *Gate) Open(samples []capture.Sample) bool {
	if g == nil || !g.enabled.Load() {
		return true
	}
	return Peak(samples) > g.threshold.Load()
}

// Peak returns the largest absolute amplitude in samples.
// Performance Critical:
//   - Branchless absolute value and running maximum
//   - No allocations
func Peak(samples []capture.Sample) int32 {
	var maxAmplitude int32
	for _, s := range samples {
		sample := int32(s)
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += diff &^ (diff >> 31)
	}
	return maxAmplitude
}
