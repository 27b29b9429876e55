// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate is a noise gate over 16-bit PCM. Blocks whose peak stays at or below
// the threshold are reported closed so downstream analysis can skip them.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Int32 // Absolute amplitude threshold (0-32767)
}

// NewGate returns an enabled gate at threshold (0.0-1.0 of full scale).
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.enabled.Store(true)
	g.SetThreshold(threshold)
	return g
}

func (g *Gate) Enable()       { g.enabled.Store(true) }
func (g *Gate) Disable()      { g.enabled.Store(false) }
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	g.threshold.Store(int32(threshold * float64(math.MaxInt16)))
}

// Threshold returns the current noise gate threshold as a float64.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold.Load()) / float64(math.MaxInt16)
}

// Open reports whether the block passes the gate. A disabled gate is always
// open.
func (g *Gate) Open(samples []int) bool {
	if !g.enabled.Load() {
		return true
	}
	return Peak(samples) > g.threshold.Load()
}

// Peak returns the largest absolute sample value.
// Hot path: no allocations, branchless abs and max.
func Peak(samples []int) int32 {
	var maxAmplitude int32
	for i := range samples {
		sample := int32(samples[i])
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}
