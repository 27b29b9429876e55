package analysis

import (
	"time"
)

// BeatDetector flags sudden energy increases in the microphone signal, such
// as a clap or a kick drum.
type BeatDetector struct {
	threshold      float64       // RMS a block must exceed, 0-1 of full scale
	minEnergyRatio float64       // Required rise over the previous block
	cooldown       time.Duration // Minimum time between two beats
	lastEnergy     float64
	lastBeat       time.Time
	now            func() time.Time
}

// NewBeatDetector returns a detector that fires when a block's RMS is above
// threshold and at least minEnergyRatio times the previous block's.
func NewBeatDetector(threshold, minEnergyRatio float64, cooldown time.Duration) *BeatDetector {
	return &BeatDetector{
		threshold:      threshold,
		minEnergyRatio: minEnergyRatio,
		cooldown:       cooldown,
		now:            time.Now,
	}
}

// Process reports whether the block with the given RMS starts a beat.
func (bd *BeatDetector) Process(energy float64) bool {
	beat := energy > bd.threshold &&
		(bd.lastEnergy == 0 || energy/bd.lastEnergy > bd.minEnergyRatio)
	bd.lastEnergy = energy

	if !beat {
		return false
	}
	now := bd.now()
	if !bd.lastBeat.IsZero() && now.Sub(bd.lastBeat) < bd.cooldown {
		return false
	}
	bd.lastBeat = now
	return true
}
