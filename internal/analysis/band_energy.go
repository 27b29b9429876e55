package analysis

import (
	"math"
)

// FrequencyBand is a named frequency range.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands split the voice range the meter displays.
func DefaultBands(sampleRate float64) []FrequencyBand {
	return []FrequencyBand{
		{Name: "sub", LowHz: 20, HighHz: 60},
		{Name: "bass", LowHz: 60, HighHz: 250},
		{Name: "lowMid", LowHz: 250, HighHz: 500},
		{Name: "mid", LowHz: 500, HighHz: 2000},
		{Name: "highMid", LowHz: 2000, HighHz: 4000},
		{Name: "treble", LowHz: 4000, HighHz: sampleRate / 2},
	}
}

// BandLevel is the normalised energy of one band.
type BandLevel struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// BandEnergyProcessor averages spectrum energy over frequency bands.
type BandEnergyProcessor struct {
	bands       []FrequencyBand
	fftProvider FFTResultProvider
	energy      []float64
	bins        []int
}

// NewBandEnergyProcessor reads spectra from fftProvider. Nil bands select
// DefaultBands.
func NewBandEnergyProcessor(fftProvider FFTResultProvider, bands []FrequencyBand) *BandEnergyProcessor {
	if bands == nil {
		bands = DefaultBands(fftProvider.GetSampleRate())
	}
	return &BandEnergyProcessor{
		bands:       bands,
		fftProvider: fftProvider,
		energy:      make([]float64, len(bands)),
		bins:        make([]int, len(bands)),
	}
}

// Levels computes band levels from the provider's latest spectrum. Each
// level is the RMS magnitude of the band's bins, clamped to [0, 1].
func (p *BandEnergyProcessor) Levels() []BandLevel {
	magnitudes := p.fftProvider.GetMagnitudes()

	for i := range p.bands {
		p.energy[i] = 0
		p.bins[i] = 0
	}
	for i, m := range magnitudes {
		freq := p.fftProvider.GetFrequencyForBin(i)
		for b, band := range p.bands {
			if freq >= band.LowHz && freq < band.HighHz {
				p.energy[b] += m * m
				p.bins[b]++
				break
			}
		}
	}

	out := make([]BandLevel, len(p.bands))
	for b, band := range p.bands {
		level := 0.0
		if p.bins[b] > 0 {
			level = math.Sqrt(p.energy[b] / float64(p.bins[b]))
		}
		out[b] = BandLevel{Name: band.Name, Level: math.Min(1.0, level)}
	}
	return out
}
