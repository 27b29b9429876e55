// SPDX-License-Identifier: MIT
package analysis

// AudioProcessor analyses interleaved 16-bit PCM blocks. Implementations
// run on the capture path and should not block.
type AudioProcessor interface {
	Process(samples []int, channels int)
}

// FFTResultProvider decouples spectrum consumers (band levels, the meter)
// from the concrete FFT implementation.
type FFTResultProvider interface {
	GetMagnitudes() []float64                // GetMagnitudes returns a thread-safe copy of the latest FFT magnitude spectrum.
	GetFrequencyForBin(binIndex int) float64 // GetFrequencyForBin returns the center frequency (Hz) for a given FFT bin index.
	GetFFTSize() int                         // GetFFTSize returns the size (number of points) of the FFT.
	GetSampleRate() float64                  // GetSampleRate returns the sample rate used for the FFT analysis.
}
