// Package utils holds test helpers shared across packages: synthetic PCM
// signals and a transport that records what it is sent.
package utils

import (
	"math"
	"sync"
)

// MockTransport records every message instead of transmitting it.
type MockTransport struct {
	mu       sync.Mutex
	Messages []any
	Closed   bool
}

// Send stores data for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.Messages...)
}

// GenerateSineWave returns size 16-bit samples of a sine at frequency Hz
// and amplitude (0-1 of full scale).
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int {
	buffer := make([]int, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int(math.Round(math.Sin(2*math.Pi*frequency*t) * math.MaxInt16 * amplitude))
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz tone with its first two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []int {
	buffer := make([]int, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int(signal * math.MaxInt16 * 0.9)
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
