// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"
)

func TestMockTransportRecords(t *testing.T) {
	mt := &MockTransport{}
	for _, v := range []any{1, "two", []float64{3}} {
		if err := mt.Send(v); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if got := len(mt.Sent()); got != 3 {
		t.Errorf("Sent() length = %d, want 3", got)
	}
	if err := mt.Close(); err != nil || !mt.Closed {
		t.Errorf("Close() = %v, closed = %v", err, mt.Closed)
	}
}

func TestGenerateSineWave(t *testing.T) {
	wave := GenerateSineWave(1000, 8000, 1000, 0.5)
	if len(wave) != 1000 {
		t.Fatalf("length = %d, want 1000", len(wave))
	}
	if wave[0] != 0 {
		t.Errorf("wave[0] = %d, want 0", wave[0])
	}
	// A quarter period in (8 samples per cycle) the sine peaks.
	want := int(math.Round(math.MaxInt16 * 0.5))
	if d := wave[2] - want; d > 1 || d < -1 {
		t.Errorf("wave[2] = %d, want %d", wave[2], want)
	}
	for i, v := range wave {
		if v > math.MaxInt16 || v < math.MinInt16 {
			t.Fatalf("wave[%d] = %d out of int16 range", i, v)
		}
	}
}

func TestGenerateComplexWaveInRange(t *testing.T) {
	for i, v := range GenerateComplexWave(4096, 44100) {
		if v > math.MaxInt16 || v < math.MinInt16 {
			t.Fatalf("sample %d = %d out of int16 range", i, v)
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	magnitudes := make([]float64, 64)
	for i := range magnitudes {
		magnitudes[i] = math.Exp(-0.1 * math.Pow(float64(i-16), 2))
	}

	tests := []struct {
		name       string
		start, end int
		want       int
	}{
		{"Full Range", 0, 63, 16},
		{"Clamped Range", -5, 100, 16},
		{"Right Of Peak", 20, 63, 20},
		{"Left Of Peak", 0, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(magnitudes, tt.start, tt.end); got != tt.want {
				t.Errorf("FindPeakBin(%d, %d) = %d, want %d", tt.start, tt.end, got, tt.want)
			}
		})
	}
	if got := FindPeakBin(nil, 0, 10); got != 0 {
		t.Errorf("FindPeakBin(nil) = %d, want 0", got)
	}
}
