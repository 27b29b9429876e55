// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/media"
	"studio/internal/transport"
	"studio/pkg/utils"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

func binFrequency(bin int) float64 {
	return float64(bin) * testSampleRate / testFFTSize
}

func TestFFTFindsTone(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	require.NoError(t, err)

	p.Process(utils.GenerateSineWave(testFFTSize, testSampleRate, binFrequency(40), 0.8), 1)
	mags := p.GetMagnitudes()
	require.Len(t, mags, testFFTSize/2+1)
	assert.Equal(t, 40, utils.FindPeakBin(mags, 1, len(mags)-1))
	assert.Equal(t, binFrequency(40), p.PeakFrequency())

	dest := make([]float64, len(mags))
	require.NoError(t, p.GetMagnitudesInto(dest))
	assert.Equal(t, mags, dest)
	assert.Error(t, p.GetMagnitudesInto(make([]float64, 3)))
}

func TestFFTReadsFirstChannel(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	require.NoError(t, err)

	left := utils.GenerateSineWave(testFFTSize, testSampleRate, binFrequency(20), 0.8)
	right := utils.GenerateSineWave(testFFTSize, testSampleRate, binFrequency(100), 0.8)
	stereo := make([]int, 0, 2*testFFTSize)
	for i := range left {
		stereo = append(stereo, left[i], right[i])
	}
	p.Process(stereo, 2)
	assert.Equal(t, binFrequency(20), p.PeakFrequency())
}

func TestNewFFTProcessorValidates(t *testing.T) {
	_, err := NewFFTProcessor(1000, testSampleRate, Hann)
	assert.Error(t, err)
	_, err = NewFFTProcessor(testFFTSize, 0, Hann)
	assert.Error(t, err)
}

func TestGetFrequencyForBin(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	require.NoError(t, err)

	assert.Equal(t, 0.0, p.GetFrequencyForBin(0))
	assert.Equal(t, testSampleRate/2.0, p.GetFrequencyForBin(testFFTSize/2))
	assert.Equal(t, 0.0, p.GetFrequencyForBin(-1))
	assert.Equal(t, 0.0, p.GetFrequencyForBin(testFFTSize))
}

func TestFFTHotPath(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	require.NoError(t, err)
	input := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	// Warm-up call so one-time allocations are not counted.
	p.Process(input, 1)
	allocs := testing.AllocsPerRun(100, func() {
		p.Process(input, 1)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in FFT Process hot path, got %.1f", allocs)
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"Hann", Hann, false},
		{"hanning", Hann, false},
		{"BLACKMAN", Blackman, false},
		{"blackmannuttall", BlackmanNuttall, false},
		{"bartletthann", BartlettHann, false},
		{"hamming", Hamming, false},
		{"lanczos", Lanczos, false},
		{"nuttall", Nuttall, false},
		{"triangle", Hann, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
	assert.Equal(t, "Hamming", Hamming.String())
}

func TestBandLevels(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	require.NoError(t, err)
	bands := NewBandEnergyProcessor(p, nil)

	p.Process(utils.GenerateSineWave(testFFTSize, testSampleRate, 1000, 0.9), 1)
	levels := bands.Levels()
	require.Len(t, levels, 6)

	loudest := levels[0]
	for _, l := range levels {
		assert.GreaterOrEqual(t, l.Level, 0.0)
		assert.LessOrEqual(t, l.Level, 1.0)
		if l.Level > loudest.Level {
			loudest = l
		}
	}
	assert.Equal(t, "mid", loudest.Name)
}

func TestMeterPublishesThrottledLevels(t *testing.T) {
	out := &utils.MockTransport{}
	m := NewMeter(out, MeterConfig{Size: 1000, Interval: time.Hour, Threshold: 0.1})
	format := &goaudio.Format{NumChannels: 1, SampleRate: testSampleRate}

	loud := utils.GenerateSineWave(testFFTSize, testSampleRate, 1000, 0.5)
	m.Process(&goaudio.IntBuffer{Format: format, Data: loud})

	lvl := m.Last()
	assert.True(t, lvl.Open)
	assert.InDelta(t, 0.5, lvl.Peak, 0.01)
	assert.InDelta(t, 0.5/1.4142, lvl.RMS, 0.02)
	assert.Len(t, lvl.Bands, 6)
	assert.InDelta(t, 1000, lvl.Frequency, testSampleRate/testFFTSize)

	sent := out.Sent()
	require.Len(t, sent, 1)
	ev := sent[0].(transport.Event)
	assert.Equal(t, transport.AudioLevel, ev.Type)

	quiet := utils.GenerateSineWave(testFFTSize, testSampleRate, 1000, 0.01)
	m.Process(&goaudio.IntBuffer{Format: format, Data: quiet})
	lvl = m.Last()
	assert.False(t, lvl.Open, "gate closed below threshold")
	assert.Nil(t, lvl.Bands)
	assert.Len(t, out.Sent(), 1, "second reading inside the interval is not published")

	m.Process(nil)
	m.Process(&goaudio.IntBuffer{Format: format})
}

func TestMeterAttach(t *testing.T) {
	m := NewMeter(nil, MeterConfig{})
	feed := media.NewAudioFeed("processed", &goaudio.Format{NumChannels: 1, SampleRate: 8000}, nil)
	defer feed.Stop()

	detach := m.Attach(feed)
	feed.Publish(&goaudio.IntBuffer{Format: feed.Format(), Data: []int{16384, -16384}})
	assert.InDelta(t, 0.5, m.Last().Peak, 0.001)

	detach()
	assert.Zero(t, feed.Subscribers())
	feed.Publish(&goaudio.IntBuffer{Format: feed.Format(), Data: []int{100}})
	assert.InDelta(t, 0.5, m.Last().Peak, 0.001)
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{1, 1},       // One
		{8, 8},       // Already power of two
		{10, 16},     // Not power of two
		{1000, 1024}, // Large number
		{3, 4},       // Small non-power
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			if got := NextPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, got, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-2, false},     // Negative number
		{0, false},      // Zero
		{1, true},       // One
		{8, true},       // Power of two
		{10, false},     // Not power of two
		{1 << 20, true}, // Large power of two
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%t", tt.n, tt.expected), func(t *testing.T) {
			if got := IsPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, got, tt.expected)
			}
		})
	}
}

func BenchmarkProcess(b *testing.B) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		b.Fatal(err)
	}
	input := utils.GenerateComplexWave(testFFTSize, testSampleRate)
	b.ReportAllocs()
	for b.Loop() {
		p.Process(input, 1)
	}
}

func TestBeatDetector(t *testing.T) {
	now := time.Unix(0, 0)
	bd := NewBeatDetector(0.1, 1.8, 100*time.Millisecond)
	bd.now = func() time.Time { return now }

	assert.False(t, bd.Process(0.05), "below threshold")
	assert.True(t, bd.Process(0.3), "jump above threshold")
	assert.False(t, bd.Process(0.35), "sustained level is not a new beat")

	bd.Process(0.05)
	now = now.Add(50 * time.Millisecond)
	assert.False(t, bd.Process(0.5), "inside cooldown")

	bd.Process(0.05)
	now = now.Add(100 * time.Millisecond)
	assert.True(t, bd.Process(0.5))
}

func TestMeterSpectrum(t *testing.T) {
	m := NewMeter(nil, MeterConfig{Size: testFFTSize})
	require.Equal(t, testFFTSize/2+1, m.Bins())

	dest := make([]float64, m.Bins())
	dest[3] = 1
	require.NoError(t, m.MagnitudesInto(dest))
	assert.Zero(t, dest[3], "zeros before the first reading")
	assert.Error(t, m.MagnitudesInto(make([]float64, 4)))

	format := &goaudio.Format{NumChannels: 1, SampleRate: testSampleRate}
	m.Process(&goaudio.IntBuffer{Format: format, Data: utils.GenerateSineWave(testFFTSize, testSampleRate, binFrequency(40), 0.8)})
	require.NoError(t, m.MagnitudesInto(dest))
	assert.Equal(t, 40, utils.FindPeakBin(dest, 1, len(dest)-1))
	assert.True(t, m.Last().Beat)
}
