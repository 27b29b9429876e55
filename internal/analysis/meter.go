package analysis

import (
	"fmt"
	"math"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"golang.org/x/time/rate"

	"studio/internal/audio"
	"studio/internal/config"
	applog "studio/internal/log"
	"studio/internal/media"
	"studio/internal/transport"
)

// Level is one reading of the level meter.
type Level struct {
	Peak      float64     `json:"peak"`
	RMS       float64     `json:"rms"`
	Open      bool        `json:"open"`
	Beat      bool        `json:"beat,omitempty"`
	Frequency float64     `json:"frequency,omitempty"`
	Bands     []BandLevel `json:"bands,omitempty"`
}

// MeterConfig configures a Meter.
type MeterConfig struct {
	Size      int           // FFT size, rounded up to a power of two
	Window    WindowFunc    // FFT window
	Interval  time.Duration // Minimum time between published readings
	Threshold float64       // Gate threshold, 0-1 of full scale
}

const (
	beatThreshold   = 0.1
	beatEnergyRatio = 1.8
	beatCooldown    = 150 * time.Millisecond
)

// Meter measures the processed microphone signal and publishes readings as
// audio.level events. Blocks the gate keeps closed skip the spectrum.
type Meter struct {
	cfg     MeterConfig
	out     transport.Transport
	gate    *audio.Gate
	limiter *rate.Limiter

	mu         sync.Mutex
	beats      *BeatDetector
	fft        *FFTProcessor
	bands      *BandEnergyProcessor
	sampleRate int
	last       Level
}

// NewMeter publishes readings to out, which may be nil.
func NewMeter(out transport.Transport, cfg MeterConfig) *Meter {
	if cfg.Size <= 0 {
		cfg.Size = config.DefaultMeterSize
	}
	cfg.Size = NextPowerOfTwo(cfg.Size)
	if cfg.Interval <= 0 {
		cfg.Interval = config.DefaultMeterInterval
	}
	return &Meter{
		cfg:     cfg,
		out:     out,
		gate:    audio.NewGate(cfg.Threshold),
		beats:   NewBeatDetector(beatThreshold, beatEnergyRatio, beatCooldown),
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
	}
}

// Gate exposes the meter's noise gate.
func (m *Meter) Gate() *audio.Gate { return m.gate }

// Attach meters track until the returned func is called.
func (m *Meter) Attach(track media.AudioTrack) (detach func()) {
	applog.Debugf("Meter: attached to %s", track.ID())
	return track.Subscribe(m.Process)
}

// Process measures one block.
func (m *Meter) Process(buf *goaudio.IntBuffer) {
	if buf == nil || len(buf.Data) == 0 {
		return
	}
	channels, sampleRate := 1, config.DefaultSampleRate
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			sampleRate = buf.Format.SampleRate
		}
	}

	lvl := Level{
		Peak: float64(audio.Peak(buf.Data)) / math.MaxInt16,
		RMS:  rms(buf.Data),
		Open: m.gate.Open(buf.Data),
	}
	if lvl.Peak > 1 {
		lvl.Peak = 1
	}

	m.mu.Lock()
	lvl.Beat = m.beats.Process(lvl.RMS)
	if lvl.Open {
		if err := m.ensureSpectrum(sampleRate); err != nil {
			applog.Warnf("Meter: %v", err)
		} else {
			m.fft.Process(buf.Data, channels)
			lvl.Frequency = m.fft.PeakFrequency()
			lvl.Bands = m.bands.Levels()
		}
	}
	m.last = lvl
	m.mu.Unlock()

	if m.out != nil && m.limiter.Allow() {
		_ = m.out.Send(transport.Event{Type: transport.AudioLevel, Data: lvl})
	}
}

// ensureSpectrum rebuilds the FFT when the sample rate changes.
func (m *Meter) ensureSpectrum(sampleRate int) error {
	if m.fft != nil && m.sampleRate == sampleRate {
		return nil
	}
	fft, err := NewFFTProcessor(m.cfg.Size, float64(sampleRate), m.cfg.Window)
	if err != nil {
		return err
	}
	m.fft = fft
	m.bands = NewBandEnergyProcessor(fft, nil)
	m.sampleRate = sampleRate
	return nil
}

// Bins is the number of spectrum magnitudes, FFT size/2 + 1.
func (m *Meter) Bins() int { return m.cfg.Size/2 + 1 }

// MagnitudesInto copies the latest spectrum into dest. Before the first open
// block the spectrum is all zeros.
func (m *Meter) MagnitudesInto(dest []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fft == nil {
		if len(dest) != m.Bins() {
			return fmt.Errorf("destination length %d, need %d", len(dest), m.Bins())
		}
		clear(dest)
		return nil
	}
	return m.fft.GetMagnitudesInto(dest)
}

// Last returns the most recent reading.
func (m *Meter) Last() Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func rms(samples []int) float64 {
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
