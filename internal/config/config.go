package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the compositing recorder.
const (
	// Audio capture defaults
	DefaultChannels        = 1           // Mono microphone
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFFTWindow       = "Hann"      // Meter analysis window
	DefaultMeterSize       = 512         // Meter FFT size (power of 2)
	DefaultGateThreshold   = 0.02        // Meter noise gate, fraction of full scale

	// Video defaults
	DefaultWidth       = 1280
	DefaultHeight      = 720
	DefaultCamera      = CameraPattern
	DefaultCameraFPS   = 30
	DefaultDrawRate    = 60 // Draw loop ticks per second
	DefaultCaptureFPS  = 30 // Surface capture rate fed to the recorder
	DefaultJPEGQuality = 80
	DefaultBackground  = "#000000"

	// Recording defaults
	DefaultFormat    = "avi" // Single container: MJPEG video + PCM audio
	DefaultSave      = false // Playback only unless asked
	DefaultOutputDir = "./recordings"

	// Server defaults
	DefaultAddress       = "127.0.0.1:8080"
	DefaultCommandRate   = 20.0
	DefaultCommandBurst  = 10
	DefaultMeterInterval = 50 * time.Millisecond

	DefaultVerbosity = false

	// CameraPattern selects the synthetic test pattern camera.
	CameraPattern = "pattern"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxChannels     = 2
	MaxDimension    = 4096
)
