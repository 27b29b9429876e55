// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Microphone capture settings.
	Video     VideoConfig     `yaml:"video"`     // Camera and drawing surface settings.
	Recording RecordingConfig `yaml:"recording"` // Recorder settings.
	Server    ServerConfig    `yaml:"server"`    // Local UI server settings.

	// Runtime only, set by the CLI.
	Command     string `yaml:"-"` // One-off command ("list", "probe") instead of serving.
	Interactive bool   `yaml:"-"` // Interactive device picker for "list".
	ProbeFile   string `yaml:"-"` // Artifact to inspect for "probe".
}

// AudioConfig holds settings related to microphone input and the gain stage.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per capture buffer (affects latency).
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // Number of input channels to capture.
	InputFile       string  `yaml:"input_file"`        // Replay a WAV file instead of opening a device.
	FFTWindow       string  `yaml:"fft_window"`        // Window function for the level meter.
	MeterSize       int     `yaml:"meter_size"`        // Level meter FFT size.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Level meter noise gate (0.0-1.0).
}

// VideoConfig holds settings for the camera source and the drawing surface.
type VideoConfig struct {
	Width       int    `yaml:"width"`        // Drawing surface width in pixels.
	Height      int    `yaml:"height"`       // Drawing surface height in pixels.
	Camera      string `yaml:"camera"`       // "pattern" or a path to a still image.
	CameraFPS   int    `yaml:"camera_fps"`   // Camera frame rate.
	DrawRate    int    `yaml:"draw_rate"`    // Draw loop ticks per second.
	CaptureFPS  int    `yaml:"capture_fps"`  // Surface capture rate for recording.
	JPEGQuality int    `yaml:"jpeg_quality"` // Quality of recorded video frames (1-100).
	Background  string `yaml:"background"`   // Surface clear colour, hex.
}

// RecordingConfig holds settings related to the recorder output.
type RecordingConfig struct {
	Format    string `yaml:"format"`     // Container format, "avi" only.
	Save      bool   `yaml:"save"`       // Also write each artifact to OutputDir.
	OutputDir string `yaml:"output_dir"` // Directory for saved artifacts.
}

// ServerConfig holds settings for the local UI control surface.
type ServerConfig struct {
	Address       string        `yaml:"address"`        // Listen address for HTTP and WebSocket.
	CommandRate   float64       `yaml:"command_rate"`   // Inbound commands per second.
	CommandBurst  int           `yaml:"command_burst"`  // Inbound command burst.
	MeterInterval time.Duration `yaml:"meter_interval"` // Minimum interval between level meter events.
	SpectrumUDP   string        `yaml:"spectrum_udp"`   // Optional "host:port" receiving the meter spectrum.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debug:    DefaultVerbosity,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
			FFTWindow:       DefaultFFTWindow,
			MeterSize:       DefaultMeterSize,
			GateThreshold:   DefaultGateThreshold,
		},
		Video: VideoConfig{
			Width:       DefaultWidth,
			Height:      DefaultHeight,
			Camera:      DefaultCamera,
			CameraFPS:   DefaultCameraFPS,
			DrawRate:    DefaultDrawRate,
			CaptureFPS:  DefaultCaptureFPS,
			JPEGQuality: DefaultJPEGQuality,
			Background:  DefaultBackground,
		},
		Recording: RecordingConfig{
			Format:    DefaultFormat,
			Save:      DefaultSave,
			OutputDir: DefaultOutputDir,
		},
		Server: ServerConfig{
			Address:       DefaultAddress,
			CommandRate:   DefaultCommandRate,
			CommandBurst:  DefaultCommandBurst,
			MeterInterval: DefaultMeterInterval,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("studio.yaml", "config.yaml"). If no file is found, it
// uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"studio.yaml",
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against the engine limits.
func (c *Config) Validate() error {
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f out of range [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d out of range [1, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > MaxChannels {
		return fmt.Errorf("audio.input_channels %d out of range [1, %d]", c.Audio.InputChannels, MaxChannels)
	}
	if n := c.Audio.MeterSize; n < 2 || n&(n-1) != 0 {
		return fmt.Errorf("audio.meter_size must be a power of 2, got %d", n)
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 {
		return fmt.Errorf("audio.gate_threshold %.3f out of range [0, 1]", c.Audio.GateThreshold)
	}
	if c.Video.Width <= 0 || c.Video.Width > MaxDimension || c.Video.Height <= 0 || c.Video.Height > MaxDimension {
		return fmt.Errorf("video size %dx%d out of range (max %d)", c.Video.Width, c.Video.Height, MaxDimension)
	}
	if c.Video.CameraFPS <= 0 || c.Video.DrawRate <= 0 || c.Video.CaptureFPS <= 0 {
		return fmt.Errorf("video rates must be positive (camera_fps=%d draw_rate=%d capture_fps=%d)",
			c.Video.CameraFPS, c.Video.DrawRate, c.Video.CaptureFPS)
	}
	if c.Video.JPEGQuality < 1 || c.Video.JPEGQuality > 100 {
		return fmt.Errorf("video.jpeg_quality %d out of range [1, 100]", c.Video.JPEGQuality)
	}
	if !strings.EqualFold(c.Recording.Format, DefaultFormat) {
		return fmt.Errorf("recording.format %q not supported, only %q", c.Recording.Format, DefaultFormat)
	}
	if c.Recording.Save && c.Recording.OutputDir == "" {
		return fmt.Errorf("recording.output_dir must be set when recording.save is enabled")
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must be set")
	}
	if !strings.Contains(c.Server.Address, ":") {
		return fmt.Errorf("server.address '%s' appears invalid (missing port?)", c.Server.Address)
	}
	if c.Server.CommandRate <= 0 || c.Server.CommandBurst <= 0 {
		return fmt.Errorf("server.command_rate and server.command_burst must be positive")
	}
	return nil
}

// applyEnvOverrides applies ENV_* variables on top of defaults or file values.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok && val != "" {
		cfg.LogLevel = val
	}
	// ENV_SERVER_ADDRESS
	if val, ok := os.LookupEnv("ENV_SERVER_ADDRESS"); ok && val != "" {
		cfg.Server.Address = val
	}
	// ENV_SPECTRUM_UDP
	if val, ok := os.LookupEnv("ENV_SPECTRUM_UDP"); ok {
		cfg.Server.SpectrumUDP = val
	}
	// ENV_MIC_FILE
	if val, ok := os.LookupEnv("ENV_MIC_FILE"); ok {
		cfg.Audio.InputFile = val
	}
	// ENV_CAMERA
	if val, ok := os.LookupEnv("ENV_CAMERA"); ok && val != "" {
		cfg.Video.Camera = val
	}
	// ENV_RECORDING_SAVE
	if val, ok := os.LookupEnv("ENV_RECORDING_SAVE"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Recording.Save = bVal
		}
	}
	// ENV_RECORDING_OUTPUT_DIR
	if val, ok := os.LookupEnv("ENV_RECORDING_OUTPUT_DIR"); ok && val != "" {
		cfg.Recording.OutputDir = val
	}
}
