// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Video.CaptureFPS != DefaultCaptureFPS {
		t.Errorf("capture fps: got %d, want %d", cfg.Video.CaptureFPS, DefaultCaptureFPS)
	}
	if cfg.Recording.Save {
		t.Error("artifacts should be playback only by default")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeTempConfig(t, `
log_level: debug
audio:
  sample_rate: 48000
  input_channels: 2
video:
  width: 640
  height: 360
  camera: ./logo.png
server:
  address: ":9000"
  meter_interval: 100ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.InputChannels != 2 {
		t.Errorf("audio: got %+v", cfg.Audio)
	}
	if cfg.Video.Width != 640 || cfg.Video.Height != 360 || cfg.Video.Camera != "./logo.png" {
		t.Errorf("video: got %+v", cfg.Video)
	}
	// Untouched keys keep their defaults.
	if cfg.Video.DrawRate != DefaultDrawRate {
		t.Errorf("draw rate: got %d, want %d", cfg.Video.DrawRate, DefaultDrawRate)
	}
	if cfg.Server.MeterInterval != 100*time.Millisecond {
		t.Errorf("meter interval: got %s", cfg.Server.MeterInterval)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_SERVER_ADDRESS", "0.0.0.0:7000")
	t.Setenv("ENV_MIC_FILE", "voice.wav")
	t.Setenv("ENV_RECORDING_SAVE", "true")
	t.Setenv("ENV_RECORDING_OUTPUT_DIR", "/tmp/out")

	path := writeTempConfig(t, "server:\n  address: \":9000\"\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != "0.0.0.0:7000" {
		t.Errorf("address: got %q", cfg.Server.Address)
	}
	if cfg.Audio.InputFile != "voice.wav" {
		t.Errorf("input file: got %q", cfg.Audio.InputFile)
	}
	if !cfg.Recording.Save || cfg.Recording.OutputDir != "/tmp/out" {
		t.Errorf("recording: got %+v", cfg.Recording)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		desc    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"device below default", func(c *Config) { c.Audio.InputDevice = -2 }, "input_device"},
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 4000 }, "sample_rate"},
		{"too many channels", func(c *Config) { c.Audio.InputChannels = 6 }, "input_channels"},
		{"meter not pow2", func(c *Config) { c.Audio.MeterSize = 500 }, "meter_size"},
		{"gate above full scale", func(c *Config) { c.Audio.GateThreshold = 1.5 }, "gate_threshold"},
		{"zero width", func(c *Config) { c.Video.Width = 0 }, "video size"},
		{"zero capture", func(c *Config) { c.Video.CaptureFPS = 0 }, "video rates"},
		{"bad quality", func(c *Config) { c.Video.JPEGQuality = 101 }, "jpeg_quality"},
		{"other container", func(c *Config) { c.Recording.Format = "webm" }, "not supported"},
		{"save without dir", func(c *Config) { c.Recording.Save = true; c.Recording.OutputDir = "" }, "output_dir"},
		{"address without port", func(c *Config) { c.Server.Address = "localhost" }, "missing port"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
