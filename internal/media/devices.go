package media

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"studio/internal/config"
	applog "studio/internal/log"
)

// UserMediaOptions selects the tracks GetUserMedia should open. A nil
// constraint means the track is not requested.
type UserMediaOptions struct {
	Video *VideoConstraints
	Audio *AudioConstraints
}

// VideoConstraints configures the camera.
type VideoConstraints struct {
	Camera    string // "pattern" or a still image path
	Width     int
	Height    int
	FrameRate int
}

// AudioConstraints configures the microphone.
type AudioConstraints struct {
	DeviceID        int    // PortAudio device index, -1 for the default input
	InputFile       string // replay a WAV file instead of opening a device
	SampleRate      float64
	ChannelCount    int
	FramesPerBuffer int
	LowLatency      bool
}

// Provider opens concrete capture devices.
type Provider interface {
	OpenCamera(ctx context.Context, c *VideoConstraints) (VideoTrack, error)
	OpenMicrophone(ctx context.Context, c *AudioConstraints) (AudioTrack, error)
}

// MediaAccessError reports that a requested device was denied or could not
// be opened. No stream is returned alongside it.
type MediaAccessError struct {
	Kind Kind
	Err  error
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("media access denied (%s): %v", e.Kind, e.Err)
}

func (e *MediaAccessError) Unwrap() error { return e.Err }

// Cause lets errors.Cause reach the device error.
func (e *MediaAccessError) Cause() error { return e.Err }

// Devices is the entry point for acquiring capture streams.
type Devices struct {
	provider Provider
}

// NewDevices returns Devices backed by provider. A nil provider selects the
// built in camera and microphone providers.
func NewDevices(provider Provider) *Devices {
	if provider == nil {
		provider = DefaultProvider{}
	}
	return &Devices{provider: provider}
}

// GetUserMedia opens the requested camera and microphone. A failure on
// either releases whatever was already opened and returns a
// *MediaAccessError. The request is not retried.
func (d *Devices) GetUserMedia(ctx context.Context, opts UserMediaOptions) (*Stream, error) {
	if opts.Video == nil && opts.Audio == nil {
		return nil, &MediaAccessError{Kind: KindVideo, Err: errors.New("no tracks requested")}
	}

	stream := NewStream()

	if opts.Video != nil {
		if err := ctx.Err(); err != nil {
			return nil, &MediaAccessError{Kind: KindVideo, Err: err}
		}
		video, err := d.provider.OpenCamera(ctx, opts.Video)
		if err != nil {
			applog.Errorf("Media: camera unavailable: %v", err)
			return nil, &MediaAccessError{Kind: KindVideo, Err: errors.Wrap(err, "open camera")}
		}
		stream.AddTrack(video)
	}

	if opts.Audio != nil {
		if err := ctx.Err(); err != nil {
			stream.Close()
			return nil, &MediaAccessError{Kind: KindAudio, Err: err}
		}
		mic, err := d.provider.OpenMicrophone(ctx, opts.Audio)
		if err != nil {
			stream.Close()
			applog.Errorf("Media: microphone unavailable: %v", err)
			return nil, &MediaAccessError{Kind: KindAudio, Err: errors.Wrap(err, "open microphone")}
		}
		stream.AddTrack(mic)
	}

	applog.Infof("Media: acquired %s with %d track(s)", stream.ID(), len(stream.Tracks()))
	return stream, nil
}

// DefaultProvider opens the synthetic or still image camera and either a
// PortAudio input or a WAV file microphone.
type DefaultProvider struct{}

// OpenCamera implements Provider.
func (DefaultProvider) OpenCamera(_ context.Context, c *VideoConstraints) (VideoTrack, error) {
	if c.Camera == "" || c.Camera == config.CameraPattern {
		return NewPatternCamera(c.Width, c.Height, c.FrameRate), nil
	}
	cam, err := OpenImageCamera(c.Camera)
	if err != nil {
		return nil, err
	}
	return cam, nil
}

// OpenMicrophone implements Provider.
func (DefaultProvider) OpenMicrophone(ctx context.Context, c *AudioConstraints) (AudioTrack, error) {
	if c.InputFile != "" {
		mic, err := OpenFileMicrophone(ctx, c.InputFile, c.FramesPerBuffer)
		if err != nil {
			return nil, err
		}
		return mic, nil
	}
	mic, err := OpenPortAudioMicrophone(c)
	if err != nil {
		return nil, err
	}
	return mic, nil
}
