package media

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"studio/internal/config"
	applog "studio/internal/log"
)

// PortAudio entry points, swapped out in tests.
var (
	paLibInitialize             = portaudio.Initialize
	paLibTerminate              = portaudio.Terminate
	paLibDevicesFunc            = portaudio.Devices
	paLibDefaultInputDeviceFunc = portaudio.DefaultInputDevice
	paDevicesFunc               = paDevices
	paOpenInputFunc             = openInputStream
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return errors.Wrap(err, "failed to initialize PortAudio")
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return errors.Wrap(err, "failed to terminate PortAudio")
	}
	return nil
}

// InputDevice retrieves the audio input device for the given device ID.
// If deviceID is MinDeviceID (-1), returns the system default input device.
// Returns an error if the device ID is invalid, no such device exists or it
// has no input channels.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	if deviceID == config.MinDeviceID {
		device, err := paLibDefaultInputDeviceFunc()
		if err != nil {
			return nil, err
		}
		return device, nil
	}

	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxInputChannels <= 0 {
		return nil, fmt.Errorf("device %d (%s) does not support input", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// paDevices returns all available PortAudio devices, never a nil slice on
// success.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}

type inputStream interface {
	Start() error
	Stop() error
	Close() error
}

func openInputStream(params portaudio.StreamParameters, callback func(in []int16)) (inputStream, error) {
	return portaudio.OpenStream(params, callback)
}

// OpenPortAudioMicrophone opens a PortAudio input stream and publishes each
// buffer as 16-bit PCM. PortAudio is initialised for the lifetime of the
// track and terminated when it stops.
func OpenPortAudioMicrophone(c *AudioConstraints) (*AudioFeed, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	device, err := InputDevice(c.DeviceID)
	if err != nil {
		_ = Terminate()
		return nil, err
	}

	channels := c.ChannelCount
	if channels <= 0 {
		channels = 1
	}
	if channels > device.MaxInputChannels {
		_ = Terminate()
		return nil, fmt.Errorf("device %s supports %d input channels, %d requested",
			device.Name, device.MaxInputChannels, channels)
	}

	latency := device.DefaultHighInputLatency
	if c.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	format := &audio.Format{NumChannels: channels, SampleRate: int(c.SampleRate)}
	samples := &audio.IntBuffer{
		Format:         format,
		Data:           make([]int, c.FramesPerBuffer*channels),
		SourceBitDepth: 16,
	}

	var (
		mu     sync.Mutex
		stream inputStream
	)
	feed := NewAudioFeed("microphone", format, func() {
		mu.Lock()
		defer mu.Unlock()
		if stream == nil {
			return
		}
		if err := stream.Stop(); err != nil {
			applog.Warnf("Media: stopping input stream: %v", err)
		}
		if err := stream.Close(); err != nil {
			applog.Warnf("Media: closing input stream: %v", err)
		}
		stream = nil
		if err := Terminate(); err != nil {
			applog.Warnf("Media: %v", err)
		}
	})

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: channels,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: c.FramesPerBuffer,
		SampleRate:      c.SampleRate,
	}

	s, err := paOpenInputFunc(params, func(in []int16) {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if cap(samples.Data) < len(in) {
			samples.Data = make([]int, len(in))
		}
		samples.Data = samples.Data[:len(in)]
		for i, v := range in {
			samples.Data[i] = int(v)
		}
		feed.Publish(samples)
	})
	if err != nil {
		_ = Terminate()
		return nil, errors.Wrapf(err, "open input stream on %s", device.Name)
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		_ = Terminate()
		return nil, errors.Wrapf(err, "start input stream on %s", device.Name)
	}

	mu.Lock()
	stream = s
	mu.Unlock()

	applog.Infof("Media: microphone %q open (%d ch @ %.0f Hz, latency %s)",
		device.Name, channels, c.SampleRate, latency.Round(time.Microsecond))
	return feed, nil
}
