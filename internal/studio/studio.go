// Package studio ties the compositor, the microphone gain stage and the
// recorder into one session driven by commands on the bus.
package studio

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"

	"studio/internal/audio"
	"studio/internal/bus"
	"studio/internal/compositor"
	"studio/internal/config"
	"studio/internal/layer"
	applog "studio/internal/log"
	"studio/internal/media"
	"studio/internal/recorder"
)

// LayerTag is how a layer is shown in the layer list.
type LayerTag struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// LayerList is the user facing list of layers.
type LayerList interface {
	Add(tag LayerTag)
	Remove(id int)
}

// VolumeIndicator shows the microphone gain as a fill percentage.
type VolumeIndicator interface {
	SetVolume(percent int)
}

// Meter listens to the processed microphone signal of each session.
type Meter interface {
	Attach(track media.AudioTrack) (detach func())
}

// RecordingObserver is told about recorder output.
type RecordingObserver interface {
	ChunkRecorded(kind string, bytes int)
	ArtifactCreated(a *recorder.Artifact)
}

// ImageUpload is the payload of bus.ImageUploaded.
type ImageUpload struct {
	Name   string
	Image  image.Image
	Width  int
	Height int
}

// Options wires a Studio to its collaborators. Only Compositor, Devices
// and Config are required.
type Options struct {
	Config     *config.Config
	Bus        *bus.Bus
	Devices    *media.Devices
	Compositor *compositor.Compositor

	LayerList LayerList
	Indicator recorder.Indicator
	Volume    VolumeIndicator
	Playback  recorder.Playback
	Meter     Meter
	Observer  RecordingObserver
}

// session is everything acquired by one StartSession.
type session struct {
	stream     *media.Stream
	graph      *audio.Graph
	recordable *media.Stream
	recorder   *recorder.Recorder
	detach     func()
}

// Studio is the running application. Every operation is serialized by mu.
type Studio struct {
	cfg       *config.Config
	bus       *bus.Bus
	devices   *media.Devices
	comp      *compositor.Compositor
	layers    LayerList
	indicator recorder.Indicator
	playback  recorder.Playback
	meter     Meter
	observer  RecordingObserver
	gain      *audio.GainControl

	mu         sync.Mutex
	session    *session
	videoLayer int
	hasVideo   bool

	// chunkMu guards the take being recorded. It is separate from mu since
	// the recorder delivers chunks while Stop holds mu.
	chunkMu  sync.Mutex
	chunks   []recorder.Chunk
	artifact *recorder.Artifact
}

// New builds a Studio and, if a bus is given, subscribes it to every UI
// action.
func New(opts Options) (*Studio, error) {
	if opts.Compositor == nil {
		return nil, errors.New("studio: compositor is required")
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Devices == nil {
		opts.Devices = media.NewDevices(nil)
	}
	s := &Studio{
		cfg:       opts.Config,
		bus:       opts.Bus,
		devices:   opts.Devices,
		comp:      opts.Compositor,
		layers:    opts.LayerList,
		indicator: opts.Indicator,
		playback:  opts.Playback,
		meter:     opts.Meter,
		observer:  opts.Observer,
	}
	volume := opts.Volume
	s.gain = audio.NewGainControl(func(percent int) {
		if volume != nil {
			volume.SetVolume(percent)
		}
	})
	if s.bus != nil {
		s.subscribe(s.bus)
	}
	return s, nil
}

// Registry returns the layer stack.
func (s *Studio) Registry() *layer.Registry { return s.comp.Registry() }

// Compositor returns the compositor.
func (s *Studio) Compositor() *compositor.Compositor { return s.comp }

// Gain returns the current microphone gain.
func (s *Studio) Gain() float64 { return s.gain.Gain() }

// StartSession requests camera and microphone and wires a new recording
// session: the camera is drawn as the bottom layer, the microphone runs
// through a fresh gain node and the recorder is bound to the composited
// surface plus the processed audio. A previous session is released first.
// If the devices cannot be opened the previous session is left in place.
func (s *Studio) StartSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, err := s.devices.GetUserMedia(ctx, s.userMediaOptions())
	if err != nil {
		applog.Errorf("Studio: could not start session: %v", err)
		return err
	}

	s.releaseLocked()

	if videos := stream.VideoTracks(); len(videos) > 0 {
		s.bindCameraLocked(videos[0])
	}

	sess := &session{stream: stream}
	recordable := media.NewStream(s.comp.CaptureTrack(s.cfg.Video.CaptureFPS))
	if audios := stream.AudioTracks(); len(audios) > 0 {
		sess.graph = audio.NewGraph(audios[0])
		s.gain.Bind(sess.graph.Gain)
		recordable.AddTrack(sess.graph.Output())
		if s.meter != nil {
			sess.detach = s.meter.Attach(sess.graph.Output())
		}
	}
	sess.recordable = recordable

	var rec *recorder.Recorder
	rec, err = recorder.New(recordable, recorder.Options{
		FPS:         s.cfg.Video.CaptureFPS,
		JPEGQuality: s.cfg.Video.JPEGQuality,
		OnData:      s.appendChunk,
		OnStop:      func() { s.finalize(rec) },
		Indicator:   s.indicator,
	})
	if err != nil {
		s.session = sess
		s.releaseLocked()
		return errors.Wrap(err, "bind recorder")
	}
	sess.recorder = rec
	s.session = sess

	applog.Infof("Studio: session started (stream %s, recording %s)", stream.ID(), recordable.ID())
	return nil
}

func (s *Studio) userMediaOptions() media.UserMediaOptions {
	a, v := s.cfg.Audio, s.cfg.Video
	return media.UserMediaOptions{
		Video: &media.VideoConstraints{
			Camera:    v.Camera,
			Width:     v.Width,
			Height:    v.Height,
			FrameRate: v.CameraFPS,
		},
		Audio: &media.AudioConstraints{
			DeviceID:        a.InputDevice,
			InputFile:       a.InputFile,
			SampleRate:      a.SampleRate,
			ChannelCount:    a.InputChannels,
			FramesPerBuffer: a.FramesPerBuffer,
			LowLatency:      a.LowLatency,
		},
	}
}

// bindCameraLocked points the camera layer at track, creating the layer on
// the first session.
func (s *Studio) bindCameraLocked(track media.VideoTrack) {
	if live, ok := track.(media.LiveSource); ok {
		s.comp.SetSource(live)
	}
	render := compositor.VideoRenderer(track)
	reg := s.comp.Registry()
	if s.hasVideo && reg.SetRender(s.videoLayer, render) {
		return
	}
	l, err := reg.Add(render, nil)
	if err != nil {
		applog.Errorf("Studio: could not add camera layer: %v", err)
		return
	}
	s.videoLayer = l.ID
	s.hasVideo = true
}

// releaseLocked tears the current session down: an active take is finished
// first so nothing recorded is lost.
func (s *Studio) releaseLocked() {
	sess := s.session
	if sess == nil {
		return
	}
	s.session = nil
	if sess.recorder != nil {
		sess.recorder.Stop()
	}
	if sess.detach != nil {
		sess.detach()
	}
	s.comp.SetSource(nil)
	sess.recordable.Close()
	if sess.graph != nil {
		sess.graph.Close()
	}
	s.gain.Bind(nil)
	sess.stream.Close()
	applog.Debugf("Studio: released stream %s", sess.stream.ID())
}

// Close stops playback and releases the session.
func (s *Studio) Close() {
	s.comp.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

// Recording reports whether a take is in progress.
func (s *Studio) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil && s.session.recorder.State() == recorder.Recording
}

// Buffered returns the number of chunks in the current take.
func (s *Studio) Buffered() int {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	return len(s.chunks)
}

// Artifact returns the last finished recording, or nil.
func (s *Studio) Artifact() *recorder.Artifact {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	return s.artifact
}

func (s *Studio) appendChunk(c recorder.Chunk) {
	s.chunkMu.Lock()
	s.chunks = append(s.chunks, c)
	s.chunkMu.Unlock()
	if s.observer != nil {
		s.observer.ChunkRecorded(c.Kind.String(), len(c.Data))
	}
}

// finalize assembles the buffered take into an artifact and hands it to the
// playback surface. An empty take leaves playback untouched.
func (s *Studio) finalize(rec *recorder.Recorder) {
	s.chunkMu.Lock()
	chunks := s.chunks
	s.chunks = nil
	s.chunkMu.Unlock()

	if len(chunks) == 0 {
		applog.Debugf("Studio: nothing recorded.")
		return
	}
	a, err := recorder.Assemble(rec.Container(), chunks)
	if err != nil {
		applog.Errorf("Studio: could not assemble recording: %v", err)
		return
	}

	s.chunkMu.Lock()
	s.artifact = a
	s.chunkMu.Unlock()

	applog.Infof("Studio: recording %s ready (%d frames, %d audio bytes, %s)",
		a.ID, a.Frames, a.AudioBytes, a.Duration)
	if s.cfg.Recording.Save {
		if path, err := a.Save(s.cfg.Recording.OutputDir); err != nil {
			applog.Errorf("Studio: %v", err)
		} else {
			applog.Infof("Studio: saved %s", path)
		}
	}
	if s.observer != nil {
		s.observer.ArtifactCreated(a)
	}
	if s.playback != nil {
		s.playback.SetSource(a)
	}
}
