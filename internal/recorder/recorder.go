// Package recorder turns a video + audio stream into a sequence of encoded
// chunks and assembles them into a playable AVI artifact.
//
// A Recorder is Idle until Start. While Recording it captures one JPEG frame
// per tick of the video track's frame rate and converts every block published
// on the audio track to 16-bit PCM. Each chunk is handed to OnData as soon as
// it is produced. Stop is always legal; on a Recorder that was recording it
// waits for the capture goroutine and the audio subscription to finish and
// then calls OnStop, so OnStop observes every chunk the recorder will ever
// emit for that take.
package recorder

import (
	"bytes"
	"image/jpeg"
	"io"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/pkg/errors"

	"studio/internal/container/avi"
	applog "studio/internal/log"
	"studio/internal/media"
)

// Kind tells video chunks from audio chunks.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "video"
}

// Chunk is one unit of encoded media: a JPEG frame or a block of
// little-endian PCM16 samples.
type Chunk struct {
	Kind      Kind
	Data      []byte
	Timestamp time.Duration
}

// State of the recorder.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Indicator is the on-screen "recording" marker.
type Indicator interface {
	ShowRecording()
	HideRecording()
}

// Playback is a surface that plays finished artifacts.
type Playback interface {
	SetSource(a *Artifact)
}

// JPEGEncoder is implemented by video tracks that can encode their current
// frame without an intermediate copy.
type JPEGEncoder interface {
	EncodeJPEG(w io.Writer, quality int) error
}

// Options configure a Recorder.
type Options struct {
	// FPS overrides the video track's frame rate when positive.
	FPS         int
	JPEGQuality int
	OnData      func(Chunk)
	OnStop      func()
	Indicator   Indicator
}

// Recorder records one video track and at most one audio track.
type Recorder struct {
	video media.VideoTrack
	audio media.AudioTrack
	opts  Options
	cfg   avi.Config

	mu          sync.Mutex
	state       State
	started     time.Time
	cancelAudio func()
	done        chan struct{}
	wg          sync.WaitGroup

	// emitMu keeps OnData calls from the capture goroutine and the audio
	// callback from interleaving.
	emitMu sync.Mutex
}

// New binds a recorder to stream. The stream needs a video track; its first
// audio track, if any, is recorded alongside.
func New(stream *media.Stream, opts Options) (*Recorder, error) {
	if stream == nil {
		return nil, errors.New("recorder: nil stream")
	}
	videos := stream.VideoTracks()
	if len(videos) == 0 {
		return nil, errors.New("recorder: stream has no video track")
	}
	r := &Recorder{video: videos[0], opts: opts}
	if audios := stream.AudioTracks(); len(audios) > 0 {
		r.audio = audios[0]
	}

	if r.opts.FPS <= 0 {
		r.opts.FPS = r.video.FrameRate()
	}
	if r.opts.FPS <= 0 {
		r.opts.FPS = 30
	}
	if r.opts.JPEGQuality <= 0 || r.opts.JPEGQuality > 100 {
		r.opts.JPEGQuality = jpeg.DefaultQuality
	}

	w, h := r.video.Size()
	r.cfg = avi.Config{Width: w, Height: h, FPS: r.opts.FPS}
	if r.audio != nil {
		if f := r.audio.Format(); f != nil {
			r.cfg.SampleRate = f.SampleRate
			r.cfg.Channels = f.NumChannels
		}
	}
	return r, nil
}

// Container returns the AVI layout recorded chunks belong to.
func (r *Recorder) Container() avi.Config { return r.cfg }

// MimeType of the artifacts this recorder produces.
func (r *Recorder) MimeType() string { return avi.MimeType }

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins recording. Starting a recorder that is already recording does
// nothing.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording {
		applog.Debugf("Recorder: Start called while already recording.")
		return
	}
	if r.opts.Indicator != nil {
		r.opts.Indicator.ShowRecording()
	}
	r.state = Recording
	r.started = time.Now()
	r.done = make(chan struct{})

	if r.audio != nil {
		r.cancelAudio = r.audio.Subscribe(func(buf *audio.IntBuffer) {
			if buf == nil || len(buf.Data) == 0 {
				return
			}
			r.emit(KindAudio, avi.EncodePCM16(buf.Data))
		})
	}

	r.wg.Add(1)
	go r.captureLoop(r.done)
	applog.Infof("Recorder: started (%dx%d @ %d fps, audio %d Hz x %d)",
		r.cfg.Width, r.cfg.Height, r.cfg.FPS, r.cfg.SampleRate, r.cfg.Channels)
}

// Stop finalizes the current take and hides the indicator. On an idle
// recorder it only hides the indicator; OnStop is not called.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.opts.Indicator != nil {
		r.opts.Indicator.HideRecording()
	}
	if r.state != Recording {
		r.mu.Unlock()
		applog.Debugf("Recorder: Stop called while idle.")
		return
	}

	r.state = Idle
	if r.cancelAudio != nil {
		r.cancelAudio()
		r.cancelAudio = nil
	}
	close(r.done)
	r.wg.Wait()
	took := time.Since(r.started)
	r.mu.Unlock()

	applog.Infof("Recorder: stopped after %s", took.Round(time.Millisecond))
	if r.opts.OnStop != nil {
		r.opts.OnStop()
	}
}

func (r *Recorder) captureLoop(done <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(r.opts.FPS))
	defer ticker.Stop()

	r.captureFrame()
	for {
		select {
		case <-ticker.C:
			r.captureFrame()
		case <-done:
			return
		}
	}
}

func (r *Recorder) captureFrame() {
	var buf bytes.Buffer
	var err error
	if enc, ok := r.video.(JPEGEncoder); ok {
		err = enc.EncodeJPEG(&buf, r.opts.JPEGQuality)
	} else if frame := r.video.Frame(); frame != nil {
		err = jpeg.Encode(&buf, frame, &jpeg.Options{Quality: r.opts.JPEGQuality})
	} else {
		return
	}
	if err != nil {
		applog.Warnf("Recorder: dropping frame: %v", err)
		return
	}
	r.emit(KindVideo, buf.Bytes())
}

func (r *Recorder) emit(kind Kind, data []byte) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.opts.OnData == nil {
		return
	}
	r.opts.OnData(Chunk{Kind: kind, Data: data, Timestamp: time.Since(r.started)})
}
