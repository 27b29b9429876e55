package compositor

import (
	"image"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"

	"studio/internal/canvas"
	"studio/internal/media"
)

var captureCounter atomic.Uint64

// ErrCaptureStopped is returned when encoding from a stopped capture track.
var ErrCaptureStopped = errors.New("capture track stopped")

// CaptureTrack exposes the composited surface as a video track.
type CaptureTrack struct {
	id      string
	surface *canvas.Surface
	fps     int
	stopped atomic.Bool
}

// CaptureStream captures the surface's output at fps frames per second and
// returns it as a single track stream.
func (c *Compositor) CaptureStream(fps int) *media.Stream {
	return media.NewStream(c.CaptureTrack(fps))
}

// CaptureTrack returns a video track reading from the surface.
func (c *Compositor) CaptureTrack(fps int) *CaptureTrack {
	if fps <= 0 {
		fps = 30
	}
	return &CaptureTrack{
		id:      "capture-" + strconv.FormatUint(captureCounter.Add(1), 10),
		surface: c.surface,
		fps:     fps,
	}
}

func (t *CaptureTrack) ID() string       { return t.id }
func (t *CaptureTrack) Kind() media.Kind { return media.KindVideo }
func (t *CaptureTrack) FrameRate() int   { return t.fps }
func (t *CaptureTrack) Stop()            { t.stopped.Store(true) }
func (t *CaptureTrack) Stopped() bool    { return t.stopped.Load() }

// Size implements media.VideoTrack.
func (t *CaptureTrack) Size() (width, height int) {
	return t.surface.Width(), t.surface.Height()
}

// Frame returns a copy of the surface, or nil once stopped.
func (t *CaptureTrack) Frame() image.Image {
	if t.stopped.Load() {
		return nil
	}
	return t.surface.Snapshot()
}

// EncodeJPEG writes the current surface straight to w as one JPEG frame.
func (t *CaptureTrack) EncodeJPEG(w io.Writer, quality int) error {
	if t.stopped.Load() {
		return ErrCaptureStopped
	}
	return t.surface.EncodeJPEG(w, quality)
}
