package media

import (
	"image"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gg"
	"github.com/pkg/errors"

	applog "studio/internal/log"
)

var colorBars = []gg.RGBA{
	gg.RGB(0.75, 0.75, 0.75),
	gg.RGB(0.75, 0.75, 0),
	gg.RGB(0, 0.75, 0.75),
	gg.RGB(0, 0.75, 0),
	gg.RGB(0.75, 0, 0.75),
	gg.RGB(0.75, 0, 0),
	gg.RGB(0, 0, 0.75),
}

// PatternSource is a synthetic camera: colour bars with a box sweeping
// across them, so paused and live output are easy to tell apart.
type PatternSource struct {
	id            string
	width, height int
	fps           int

	dc         *gg.Context
	frame      atomic.Pointer[image.Image]
	frameCount uint64
	paused     atomic.Bool

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPatternCamera starts a pattern source. Non-positive arguments fall back
// to 1280x720 at 30 fps.
func NewPatternCamera(width, height, fps int) *PatternSource {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if fps <= 0 {
		fps = 30
	}

	s := &PatternSource{
		id:     nextTrackID("camera"),
		width:  width,
		height: height,
		fps:    fps,
		dc:     gg.NewContext(width, height),
		done:   make(chan struct{}),
	}
	s.render()

	s.wg.Add(1)
	go s.generateLoop()
	return s
}

func (s *PatternSource) generateLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.paused.Load() {
				s.render()
			}
		}
	}
}

func (s *PatternSource) render() {
	w, h := float64(s.width), float64(s.height)
	barWidth := w / float64(len(colorBars))
	for i, c := range colorBars {
		s.dc.SetColor(c.Color())
		s.dc.DrawRectangle(float64(i)*barWidth, 0, barWidth+1, h)
		_ = s.dc.Fill()
	}

	size := h / 6
	period := int(w - size)
	if period < 1 {
		period = 1
	}
	x := float64((s.frameCount * 8) % uint64(period))
	s.dc.SetRGB(1, 1, 1)
	s.dc.DrawRectangle(x, (h-size)/2, size, size)
	_ = s.dc.Fill()

	img := s.dc.Image()
	s.frame.Store(&img)
	s.frameCount++
}

func (s *PatternSource) ID() string                { return s.id }
func (s *PatternSource) Kind() Kind                { return KindVideo }
func (s *PatternSource) Size() (width, height int) { return s.width, s.height }
func (s *PatternSource) FrameRate() int            { return s.fps }

// Frame implements VideoTrack.
func (s *PatternSource) Frame() image.Image {
	if p := s.frame.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *PatternSource) Pause()       { s.paused.Store(true) }
func (s *PatternSource) Resume()      { s.paused.Store(false) }
func (s *PatternSource) Paused() bool { return s.paused.Load() }

// Stop ends frame generation and waits for the generator to exit.
func (s *PatternSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		_ = s.dc.Close()
		applog.Debugf("Media: %s stopped after %d frames", s.id, s.frameCount)
	})
}

// ImageSource serves a single still image as a camera.
type ImageSource struct {
	id     string
	img    image.Image
	fps    int
	paused atomic.Bool
}

// OpenImageCamera decodes path and serves it as the camera frame.
func OpenImageCamera(path string) (*ImageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open camera image %s", path)
	}
	defer f.Close()

	img, _, err := DecodeImage(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode camera image %s", path)
	}
	return NewImageCamera(img), nil
}

// NewImageCamera serves img as the camera frame.
func NewImageCamera(img image.Image) *ImageSource {
	return &ImageSource{id: nextTrackID("camera"), img: img, fps: 30}
}

func (s *ImageSource) ID() string         { return s.id }
func (s *ImageSource) Kind() Kind         { return KindVideo }
func (s *ImageSource) FrameRate() int     { return s.fps }
func (s *ImageSource) Frame() image.Image { return s.img }
func (s *ImageSource) Stop()              {}
func (s *ImageSource) Pause()             { s.paused.Store(true) }
func (s *ImageSource) Resume()            { s.paused.Store(false) }
func (s *ImageSource) Paused() bool       { return s.paused.Load() }

// Size implements VideoTrack.
func (s *ImageSource) Size() (width, height int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}
