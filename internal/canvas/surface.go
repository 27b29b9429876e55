// Package canvas holds the shared drawing surface every layer paints into.
package canvas

import (
	"image"
	"image/draw"
	"io"
	"sync"

	"github.com/gogpu/gg"
	"github.com/pkg/errors"
)

// Surface wraps a software gg context. Frame runs a whole draw cycle under
// the surface lock; readers (capture, preview) take the same lock so they
// never observe a half composited frame.
type Surface struct {
	mu         sync.Mutex
	dc         *gg.Context
	background gg.RGBA
	width      int
	height     int
	frames     uint64
	closed     bool
}

// New creates a width x height surface cleared to background (hex colour,
// "#rrggbb"). An empty background means opaque black.
func New(width, height int, background string) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid surface size %dx%d", width, height)
	}
	bg := gg.Black
	if background != "" {
		bg = gg.Hex(background)
	}
	s := &Surface{
		dc:         gg.NewContext(width, height),
		background: bg,
		width:      width,
		height:     height,
	}
	s.dc.ClearWithColor(bg)
	return s, nil
}

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.width }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.height }

// Context returns the drawing context. It is only safe to use from inside a
// Frame callback.
func (s *Surface) Context() *gg.Context { return s.dc }

// Frame clears the surface to its background and runs paint with the lock
// held. It returns false if the surface was closed.
func (s *Surface) Frame(paint func(dc *gg.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.dc.ClearWithColor(s.background)
	if paint != nil {
		paint(s.dc)
	}
	s.frames++
	return true
}

// Frames returns how many frames have been painted.
func (s *Surface) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Snapshot returns a copy of the current pixels.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	src := s.dc.Image()
	s.mu.Unlock()

	if rgba, ok := src.(*image.RGBA); ok {
		// ToImage already hands back a fresh buffer.
		return rgba
	}
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// EncodeJPEG writes the current pixels as a JPEG frame.
func (s *Surface) EncodeJPEG(w io.Writer, quality int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dc.EncodeJPEG(w, quality); err != nil {
		return errors.Wrap(err, "encode surface frame")
	}
	return nil
}

// Close releases the drawing context. Further frames are ignored.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.dc.Close()
}
