package compositor

import (
	"image"

	"github.com/gogpu/gg"

	"studio/internal/layer"
	"studio/internal/media"
)

// VideoRenderer draws the latest frame of track stretched over the whole
// surface. A frame is converted once and reused until the track produces a
// new one.
func VideoRenderer(track media.VideoTrack) layer.RenderFunc {
	var (
		last image.Image
		buf  *gg.ImageBuf
	)
	return func(l *layer.Layer) {
		dc := l.Context()
		if dc == nil {
			return
		}
		frame := track.Frame()
		if frame == nil {
			return
		}
		if frame != last {
			buf = gg.ImageBufFromImage(frame)
			last = frame
		}
		dc.DrawImageEx(buf, gg.DrawImageOptions{
			DstWidth:      float64(l.Surface.Width()),
			DstHeight:     float64(l.Surface.Height()),
			Interpolation: gg.InterpBilinear,
			Opacity:       1.0,
			BlendMode:     gg.BlendNormal,
		})
	}
}

// ImageRenderer draws a layer's ImageOverlay payload at its position and
// natural size. Layers without an overlay draw nothing.
func ImageRenderer(l *layer.Layer) {
	dc := l.Context()
	if dc == nil {
		return
	}
	o, ok := l.Payload.(layer.ImageOverlay)
	if !ok || o.Image == nil {
		return
	}
	dc.DrawImageEx(o.Image, gg.DrawImageOptions{
		X:             o.X,
		Y:             o.Y,
		DstWidth:      float64(o.Width),
		DstHeight:     float64(o.Height),
		Interpolation: gg.InterpBilinear,
		Opacity:       1.0,
		BlendMode:     gg.BlendNormal,
	})
}

// NewImageOverlay prepares img for drawing at the surface origin. Width and
// Height are the natural decoded dimensions.
func NewImageOverlay(name string, img image.Image) layer.ImageOverlay {
	b := img.Bounds()
	return layer.ImageOverlay{
		Name:   name,
		Image:  gg.ImageBufFromImage(img),
		Width:  b.Dx(),
		Height: b.Dy(),
	}
}
