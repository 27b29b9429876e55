// Package layer keeps the ordered stack of drawable layers. Layers later in
// the stack paint over earlier ones.
package layer

import (
	"fmt"

	"github.com/gogpu/gg"

	"studio/internal/canvas"
)

// RenderFunc paints one layer onto its surface.
type RenderFunc func(l *Layer)

// SetupFunc runs once on a new layer before it joins the stack.
type SetupFunc func(l *Layer)

// Layer is one visual element of the composite frame.
type Layer struct {
	ID      int
	Render  RenderFunc
	Active  bool
	Surface *canvas.Surface
	Payload any
}

// Context is the drawing context of the layer's surface. Only valid while
// the layer is being rendered.
func (l *Layer) Context() *gg.Context {
	if l.Surface == nil {
		return nil
	}
	return l.Surface.Context()
}

// ImageOverlay is the payload of an uploaded image layer.
type ImageOverlay struct {
	Name   string
	Image  *gg.ImageBuf
	Width  int
	Height int
	X, Y   float64
}

// DuplicateLayerError is returned when a layer id is already taken.
type DuplicateLayerError struct {
	ID int
}

func (e *DuplicateLayerError) Error() string {
	return fmt.Sprintf("layer %d already exists", e.ID)
}
