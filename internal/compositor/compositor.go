// SPDX-License-Identifier: MIT
package compositor

import (
	"sync"
	"time"

	"github.com/gogpu/gg"

	"studio/internal/canvas"
	"studio/internal/layer"
	applog "studio/internal/log"
	"studio/internal/media"
)

// DefaultDrawRate is the draw loop frequency when none is configured.
const DefaultDrawRate = 60

// FrameObserver is told about every completed draw cycle.
type FrameObserver interface {
	FrameDrawn(layers int, took time.Duration)
}

// Compositor paints the layer stack onto the shared surface and owns the
// playback drive loop. Draw cycles never overlap: the loop is a single
// goroutine that finishes each tick before taking the next.
type Compositor struct {
	surface  *canvas.Surface
	registry *layer.Registry
	interval time.Duration
	observer FrameObserver

	mu       sync.Mutex
	source   media.LiveSource
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New returns a compositor drawing registry onto surface drawRate times a
// second.
func New(surface *canvas.Surface, registry *layer.Registry, drawRate int) *Compositor {
	if drawRate <= 0 {
		drawRate = DefaultDrawRate
		applog.Warnf("Compositor: invalid draw rate, defaulting to %d Hz", drawRate)
	}
	return &Compositor{
		surface:  surface,
		registry: registry,
		interval: time.Second / time.Duration(drawRate),
	}
}

// Surface returns the drawing surface.
func (c *Compositor) Surface() *canvas.Surface { return c.surface }

// Registry returns the layer stack.
func (c *Compositor) Registry() *layer.Registry { return c.registry }

// SetObserver installs o to receive draw timings.
func (c *Compositor) SetObserver(o FrameObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// SetSource sets the live video source paused and resumed by Stop and Play.
func (c *Compositor) SetSource(src media.LiveSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = src
}

// Draw runs one draw cycle: clear, then every active layer in stack order.
// It returns false once the surface is closed.
func (c *Compositor) Draw() bool {
	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()

	start := time.Now()
	var n int
	ok := c.surface.Frame(func(*gg.Context) {
		n = c.registry.Draw()
	})
	if ok && observer != nil {
		observer.FrameDrawn(n, time.Since(start))
	}
	return ok
}

// Play resumes a paused live source and starts the draw loop if it is not
// already running. Calling Play twice does not start a second loop.
func (c *Compositor) Play() {
	c.mu.Lock()
	if c.source != nil && c.source.Paused() {
		c.source.Resume()
	}
	if c.ticker != nil {
		c.mu.Unlock()
		applog.Debugf("Compositor: Play called but draw loop already running.")
		return
	}

	c.ticker = time.NewTicker(c.interval)
	c.doneChan = make(chan struct{})
	c.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on c.ticker/c.doneChan
	ticker := c.ticker
	doneChan := c.doneChan
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		applog.Infof("Compositor: draw loop started (Interval: %s)", c.interval)
		for {
			select {
			case <-ticker.C:
				if !c.Draw() {
					applog.Warnf("Compositor: surface closed, draw loop exiting.")
					return
				}
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop pauses the live source and cancels the draw loop, waiting for the
// current tick to finish. Stopping a stopped compositor is a no-op.
func (c *Compositor) Stop() {
	c.mu.Lock()
	if c.source != nil {
		c.source.Pause()
	}
	if c.ticker == nil {
		c.mu.Unlock()
		applog.Debugf("Compositor: Stop called but draw loop not running.")
		return
	}

	c.stopOnce.Do(func() {
		close(c.doneChan)
		c.ticker.Stop()
		c.ticker = nil
	})
	c.mu.Unlock()

	c.wg.Wait()
	applog.Infof("Compositor: draw loop stopped.")
}

// Playing reports whether the draw loop is running.
func (c *Compositor) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}
