package audio

import (
	"math"
	"sync"
)

// GainStep is the change applied by one Increase or Decrease.
const GainStep = 0.1

// stepsPerUnit is the number of steps between silence and unity gain. The
// level is kept as an integer count of steps so repeated steps land exactly
// on 0 and 1.
const stepsPerUnit = 10

// GainControl drives the live gain node in fixed steps and reports the new
// level as a fill percentage.
type GainControl struct {
	mu       sync.Mutex
	steps    int
	node     *GainNode
	onChange func(percent int)
}

// NewGainControl returns a control at unity gain. onChange may be nil.
func NewGainControl(onChange func(percent int)) *GainControl {
	return &GainControl{steps: stepsPerUnit, onChange: onChange}
}

// Bind makes node the live gain node and adopts its gain as the current
// level. A nil node detaches the control.
func (c *GainControl) Bind(node *GainNode) {
	c.mu.Lock()
	c.node = node
	if node != nil {
		c.steps = int(math.Round(node.Gain() * stepsPerUnit))
	}
	percent := c.percentLocked()
	c.mu.Unlock()

	c.notify(percent)
}

// Increase raises the gain by one step, stopping at 1.0.
func (c *GainControl) Increase() float64 { return c.step(1) }

// Decrease lowers the gain by one step, stopping at 0.0.
func (c *GainControl) Decrease() float64 { return c.step(-1) }

func (c *GainControl) step(dir int) float64 {
	c.mu.Lock()
	steps := c.steps + dir
	if steps < 0 {
		steps = 0
	}
	if steps > stepsPerUnit {
		steps = stepsPerUnit
	}
	c.steps = steps
	gain := float64(steps) / stepsPerUnit
	if c.node != nil {
		c.node.SetGain(gain)
	}
	percent := c.percentLocked()
	c.mu.Unlock()

	c.notify(percent)
	return gain
}

// Gain returns the current level in [0, 1].
func (c *GainControl) Gain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.steps) / stepsPerUnit
}

// Percent returns the current level as the indicator fill, 0-100.
func (c *GainControl) Percent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.percentLocked()
}

func (c *GainControl) percentLocked() int {
	return c.steps * 100 / stepsPerUnit
}

func (c *GainControl) notify(percent int) {
	if c.onChange != nil {
		c.onChange(percent)
	}
}
