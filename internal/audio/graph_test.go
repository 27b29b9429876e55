package audio

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/media"
)

var monoFormat = &audio.Format{NumChannels: 1, SampleRate: 8000}

func block(samples ...int) *audio.IntBuffer {
	return &audio.IntBuffer{Format: monoFormat, Data: samples, SourceBitDepth: 16}
}

func TestGainNodeScalesAndClamps(t *testing.T) {
	n := NewGainNode()
	assert.Equal(t, 1.0, n.Gain())

	out := n.Process(block(1000, -1000, math.MaxInt16))
	assert.Equal(t, []int{1000, -1000, math.MaxInt16}, out.Data)

	n.SetGain(0.5)
	out = n.Process(block(1000, -1001, 3))
	assert.Equal(t, []int{500, -501, 2}, out.Data)
	assert.Same(t, monoFormat, out.Format)

	n.SetGain(7)
	assert.Equal(t, 1.0, n.Gain())
	n.SetGain(-1)
	assert.Equal(t, 0.0, n.Gain())
	out = n.Process(block(math.MinInt16))
	assert.Equal(t, []int{0}, out.Data)
}

func TestGainNodeReusesBuffer(t *testing.T) {
	n := NewGainNode()
	in := block(make([]int, 512)...)
	n.Process(in)

	allocs := testing.AllocsPerRun(100, func() {
		n.Process(in)
	})
	assert.Zero(t, allocs)
}

func TestGraphRecordsOnlyProcessedAudio(t *testing.T) {
	mic := media.NewAudioFeed("mic", monoFormat, nil)
	g := NewGraph(mic)

	var got []int
	g.Output().Subscribe(func(buf *audio.IntBuffer) {
		got = append(got, buf.Data...)
	})
	require.NotEqual(t, mic.ID(), g.Output().ID())

	g.Gain.SetGain(0.5)
	mic.Publish(block(100, -100))
	assert.Equal(t, []int{50, -50}, got)
	assert.EqualValues(t, 1, g.Blocks())

	g.Close()
	g.Close()
	assert.Equal(t, 0, mic.Subscribers(), "graph detached from the source")
	assert.True(t, g.Destination.Stopped())
	assert.False(t, mic.Stopped(), "source belongs to the caller")

	mic.Publish(block(100))
	assert.Equal(t, []int{50, -50}, got)
}

func TestGainControlSteps(t *testing.T) {
	var percents []int
	c := NewGainControl(func(p int) { percents = append(percents, p) })
	node := NewGainNode()
	c.Bind(node)

	assert.Equal(t, 1.0, c.Increase(), "increase at 1.0 stays at 1.0")
	assert.Equal(t, 1.0, node.Gain())

	for i := 0; i < 3; i++ {
		c.Decrease()
	}
	assert.InDelta(t, 0.7, node.Gain(), 1e-12)
	assert.Equal(t, 70, c.Percent())

	for i := 0; i < 20; i++ {
		c.Decrease()
	}
	assert.Equal(t, 0.0, c.Gain(), "decrease at 0.0 stays at 0.0")
	assert.Equal(t, 0.0, node.Gain())

	assert.Equal(t, []int{100, 100, 90, 80, 70}, percents[:5])
	assert.Equal(t, 0, percents[len(percents)-1])
}

func TestGainControlStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := NewGainControl(nil)
	node := NewGainNode()
	c.Bind(node)

	for i := 0; i < 1000; i++ {
		var g float64
		if rng.Intn(2) == 0 {
			g = c.Increase()
		} else {
			g = c.Decrease()
		}
		if g < 0 || g > 1 {
			t.Fatalf("step %d: gain %v out of range", i, g)
		}
		assert.Equal(t, g, node.Gain())
	}
}

func TestGainControlBindAdoptsNodeGain(t *testing.T) {
	c := NewGainControl(nil)
	c.Decrease()
	c.Decrease()
	assert.InDelta(t, 0.8, c.Gain(), 1e-12)

	// A fresh session starts its gain node at unity.
	c.Bind(NewGainNode())
	assert.Equal(t, 1.0, c.Gain())

	c.Bind(nil)
	assert.InDelta(t, 0.9, c.Decrease(), 1e-12)
}
