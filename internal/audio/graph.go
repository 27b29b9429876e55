// SPDX-License-Identifier: MIT
/*
Package audio implements the live gain stage between the microphone and the
recorder:

	SourceNode (raw mic track) -> GainNode -> DestinationNode (processed track)

Thread Safety:
  - The gain value is an atomic, so controls never block the capture thread
  - Buffers are pre-allocated and reused on the hot path
  - Only the processed track is ever handed to the recorder
*/
package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"

	"studio/internal/media"
)

// GainNode scales 16-bit PCM by a linear gain in [0, 1].
type GainNode struct {
	gain atomic.Uint64 // math.Float64bits of the current gain
	out  *audio.IntBuffer
}

// NewGainNode returns a node at unity gain.
func NewGainNode() *GainNode {
	n := &GainNode{out: &audio.IntBuffer{SourceBitDepth: 16}}
	n.SetGain(1.0)
	return n
}

// SetGain applies a new gain, clamped to [0, 1].
func (n *GainNode) SetGain(v float64) {
	n.gain.Store(math.Float64bits(clampUnit(v)))
}

// Gain returns the current gain.
func (n *GainNode) Gain() float64 {
	return math.Float64frombits(n.gain.Load())
}

// Process writes the scaled copy of in to the node's output buffer and
// returns it. The returned buffer is reused on the next call.
func (n *GainNode) Process(in *audio.IntBuffer) *audio.IntBuffer {
	g := n.Gain()
	if cap(n.out.Data) < len(in.Data) {
		n.out.Data = make([]int, len(in.Data))
	}
	n.out.Data = n.out.Data[:len(in.Data)]
	n.out.Format = in.Format

	for i, s := range in.Data {
		v := int(math.Round(float64(s) * g))
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		n.out.Data[i] = v
	}
	return n.out
}

// Graph is one wired source -> gain -> destination chain.
type Graph struct {
	Source      media.AudioTrack
	Gain        *GainNode
	Destination *media.AudioFeed

	mu     sync.Mutex
	cancel func()
	closed bool
	blocks atomic.Uint64
}

// NewGraph connects source through a fresh unity gain node to a new
// destination track.
func NewGraph(source media.AudioTrack) *Graph {
	g := &Graph{
		Source:      source,
		Gain:        NewGainNode(),
		Destination: media.NewAudioFeed("processed", source.Format(), nil),
	}
	g.cancel = source.Subscribe(func(buf *audio.IntBuffer) {
		g.Destination.Publish(g.Gain.Process(buf))
		g.blocks.Add(1)
	})
	return g
}

// Output is the processed track. The raw source is never exposed to the
// recorder.
func (g *Graph) Output() media.AudioTrack { return g.Destination }

// Blocks returns how many source blocks have passed through the graph.
func (g *Graph) Blocks() uint64 { return g.blocks.Load() }

// Close disconnects the source and stops the destination track. The source
// track itself belongs to the caller.
func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.cancel()
	g.Destination.Stop()
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
