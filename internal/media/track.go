// Package media models live capture devices as tracks grouped into streams,
// in the spirit of the browser getUserMedia API.
package media

import (
	"image"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
)

// Kind is the media type carried by a track.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is one live media source.
type Track interface {
	ID() string
	Kind() Kind
	// Stop ends the track and releases its device. Safe to call twice.
	Stop()
}

// AudioTrack is a push model PCM source.
type AudioTrack interface {
	Track
	Format() *audio.Format
	// Subscribe registers fn for every captured block. The buffer is only
	// valid for the duration of the call. The returned cancel func waits for
	// an in-flight delivery to finish.
	Subscribe(fn func(buf *audio.IntBuffer)) (cancel func())
}

// VideoTrack is a pull model frame source.
type VideoTrack interface {
	Track
	Size() (width, height int)
	FrameRate() int
	// Frame returns the most recent frame, or nil before the first one.
	Frame() image.Image
}

// LiveSource is a video source that can be paused without being stopped.
type LiveSource interface {
	Pause()
	Resume()
	Paused() bool
}

var trackCounter atomic.Uint64

func nextTrackID(prefix string) string {
	return prefix + "-" + strconv.FormatUint(trackCounter.Add(1), 10)
}

type subscription struct {
	id uint64
	fn func(*audio.IntBuffer)
}

// AudioFeed is an AudioTrack fed by Publish. Device providers and the audio
// graph both hand out feeds.
type AudioFeed struct {
	id     string
	format *audio.Format

	mu      sync.RWMutex
	subs    []subscription
	nextSub uint64
	stopped bool
	onStop  func()
}

// NewAudioFeed returns a feed that carries PCM in format. onStop, if set,
// runs once when the feed is stopped.
func NewAudioFeed(label string, format *audio.Format, onStop func()) *AudioFeed {
	return &AudioFeed{
		id:     nextTrackID(label),
		format: format,
		onStop: onStop,
	}
}

func (f *AudioFeed) ID() string            { return f.id }
func (f *AudioFeed) Kind() Kind            { return KindAudio }
func (f *AudioFeed) Format() *audio.Format { return f.format }

// Subscribe implements AudioTrack.
func (f *AudioFeed) Subscribe(fn func(*audio.IntBuffer)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fn == nil || f.stopped {
		return func() {}
	}
	id := f.nextSub
	f.nextSub++
	f.subs = append(f.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			for i, s := range f.subs {
				if s.id == id {
					f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
					break
				}
			}
			f.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (f *AudioFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Publish delivers buf to every subscriber, in subscription order.
func (f *AudioFeed) Publish(buf *audio.IntBuffer) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.stopped {
		return
	}
	for _, s := range f.subs {
		s.fn(buf)
	}
}

// Stop implements Track.
func (f *AudioFeed) Stop() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	f.subs = nil
	onStop := f.onStop
	f.mu.Unlock()

	if onStop != nil {
		onStop()
	}
}

// Stopped reports whether Stop has been called.
func (f *AudioFeed) Stopped() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stopped
}
