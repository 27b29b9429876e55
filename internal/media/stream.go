package media

import (
	"strconv"
	"sync"
	"sync/atomic"
)

var streamCounter atomic.Uint64

// Stream groups the tracks of one capture session.
type Stream struct {
	id string

	mu     sync.RWMutex
	tracks []Track
	closed bool
}

// NewStream returns a stream holding tracks.
func NewStream(tracks ...Track) *Stream {
	s := &Stream{id: "stream-" + strconv.FormatUint(streamCounter.Add(1), 10)}
	for _, t := range tracks {
		s.AddTrack(t)
	}
	return s
}

// ID returns the stream identifier.
func (s *Stream) ID() string { return s.id }

// AddTrack appends t. Nil tracks are ignored.
func (s *Stream) AddTrack(t Track) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
}

// Tracks returns every track in insertion order.
func (s *Stream) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// AudioTracks returns the audio tracks of the stream.
func (s *Stream) AudioTracks() []AudioTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AudioTrack
	for _, t := range s.tracks {
		if a, ok := t.(AudioTrack); ok && t.Kind() == KindAudio {
			out = append(out, a)
		}
	}
	return out
}

// VideoTracks returns the video tracks of the stream.
func (s *Stream) VideoTracks() []VideoTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []VideoTrack
	for _, t := range s.tracks {
		if v, ok := t.(VideoTrack); ok && t.Kind() == KindVideo {
			out = append(out, v)
		}
	}
	return out
}

// Close stops every track. Calling it again is a no-op.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tracks := s.tracks
	s.mu.Unlock()

	for _, t := range tracks {
		t.Stop()
	}
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
