package studio

import (
	"strconv"

	"studio/internal/bus"
	"studio/internal/compositor"
	"studio/internal/layer"
	applog "studio/internal/log"
)

var commands = []bus.Action{
	bus.Play,
	bus.Stop,
	bus.StartRecord,
	bus.StopRecord,
	bus.VolumeUp,
	bus.VolumeDown,
}

func (s *Studio) subscribe(b *bus.Bus) {
	for _, action := range commands {
		b.Subscribe(action, func(payload any) {
			s.Notify(action, inputEvent(payload))
		})
	}
	b.Subscribe(bus.ImageUploaded, s.handleUpload)
	b.Subscribe(bus.LayerRemoved, s.handleLayerRemoved)
}

func inputEvent(payload any) bus.InputEvent {
	switch p := payload.(type) {
	case bus.Command:
		return p.Event
	case *bus.Command:
		if p != nil {
			return p.Event
		}
	case bus.InputEvent:
		return p
	}
	return nil
}

// Notify runs the operation mapped to action. Unknown actions are ignored.
func (s *Studio) Notify(action bus.Action, event bus.InputEvent) {
	var op func()
	switch action {
	case bus.Play:
		op = s.play
	case bus.Stop:
		op = s.stop
	case bus.VolumeUp:
		op = s.volumeIncrease
	case bus.VolumeDown:
		op = s.volumeDecrease
	case bus.StartRecord:
		op = s.startRecord
	case bus.StopRecord:
		op = s.stopRecord
	default:
		return
	}
	if event != nil {
		event.PreventDefault()
	}
	applog.Debugf("Studio: %s", action)
	op()
}

func (s *Studio) play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comp.Play()
}

func (s *Studio) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comp.Stop()
}

func (s *Studio) volumeIncrease() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain.Increase()
}

func (s *Studio) volumeDecrease() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain.Decrease()
}

func (s *Studio) startRecord() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		applog.Warnf("Studio: no session, cannot record.")
		return
	}
	s.session.recorder.Start()
}

func (s *Studio) stopRecord() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return
	}
	s.session.recorder.Stop()
}

// AddImage adds up as a new top layer and lists it. It returns the new
// layer id.
func (s *Studio) AddImage(up ImageUpload) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	overlay := compositor.NewImageOverlay(up.Name, up.Image)
	l, err := s.comp.Registry().Add(compositor.ImageRenderer, func(l *layer.Layer) {
		l.Payload = overlay
		if s.layers != nil {
			s.layers.Add(LayerTag{Name: up.Name, ID: l.ID})
		}
	})
	if err != nil {
		return -1, err
	}
	applog.Infof("Studio: image %q (%dx%d) added as layer %d", up.Name, overlay.Width, overlay.Height, l.ID)
	return l.ID, nil
}

// RemoveLayer drops layer id. Unknown ids are ignored.
func (s *Studio) RemoveLayer(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.comp.Registry().Remove(id) {
		return false
	}
	if s.hasVideo && id == s.videoLayer {
		s.hasVideo = false
	}
	if s.layers != nil {
		s.layers.Remove(id)
	}
	return true
}

func (s *Studio) handleUpload(payload any) {
	var up ImageUpload
	switch p := payload.(type) {
	case ImageUpload:
		up = p
	case *ImageUpload:
		if p != nil {
			up = *p
		}
	}
	if up.Image == nil {
		applog.Warnf("Studio: ignoring upload without an image")
		return
	}
	if _, err := s.AddImage(up); err != nil {
		applog.Errorf("Studio: %v", err)
	}
}

func (s *Studio) handleLayerRemoved(payload any) {
	var id int
	switch p := payload.(type) {
	case int:
		id = p
	case LayerTag:
		id = p.ID
	case string:
		n, err := strconv.Atoi(p)
		if err != nil {
			applog.Warnf("Studio: bad layer id %q", p)
			return
		}
		id = n
	default:
		return
	}
	if !s.RemoveLayer(id) {
		applog.Debugf("Studio: no layer %d to remove", id)
	}
}
