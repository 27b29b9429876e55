// Package ui is the local control surface: it turns studio callbacks into
// events for browser clients and client input into bus commands.
package ui

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studio/internal/bus"
	"studio/internal/canvas"
	"studio/internal/config"
	applog "studio/internal/log"
	"studio/internal/recorder"
	"studio/internal/studio"
	"studio/internal/transport"
)

// maxArtifacts is how many finished recordings stay downloadable.
const maxArtifacts = 8

// Options configures a Server.
type Options struct {
	Bus         *bus.Bus
	Surface     *canvas.Surface
	Metrics     http.Handler
	Server      config.ServerConfig
	JPEGQuality int
	// Extra transports receive every event sent to the WebSocket clients.
	Extra []transport.Transport
}

// Server implements the studio's UI collaborators by broadcasting events,
// and serves the HTTP and WebSocket routes.
type Server struct {
	bus     *bus.Bus
	surface *canvas.Surface
	metrics http.Handler
	quality int
	hub     *transport.WebSocketTransport
	events  transport.Transport
	log     *zap.SugaredLogger

	mu        sync.Mutex
	layers    []studio.LayerTag
	volume    int
	recording bool
	playback  *recorder.Artifact
	artifacts map[string]*recorder.Artifact
	order     []string
}

var (
	_ studio.LayerList       = (*Server)(nil)
	_ studio.VolumeIndicator = (*Server)(nil)
	_ recorder.Indicator     = (*Server)(nil)
	_ recorder.Playback      = (*Server)(nil)
)

// NewServer creates the server and its WebSocket hub.
func NewServer(opts Options) *Server {
	if opts.Bus == nil {
		opts.Bus = bus.New()
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = config.DefaultJPEGQuality
	}
	rateLimit, burst := opts.Server.CommandRate, opts.Server.CommandBurst
	if rateLimit <= 0 {
		rateLimit = config.DefaultCommandRate
	}
	if burst <= 0 {
		burst = config.DefaultCommandBurst
	}

	s := &Server{
		bus:       opts.Bus,
		surface:   opts.Surface,
		metrics:   opts.Metrics,
		quality:   opts.JPEGQuality,
		volume:    100,
		artifacts: make(map[string]*recorder.Artifact),
		log:       applog.Named("ui"),
	}
	s.hub = transport.NewWebSocketTransport(
		transport.WithCommandHandler(s.HandleCommand),
		transport.WithCommandRate(rateLimit, burst),
		transport.WithGreeting(s.Greeting),
	)
	if len(opts.Extra) > 0 {
		s.events = append(transport.Fanout{s.hub}, opts.Extra...)
	} else {
		s.events = s.hub
	}
	return s
}

// Events is where everything shown to clients goes, including meter
// readings.
func (s *Server) Events() transport.Transport { return s.events }

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int { return s.hub.Clients() }

// Close disconnects every client.
func (s *Server) Close() error { return s.events.Close() }

func (s *Server) send(typ string, data any) {
	if err := s.events.Send(transport.Event{Type: typ, Data: data}); err != nil {
		s.log.Warnw("send failed", "event", typ, "error", err)
	}
}

// Add lists a new layer.
func (s *Server) Add(tag studio.LayerTag) {
	s.mu.Lock()
	s.layers = append(s.layers, tag)
	s.mu.Unlock()
	s.send(transport.LayerAdded, tag)
}

// Remove drops a layer from the list.
func (s *Server) Remove(id int) {
	s.mu.Lock()
	for i, tag := range s.layers {
		if tag.ID == id {
			s.layers = append(s.layers[:i], s.layers[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.send(transport.LayerRemoved, gin.H{"id": id})
}

// Layers returns the listed layers, bottom first.
func (s *Server) Layers() []studio.LayerTag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]studio.LayerTag(nil), s.layers...)
}

// ShowRecording turns the recording indicator on.
func (s *Server) ShowRecording() { s.setRecording(true) }

// HideRecording turns the recording indicator off.
func (s *Server) HideRecording() { s.setRecording(false) }

func (s *Server) setRecording(on bool) {
	s.mu.Lock()
	s.recording = on
	s.mu.Unlock()
	s.send(transport.RecordingIndicator, gin.H{"visible": on})
}

// SetVolume updates the volume indicator fill.
func (s *Server) SetVolume(percent int) {
	s.mu.Lock()
	s.volume = percent
	s.mu.Unlock()
	s.send(transport.VolumeIndicator, gin.H{"percent": percent})
}

// SetSource sets a as the playback source and keeps it downloadable. Only the
// newest artifacts are kept.
func (s *Server) SetSource(a *recorder.Artifact) {
	if a == nil {
		return
	}
	s.mu.Lock()
	s.playback = a
	if _, ok := s.artifacts[a.ID]; !ok {
		s.artifacts[a.ID] = a
		s.order = append(s.order, a.ID)
		for len(s.order) > maxArtifacts {
			delete(s.artifacts, s.order[0])
			s.order = s.order[1:]
		}
	}
	s.mu.Unlock()
	s.send(transport.PlaybackSource, playbackEvent(a))
}

func playbackEvent(a *recorder.Artifact) gin.H {
	return gin.H{
		"id":       a.ID,
		"url":      a.URL(),
		"mimeType": a.MimeType,
		"filename": a.Filename(),
		"duration": a.Duration.Seconds(),
		"size":     len(a.Data),
	}
}

// Artifact looks up a kept recording.
func (s *Server) Artifact(id string) (*recorder.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	return a, ok
}

// Greeting is the state replayed to a client when it connects.
func (s *Server) Greeting() []transport.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]transport.Event, 0, len(s.layers)+3)
	for _, tag := range s.layers {
		events = append(events, transport.Event{Type: transport.LayerAdded, Data: tag})
	}
	events = append(events,
		transport.Event{Type: transport.VolumeIndicator, Data: gin.H{"percent": s.volume}},
		transport.Event{Type: transport.RecordingIndicator, Data: gin.H{"visible": s.recording}},
	)
	if s.playback != nil {
		events = append(events, transport.Event{Type: transport.PlaybackSource, Data: playbackEvent(s.playback)})
	}
	return events
}

// HandleCommand dispatches a client command on the bus. Action names are
// case insensitive and may use dashes: "start-record" is START_RECORD.
func (s *Server) HandleCommand(cmd transport.Command) {
	action, ok := parseAction(cmd.Action)
	if !ok {
		s.log.Warnw("unknown command", "action", cmd.Action)
		return
	}
	payload := bus.Command{Action: action}
	if cmd.Event != nil {
		payload.Event = cmd.Event
	}
	s.bus.Dispatch(action, payload)
}

var commandActions = map[bus.Action]bool{
	bus.Play:        true,
	bus.Stop:        true,
	bus.StartRecord: true,
	bus.StopRecord:  true,
	bus.VolumeUp:    true,
	bus.VolumeDown:  true,
}

func parseAction(name string) (bus.Action, bool) {
	action := bus.Action(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_")))
	return action, commandActions[action]
}
