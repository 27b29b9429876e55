package transport

import (
	"errors"

	"studio/internal/bus"
)

// Transport defines a generic interface for sending UI events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Event is one server to client message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Event types sent to UI clients.
const (
	LayerAdded         = "layer.added"
	LayerRemoved       = "layer.removed"
	RecordingIndicator = "recording.indicator"
	VolumeIndicator    = "volume.indicator"
	PlaybackSource     = "playback.source"
	AudioLevel         = "audio.level"
	CommandAck         = "command.ack"
)

// Command is one client to server message: a bus action plus the input
// event that triggered it.
type Command struct {
	Action string           `json:"action"`
	Event  *bus.RemoteEvent `json:"event,omitempty"`
}

// CommandHandler receives inbound commands.
type CommandHandler func(cmd Command)

// Fanout sends every message to each of its transports.
type Fanout []Transport

func (f Fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure Fanout satisfies the interface
var _ Transport = Fanout(nil)
