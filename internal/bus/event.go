package bus

// InputEvent is the originating UI event carried by a command. The core only
// uses it to suppress the host's default action.
type InputEvent interface {
	PreventDefault()
}

// Command is the payload of the six UI actions.
type Command struct {
	Action Action
	Event  InputEvent
}

// RemoteEvent is an InputEvent received from a remote UI client. Whether the
// default was prevented is reported back to the client.
type RemoteEvent struct {
	Type             string `json:"type,omitempty"`
	DefaultPrevented bool   `json:"defaultPrevented"`
}

// PreventDefault marks the event as handled.
func (e *RemoteEvent) PreventDefault() {
	if e != nil {
		e.DefaultPrevented = true
	}
}
