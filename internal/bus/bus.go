// Package bus is the synchronous command dispatcher between UI input and the
// components that react to it. A Bus is constructed explicitly and handed to
// every component that needs it.
package bus

import "sync"

// Action names a command published on the bus.
type Action string

// UI commands.
const (
	Play          Action = "PLAY"
	Stop          Action = "STOP"
	StartRecord   Action = "START_RECORD"
	StopRecord    Action = "STOP_RECORD"
	VolumeUp      Action = "VOLUME_UP"
	VolumeDown    Action = "VOLUME_DOWN"
	ImageUploaded Action = "IMAGE_UPLOADED"
	LayerRemoved  Action = "LAYER_REMOVED"
)

// Handler reacts to a dispatched payload.
type Handler func(payload any)

// Bus fans a dispatched action out to its subscribers, in registration order,
// on the caller's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Action][]Handler
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[Action][]Handler)}
}

// Subscribe registers handler under action. The same action may have any
// number of handlers.
func (b *Bus) Subscribe(action Action, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[action] = append(b.handlers[action], handler)
	b.mu.Unlock()
}

// Dispatch invokes every handler registered for action with payload. An
// action nobody subscribed to is a no-op. Handlers subscribed while a
// dispatch is running only see later dispatches.
func (b *Bus) Dispatch(action Action, payload any) {
	b.mu.RLock()
	handlers := b.handlers[action]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}

// Subscribers reports how many handlers are registered for action.
func (b *Bus) Subscribers(action Action) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[action])
}
