package layer

import (
	"sync"

	"studio/internal/canvas"
)

// Registry is an ordered, uniquely keyed set of layers.
//
// Ids handed out by Add come from a counter that only moves forward, so an
// id freed by Remove is never given to a later layer.
type Registry struct {
	mu      sync.RWMutex
	layers  []*Layer
	nextID  int
	surface *canvas.Surface
}

// NewRegistry returns an empty registry whose layers draw onto surface.
func NewRegistry(surface *canvas.Surface) *Registry {
	return &Registry{surface: surface}
}

// Add appends a layer with the next free id.
func (r *Registry) Add(render RenderFunc, setup SetupFunc) (*Layer, error) {
	return r.add(0, false, render, setup)
}

// AddWithID appends a layer under id. It fails with *DuplicateLayerError,
// leaving the registry untouched, if id is already present.
func (r *Registry) AddWithID(id int, render RenderFunc, setup SetupFunc) (*Layer, error) {
	return r.add(id, true, render, setup)
}

func (r *Registry) add(id int, explicit bool, render RenderFunc, setup SetupFunc) (*Layer, error) {
	r.mu.Lock()
	if explicit {
		if r.indexOf(id) >= 0 {
			r.mu.Unlock()
			return nil, &DuplicateLayerError{ID: id}
		}
	} else {
		id = r.nextID
	}
	if id >= r.nextID {
		r.nextID = id + 1
	}
	r.mu.Unlock()

	l := &Layer{
		ID:      id,
		Render:  render,
		Active:  true,
		Surface: r.surface,
	}

	// Setup may call out to collaborators, so it runs without the lock.
	if setup != nil {
		setup(l)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(id) >= 0 {
		return nil, &DuplicateLayerError{ID: id}
	}
	r.layers = append(r.layers, l)
	return l, nil
}

// Remove drops the layer with id. Unknown ids are ignored.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.layers = append(r.layers[:i], r.layers[i+1:]...)
	return true
}

// Get returns the layer with id.
func (r *Registry) Get(id int) (*Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.layers[i], true
	}
	return nil, false
}

// SetActive toggles whether the layer is drawn. Inactive layers keep their
// place in the stack.
func (r *Registry) SetActive(id int, active bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(id); i >= 0 {
		r.layers[i].Active = active
		return true
	}
	return false
}

// SetPayload replaces the payload of the layer with id.
func (r *Registry) SetPayload(id int, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(id); i >= 0 {
		r.layers[i].Payload = payload
		return true
	}
	return false
}

// SetRender swaps the renderer of the layer with id, keeping its place in
// the stack.
func (r *Registry) SetRender(id int, render RenderFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(id); i >= 0 {
		r.layers[i].Render = render
		return true
	}
	return false
}

// Len returns the number of layers, active or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.layers)
}

// IDs returns the layer ids in draw order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, len(r.layers))
	for i, l := range r.layers {
		ids[i] = l.ID
	}
	return ids
}

// Layers returns a snapshot of the stack in draw order.
func (r *Registry) Layers() []*Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Layer, len(r.layers))
	copy(out, r.layers)
	return out
}

// Draw renders every active layer once, in stack order, and returns how many
// were rendered.
func (r *Registry) Draw() int {
	type job struct {
		l      *Layer
		render RenderFunc
	}
	r.mu.RLock()
	jobs := make([]job, 0, len(r.layers))
	for _, l := range r.layers {
		if l.Active && l.Render != nil {
			jobs = append(jobs, job{l, l.Render})
		}
	}
	r.mu.RUnlock()

	for _, j := range jobs {
		j.render(j.l)
	}
	return len(jobs)
}

func (r *Registry) indexOf(id int) int {
	for i, l := range r.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}
