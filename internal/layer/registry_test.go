package layer

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*Layer) {}

func TestAddAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry(nil)

	for want := 0; want < 3; want++ {
		l, err := r.Add(noop, nil)
		require.NoError(t, err)
		assert.Equal(t, want, l.ID)
		assert.True(t, l.Active)
	}
	assert.Equal(t, []int{0, 1, 2}, r.IDs())
}

func TestAddNeverReusesRemovedIDs(t *testing.T) {
	r := NewRegistry(nil)
	a, _ := r.Add(noop, nil)
	b, _ := r.Add(noop, nil)

	require.True(t, r.Remove(a.ID))
	require.True(t, r.Remove(b.ID))

	c, err := r.Add(noop, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.ID, "length based ids would have handed out 0 again")
}

func TestAddWithIDMovesCounterForward(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.AddWithID(10, noop, nil)
	require.NoError(t, err)

	l, err := r.Add(noop, nil)
	require.NoError(t, err)
	assert.Equal(t, 11, l.ID)
}

func TestAddDuplicateLeavesRegistryUnchanged(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.AddWithID(4, noop, nil)
	require.NoError(t, err)
	_, err = r.Add(noop, nil)
	require.NoError(t, err)

	before := r.Layers()
	setupCalled := false

	l, err := r.AddWithID(4, noop, func(*Layer) { setupCalled = true })
	assert.Nil(t, l)
	var dup *DuplicateLayerError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, 4, dup.ID)
	assert.Equal(t, "layer 4 already exists", err.Error())
	assert.False(t, setupCalled)

	assert.Equal(t, before, r.Layers())
	assert.Equal(t, 2, r.Len())
}

func TestSetupRunsBeforeAppend(t *testing.T) {
	r := NewRegistry(nil)
	var lenDuringSetup int

	l, err := r.Add(noop, func(l *Layer) {
		lenDuringSetup = r.Len()
		l.Payload = "logo.png"
	})
	require.NoError(t, err)
	assert.Equal(t, 0, lenDuringSetup)
	assert.Equal(t, "logo.png", l.Payload)
	assert.Equal(t, 1, r.Len())
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	_, _ = r.Add(noop, nil)

	assert.False(t, r.Remove(99))
	assert.Equal(t, 1, r.Len())
}

func TestDrawRendersActiveLayersInOrder(t *testing.T) {
	r := NewRegistry(nil)
	var order []int
	render := func(l *Layer) { order = append(order, l.ID) }

	for i := 0; i < 5; i++ {
		_, err := r.Add(render, nil)
		require.NoError(t, err)
	}
	r.SetActive(1, false)
	r.SetActive(3, false)

	n := r.Draw()
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{0, 2, 4}, order)
	assert.Equal(t, 5, r.Len(), "inactive layers are retained")

	// Drawing again repeats the same calls.
	order = nil
	r.Draw()
	assert.Equal(t, []int{0, 2, 4}, order)
}

func TestSetPayloadAndGet(t *testing.T) {
	r := NewRegistry(nil)
	l, _ := r.Add(noop, nil)

	assert.True(t, r.SetPayload(l.ID, ImageOverlay{Name: "a.png", Width: 3, Height: 2}))
	got, ok := r.Get(l.ID)
	require.True(t, ok)
	assert.Equal(t, "a.png", got.Payload.(ImageOverlay).Name)

	assert.False(t, r.SetPayload(42, nil))
	assert.False(t, r.SetActive(42, true))
	_, ok = r.Get(42)
	assert.False(t, ok)
}

func TestRandomOperationsKeepIDsUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := NewRegistry(nil)

	for step := 0; step < 2000; step++ {
		switch rng.Intn(3) {
		case 0:
			_, _ = r.Add(noop, nil)
		case 1:
			_, _ = r.AddWithID(rng.Intn(50), noop, nil)
		case 2:
			r.Remove(rng.Intn(50))
		}

		seen := make(map[int]bool)
		for _, id := range r.IDs() {
			if seen[id] {
				t.Fatalf("step %d: duplicate id %d in %v", step, id, r.IDs())
			}
			seen[id] = true
		}
	}
}

func TestSetRenderKeepsStackPosition(t *testing.T) {
	r := NewRegistry(nil)
	var got []string
	a, _ := r.Add(func(*Layer) { got = append(got, "a") }, nil)
	r.Add(func(*Layer) { got = append(got, "b") }, nil)

	require.True(t, r.SetRender(a.ID, func(*Layer) { got = append(got, "a2") }))
	assert.False(t, r.SetRender(99, noop))

	r.Draw()
	assert.Equal(t, []string{"a2", "b"}, got)
}
