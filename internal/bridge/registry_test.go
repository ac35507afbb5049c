package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapbridge/internal/errutil"
)

func TestRegistry_RegisterResolve(t *testing.T) {
	r := NewRegistry()
	r.Register("m1", KindMarker, "a", "handle-a")

	h, err := r.Resolve("m1", KindMarker, "a")
	require.NoError(t, err)
	assert.Equal(t, "handle-a", h)
	assert.True(t, r.Has("m1", KindMarker, "a"))
}

func TestRegistry_ScopedPerMapAndKind(t *testing.T) {
	r := NewRegistry()
	r.Register("m1", KindMarker, "a", 1)

	_, err := r.Resolve("m2", KindMarker, "a")
	errutil.AssertErrorCode(t, err, CodeNotFound)

	_, err = r.Resolve("m1", KindPopup, "a")
	errutil.AssertErrorCode(t, err, CodeNotFound)
}

func TestRegistry_ResolveMissing(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("m1", KindLayer, "nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	errutil.AssertErrorContext(t, err, "map_id", "m1")
	errutil.AssertErrorContext(t, err, "kind", "layer")
	errutil.AssertErrorContext(t, err, "id", "nope")
}

func TestRegistry_RegisterOverwritesInPlace(t *testing.T) {
	r := NewRegistry()
	r.Register("m1", KindSource, "a", 1)
	r.Register("m1", KindSource, "b", 2)
	r.Register("m1", KindSource, "a", 3)

	h, err := r.Resolve("m1", KindSource, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, h)
	assert.Equal(t, []string{"a", "b"}, r.List("m1", KindSource))
}

func TestRegistry_UnregisterAndReuse(t *testing.T) {
	r := NewRegistry()
	r.Register("m1", KindMarker, "a", 1)
	r.Unregister("m1", KindMarker, "a")
	r.Unregister("m1", KindMarker, "a")

	assert.False(t, r.Has("m1", KindMarker, "a"))
	assert.Empty(t, r.List("m1", KindMarker))

	r.Register("m1", KindMarker, "a", 2)
	h, err := r.Resolve("m1", KindMarker, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, h)
}

func TestRegistry_ListInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		r.Register("m1", KindLayer, id, id)
	}
	r.Unregister("m1", KindLayer, "a")

	assert.Equal(t, []string{"c", "b"}, r.List("m1", KindLayer))
	assert.Nil(t, r.List("m1", KindMarker))
}

func TestRegistry_ClearAndDrop(t *testing.T) {
	r := NewRegistry()
	r.Register("m1", KindMarker, "a", 1)
	r.Register("m1", KindLayer, "l", 1)
	r.Register("m2", KindMarker, "a", 1)

	r.Clear("m1", KindLayer)
	assert.False(t, r.Has("m1", KindLayer, "l"))
	assert.True(t, r.Has("m1", KindMarker, "a"))

	r.Drop("m1")
	assert.False(t, r.Has("m1", KindMarker, "a"))
	assert.True(t, r.Has("m2", KindMarker, "a"))
	assert.Equal(t, 1, r.Count(KindMarker))
}

func TestResolveAs_WrongType(t *testing.T) {
	r := NewRegistry()
	r.Register("m1", KindMarker, "a", "not a record")

	_, err := resolveAs[*markerRecord](r, "m1", KindMarker, "a")
	assert.True(t, IsNotFound(err))
}
