package bridge

import "sync"

// Kind is the kind of handle held in the registry.
type Kind string

const (
	KindMarker  Kind = "marker"
	KindPopup   Kind = "popup"
	KindSource  Kind = "source"
	KindLayer   Kind = "layer"
	KindControl Kind = "control"
	KindPlugin  Kind = "plugin"
)

// Kinds lists every handle kind.
func Kinds() []Kind {
	return []Kind{KindMarker, KindPopup, KindSource, KindLayer, KindControl, KindPlugin}
}

// table holds the handles of one kind for one map, in insertion order.
type table struct {
	order []string
	items map[string]any
}

func (t *table) remove(id string) {
	delete(t.items, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// Registry maps (map, kind, id) to live native handles. It only does
// bookkeeping; native creation and removal belong to the caller.
type Registry struct {
	mu   sync.RWMutex
	maps map[string]map[Kind]*table
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{maps: make(map[string]map[Kind]*table)}
}

// Register stores handle under id, replacing any existing entry. A replaced
// entry keeps its position in List order.
func (r *Registry) Register(mapID string, kind Kind, id string, handle any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds, ok := r.maps[mapID]
	if !ok {
		kinds = make(map[Kind]*table)
		r.maps[mapID] = kinds
	}
	t, ok := kinds[kind]
	if !ok {
		t = &table{items: make(map[string]any)}
		kinds[kind] = t
	}
	if _, exists := t.items[id]; !exists {
		t.order = append(t.order, id)
	}
	t.items[id] = handle
}

// Resolve returns the handle registered under id, or a NotFound error.
func (r *Registry) Resolve(mapID string, kind Kind, id string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.maps[mapID][kind]; ok {
		if h, ok := t.items[id]; ok {
			return h, nil
		}
	}
	return nil, notFound(mapID, kind, id)
}

// Has reports whether id is registered.
func (r *Registry) Has(mapID string, kind Kind, id string) bool {
	_, err := r.Resolve(mapID, kind, id)
	return err == nil
}

// Unregister forgets id. Forgetting an absent id is a no-op.
func (r *Registry) Unregister(mapID string, kind Kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.maps[mapID][kind]; ok {
		t.remove(id)
	}
}

// List returns the ids of one kind in insertion order.
func (r *Registry) List(mapID string, kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.maps[mapID][kind]
	if !ok {
		return nil
	}
	return append([]string(nil), t.order...)
}

// Count returns how many handles of kind are registered across all maps.
func (r *Registry) Count(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, kinds := range r.maps {
		if t, ok := kinds[kind]; ok {
			n += len(t.items)
		}
	}
	return n
}

// Clear forgets every handle of one kind for a map.
func (r *Registry) Clear(mapID string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kinds, ok := r.maps[mapID]; ok {
		delete(kinds, kind)
	}
}

// Drop forgets every handle owned by a map.
func (r *Registry) Drop(mapID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.maps, mapID)
}

// resolveAs resolves id and asserts the handle type.
func resolveAs[T any](r *Registry, mapID string, kind Kind, id string) (T, error) {
	var zero T
	h, err := r.Resolve(mapID, kind, id)
	if err != nil {
		return zero, err
	}
	v, ok := h.(T)
	if !ok {
		return zero, notFound(mapID, kind, id)
	}
	return v, nil
}
