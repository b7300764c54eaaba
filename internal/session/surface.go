package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrSurfaceNotReady is returned by surface mutations before the map has loaded
var ErrSurfaceNotReady = errors.New("map surface not ready")

// Layer is a map style layer bound to a source
type Layer struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Source string                 `json:"source"`
	Paint  map[string]interface{} `json:"paint,omitempty"`
}

// Marker is a DOM-style overlay pinned to a coordinate
type Marker struct {
	ID     string     `json:"id"`
	Kind   string     `json:"kind"`
	LngLat [2]float64 `json:"lngLat"`
	Label  string     `json:"label,omitempty"`
}

// Surface is the map's layer, source and marker registry
type Surface interface {
	Ready() bool
	HasSource(id string) bool
	AddSource(id string, data interface{}) error
	SetSourceData(id string, data interface{}) error
	RemoveSource(id string) error
	HasLayer(id string) bool
	AddLayer(layer Layer) error
	RemoveLayer(id string) error
	SetPaintProperty(layerID, property string, value interface{}) error
	SetMarker(marker Marker) error
	RemoveMarker(id string) error
	MarkerIDs() []string
}

// SurfaceState is a snapshot of everything registered on a surface
type SurfaceState struct {
	Ready   bool                   `json:"ready"`
	Sources map[string]interface{} `json:"sources"`
	Layers  []Layer                `json:"layers"`
	Markers []Marker               `json:"markers"`
}

// MemorySurface is an in-process Surface. Its snapshot is what the browser
// client applies to the real map.
type MemorySurface struct {
	mu         sync.RWMutex
	ready      bool
	sources    map[string]interface{}
	layers     map[string]Layer
	layerOrder []string
	markers    map[string]Marker
}

// NewMemorySurface creates an empty surface
func NewMemorySurface(ready bool) *MemorySurface {
	return &MemorySurface{
		ready:   ready,
		sources: make(map[string]interface{}),
		layers:  make(map[string]Layer),
		markers: make(map[string]Marker),
	}
}

// SetReady flips the loaded flag, as the map's load event would
func (m *MemorySurface) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

// Ready reports whether the map has loaded
func (m *MemorySurface) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// HasSource reports whether a source is registered
func (m *MemorySurface) HasSource(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sources[id]
	return ok
}

// AddSource registers a new source. Fails before the map is ready or if id exists.
func (m *MemorySurface) AddSource(id string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrSurfaceNotReady
	}
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("source %q already exists", id)
	}
	m.sources[id] = data
	return nil
}

// SetSourceData replaces the data of an existing source
func (m *MemorySurface) SetSourceData(id string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("source %q does not exist", id)
	}
	m.sources[id] = data
	return nil
}

// RemoveSource deletes a source no layer uses. Missing sources are ignored.
func (m *MemorySurface) RemoveSource(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.layers {
		if l.Source == id {
			return fmt.Errorf("source %q is in use by layer %q", id, l.ID)
		}
	}
	delete(m.sources, id)
	return nil
}

// HasLayer reports whether a layer is registered
func (m *MemorySurface) HasLayer(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.layers[id]
	return ok
}

// AddLayer appends a layer on top of the existing ones
func (m *MemorySurface) AddLayer(layer Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrSurfaceNotReady
	}
	if _, ok := m.layers[layer.ID]; ok {
		return fmt.Errorf("layer %q already exists", layer.ID)
	}
	if _, ok := m.sources[layer.Source]; !ok {
		return fmt.Errorf("layer %q references missing source %q", layer.ID, layer.Source)
	}
	paint := make(map[string]interface{}, len(layer.Paint))
	for k, v := range layer.Paint {
		paint[k] = v
	}
	layer.Paint = paint
	m.layers[layer.ID] = layer
	m.layerOrder = append(m.layerOrder, layer.ID)
	return nil
}

// RemoveLayer deletes a layer. Missing layers are ignored.
func (m *MemorySurface) RemoveLayer(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.layers[id]; !ok {
		return nil
	}
	delete(m.layers, id)
	for i, lid := range m.layerOrder {
		if lid == id {
			m.layerOrder = append(m.layerOrder[:i], m.layerOrder[i+1:]...)
			break
		}
	}
	return nil
}

// SetPaintProperty sets one paint property of a layer
func (m *MemorySurface) SetPaintProperty(layerID, property string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	layer, ok := m.layers[layerID]
	if !ok {
		return fmt.Errorf("layer %q does not exist", layerID)
	}
	layer.Paint[property] = value
	return nil
}

// SetMarker adds or moves a marker
func (m *MemorySurface) SetMarker(marker Marker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrSurfaceNotReady
	}
	m.markers[marker.ID] = marker
	return nil
}

// RemoveMarker deletes a marker. Missing markers are ignored.
func (m *MemorySurface) RemoveMarker(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, id)
	return nil
}

// MarkerIDs returns the registered marker IDs in sorted order
func (m *MemorySurface) MarkerIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.markers))
	for id := range m.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of the registry in stable order
func (m *MemorySurface) Snapshot() SurfaceState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := SurfaceState{
		Ready:   m.ready,
		Sources: make(map[string]interface{}, len(m.sources)),
		Layers:  make([]Layer, 0, len(m.layers)),
		Markers: make([]Marker, 0, len(m.markers)),
	}
	for id, data := range m.sources {
		state.Sources[id] = data
	}
	for _, id := range m.layerOrder {
		l := m.layers[id]
		paint := make(map[string]interface{}, len(l.Paint))
		for k, v := range l.Paint {
			paint[k] = v
		}
		l.Paint = paint
		state.Layers = append(state.Layers, l)
	}
	for _, marker := range m.markers {
		state.Markers = append(state.Markers, marker)
	}
	sort.Slice(state.Markers, func(i, j int) bool { return state.Markers[i].ID < state.Markers[j].ID })
	return state
}
