package routeindex

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/models"
)

// Index is the prebuilt list of route bounding boxes.
// It is loaded once and read-only afterwards; lookups before Load return nothing.
type Index struct {
	mu      sync.RWMutex
	entries []models.RouteIndexEntry
	loaded  bool
}

// New creates an empty, unloaded index
func New() *Index {
	return &Index{}
}

// NewFromEntries creates a loaded index from in-memory entries
func NewFromEntries(entries []models.RouteIndexEntry) *Index {
	idx := &Index{}
	idx.set(entries)
	return idx
}

// Load reads the index JSON file from disk
func (idx *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open route index: %w", err)
	}
	defer f.Close()

	if err := idx.LoadFrom(f); err != nil {
		return fmt.Errorf("failed to load route index %s: %w", path, err)
	}
	return nil
}

// LoadFrom decodes a JSON array of {shape_id, bbox} entries.
// Malformed entries are skipped with a warning.
func (idx *Index) LoadFrom(r io.Reader) error {
	var raw []models.RouteIndexEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode route index: %w", err)
	}

	entries := make([]models.RouteIndexEntry, 0, len(raw))
	for _, e := range raw {
		if err := e.Validate(); err != nil {
			log.Printf("Warning: skipping route index entry for shape %d: %v", e.ShapeID, err)
			continue
		}
		entries = append(entries, e)
	}

	idx.set(entries)
	log.Printf("Route index loaded: %d entries", len(entries))
	return nil
}

func (idx *Index) set(entries []models.RouteIndexEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = entries
	idx.loaded = true
}

// Loaded reports whether the index has finished loading
func (idx *Index) Loaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

// Len returns the number of entries
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Lookup returns the shape IDs whose bbox contains (lon, lat), in index order.
// An unloaded index or a point outside every box yields an empty slice.
func (idx *Index) Lookup(lon, lat float64) []int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	shapeIDs := []int{}
	for _, e := range idx.entries {
		if geo.BBox(e.BBox).Contains(lon, lat) {
			shapeIDs = append(shapeIDs, e.ShapeID)
		}
	}
	return shapeIDs
}
