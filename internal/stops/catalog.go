package stops

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/rtree"

	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/models"
)

// ErrStopNotFound is returned by Get for unknown stop IDs
var ErrStopNotFound = errors.New("stop not found")

// Catalog is the static stop reference data with an r-tree for radius queries
type Catalog struct {
	mu    sync.RWMutex
	stops []models.Stop
	byID  map[string]int
	tree  rtree.RTree
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]int)}
}

// NewCatalogFromStops builds a catalog from in-memory stops
func NewCatalogFromStops(stops []models.Stop) *Catalog {
	c := NewCatalog()
	c.set(stops)
	return c
}

// Load reads a GeoJSON FeatureCollection of stops from disk
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read stops file: %w", err)
	}

	stops, err := ParseStops(data)
	if err != nil {
		return fmt.Errorf("failed to parse stops file %s: %w", path, err)
	}

	c.set(stops)
	log.Printf("Stop catalog loaded: %d stops", len(stops))
	return nil
}

func (c *Catalog) set(stops []models.Stop) {
	var tree rtree.RTree
	byID := make(map[string]int, len(stops))
	for i, s := range stops {
		byID[s.StopID] = i
		pt := [2]float64{s.Longitude, s.Latitude}
		tree.Insert(pt, pt, i)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops = stops
	c.byID = byID
	c.tree = tree
}

// Len returns the number of stops
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stops)
}

// Get returns the stop with the given ID
func (c *Catalog) Get(stopID string) (models.Stop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[stopID]
	if !ok {
		return models.Stop{}, fmt.Errorf("%w: %s", ErrStopNotFound, stopID)
	}
	return c.stops[i], nil
}

// Search matches stop names and codes case-insensitively.
// Exact code/ID matches sort first, then name prefix matches, then substring matches.
func (c *Catalog) Search(query string, limit int) []models.Stop {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.Stop{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type hit struct {
		stop  models.Stop
		score int
	}
	var hits []hit
	for _, s := range c.stops {
		name := strings.ToLower(s.Name)
		switch {
		case strings.ToLower(s.Code) == q || s.StopID == q:
			hits = append(hits, hit{s, 0})
		case strings.HasPrefix(name, q):
			hits = append(hits, hit{s, 1})
		case strings.Contains(name, q) || strings.Contains(strings.ToLower(s.Code), q):
			hits = append(hits, hit{s, 2})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score < hits[j].score
		}
		return hits[i].stop.Name < hits[j].stop.Name
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]models.Stop, len(hits))
	for i, h := range hits {
		out[i] = h.stop
	}
	return out
}

// Nearby returns stops within radiusMeters of (lat, lon), closest first
func (c *Catalog) Nearby(lat, lon, radiusMeters float64, limit int) []models.NearbyStop {
	box := geo.RadiusBounds(lat, lon, radiusMeters)

	c.mu.RLock()
	defer c.mu.RUnlock()

	results := []models.NearbyStop{}
	c.tree.Search(
		[2]float64{box[0], box[1]},
		[2]float64{box[2], box[3]},
		func(min, max [2]float64, data interface{}) bool {
			s := c.stops[data.(int)]
			d := geo.Haversine(lat, lon, s.Latitude, s.Longitude)
			if d <= radiusMeters {
				results = append(results, models.NearbyStop{Stop: s, DistanceMeters: d})
			}
			return true
		},
	)

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// ParseStops decodes a stops FeatureCollection.
// Features without a point geometry or stop_id are skipped.
func ParseStops(data []byte) ([]models.Stop, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	stops := make([]models.Stop, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}

		s := models.Stop{
			StopID:          propString(f.Properties, "stop_id"),
			Name:            propString(f.Properties, "stop_name"),
			Code:            propString(f.Properties, "stop_code"),
			Longitude:       pt.Lon(),
			Latitude:        pt.Lat(),
			RouteShortNames: propList(f.Properties, "route_short_names"),
			TripHeadsigns:   propList(f.Properties, "trip_headsigns"),
		}
		if s.StopID == "" && f.ID != nil {
			s.StopID = fmt.Sprint(f.ID)
		}
		if v, ok := f.Properties["wheelchair_boarding"]; ok && v != nil {
			accessible := fmt.Sprint(v) == "1"
			s.WheelchairAccessible = &accessible
		}

		if err := s.Validate(); err != nil {
			continue
		}
		stops = append(stops, s)
	}
	return stops, nil
}

// propString reads a string or numeric property as a string
func propString(props geojson.Properties, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// propList reads an array property, or a comma separated string
func propList(props geojson.Properties, key string) []string {
	v, ok := props[key]
	if !ok || v == nil {
		return nil
	}

	var out []string
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
