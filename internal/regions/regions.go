package regions

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/models"
)

//go:embed regions.yaml
var defaultRegions []byte

// ErrRegionNotFound is returned by Get for unknown IDs
var ErrRegionNotFound = errors.New("region not found")

type file struct {
	Regions []models.Region `yaml:"regions"`
}

// Set is an ordered list of regions
type Set struct {
	regions []models.Region
	byID    map[string]int
}

// Default returns the built-in Metro Vancouver regions
func Default() *Set {
	set, err := Parse(defaultRegions)
	if err != nil {
		panic(fmt.Sprintf("embedded regions.yaml is invalid: %v", err))
	}
	return set
}

// Load reads regions from a YAML file. An empty path returns Default().
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a regions document and validates every entry
func Parse(data []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse regions: %w", err)
	}

	set := &Set{byID: make(map[string]int, len(f.Regions))}
	for i, r := range f.Regions {
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			return nil, fmt.Errorf("region %d: id is required", i)
		}
		if _, dup := set.byID[r.ID]; dup {
			return nil, fmt.Errorf("region %q: duplicate id", r.ID)
		}
		if !geo.IsValidCoordinate(r.Center[1], r.Center[0]) {
			return nil, fmt.Errorf("region %q: invalid center %v", r.ID, r.Center)
		}
		if r.Name == "" {
			r.Name = r.ID
		}
		set.byID[r.ID] = len(set.regions)
		set.regions = append(set.regions, r)
	}
	return set, nil
}

// All returns the regions in file order
func (s *Set) All() []models.Region {
	return append([]models.Region(nil), s.regions...)
}

// IDs returns the region IDs in file order
func (s *Set) IDs() []string {
	ids := make([]string, len(s.regions))
	for i, r := range s.regions {
		ids[i] = r.ID
	}
	return ids
}

// Get returns one region by ID
func (s *Set) Get(id string) (models.Region, error) {
	i, ok := s.byID[id]
	if !ok {
		return models.Region{}, ErrRegionNotFound
	}
	return s.regions[i], nil
}

// Containing returns the IDs of regions whose radius covers the point, nearest first
func (s *Set) Containing(lat, lon float64) []string {
	type hit struct {
		id   string
		dist float64
	}
	var hits []hit
	for _, r := range s.regions {
		if r.Radius <= 0 {
			continue
		}
		d := geo.Haversine(lat, lon, r.Center[1], r.Center[0])
		if d <= r.Radius {
			hits = append(hits, hit{r.ID, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids
}
