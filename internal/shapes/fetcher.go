package shapes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gumifu/van-bus-cast/models"
)

// ErrShapeNotFound is returned when no geometry resource exists for a shape
var ErrShapeNotFound = errors.New("shape not found")

// Fetcher resolves one shape ID into its line features.
// A shape file may hold several lines (e.g. a MultiLineString).
type Fetcher interface {
	FetchShape(ctx context.Context, shapeID int) ([]models.RouteFeature, error)
}

// FileFetcher reads shape_<id>.geojson files from a directory
type FileFetcher struct {
	dir string
}

// NewFileFetcher creates a fetcher rooted at dir
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{dir: dir}
}

// FetchShape reads and parses one shape file
func (f *FileFetcher) FetchShape(ctx context.Context, shapeID int) ([]models.RouteFeature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.dir, fileName(shapeID))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %d", ErrShapeNotFound, shapeID)
		}
		return nil, fmt.Errorf("failed to read shape %d: %w", shapeID, err)
	}
	return ParseShape(shapeID, data)
}

// HTTPFetcher downloads shape_<id>.geojson from a base URL
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for baseURL
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchShape downloads and parses one shape resource
func (f *HTTPFetcher) FetchShape(ctx context.Context, shapeID int) ([]models.RouteFeature, error) {
	url := fmt.Sprintf("%s/%s", f.baseURL, fileName(shapeID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shape %d: %w", shapeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %d", ErrShapeNotFound, shapeID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shape %d returned status %d", shapeID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read shape %d: %w", shapeID, err)
	}
	return ParseShape(shapeID, data)
}

func fileName(shapeID int) string {
	return fmt.Sprintf("shape_%d.geojson", shapeID)
}

// ParseShape decodes a GeoJSON Feature, FeatureCollection or bare geometry
// and returns every line it contains.
func ParseShape(shapeID int, data []byte) ([]models.RouteFeature, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("shape %d: invalid json: %w", shapeID, err)
	}

	var geometries []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("shape %d: %w", shapeID, err)
		}
		for _, feature := range fc.Features {
			geometries = append(geometries, feature.Geometry)
		}
	case "Feature":
		feature, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("shape %d: %w", shapeID, err)
		}
		geometries = append(geometries, feature.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("shape %d: %w", shapeID, err)
		}
		geometries = append(geometries, g.Geometry())
	}

	var features []models.RouteFeature
	for _, g := range geometries {
		for _, line := range lines(g) {
			if len(line) < 2 {
				continue
			}
			coords := make([][2]float64, len(line))
			for i, p := range line {
				coords[i] = [2]float64{p[0], p[1]}
			}
			features = append(features, models.RouteFeature{ShapeID: shapeID, Coordinates: coords})
		}
	}

	if len(features) == 0 {
		return nil, fmt.Errorf("shape %d: no line geometry", shapeID)
	}
	return features, nil
}

func lines(g orb.Geometry) []orb.LineString {
	switch v := g.(type) {
	case orb.LineString:
		return []orb.LineString{v}
	case orb.MultiLineString:
		return v
	case orb.Collection:
		var out []orb.LineString
		for _, child := range v {
			out = append(out, lines(child)...)
		}
		return out
	default:
		return nil
	}
}

// ToFeatureCollection converts route features into GeoJSON for the map client
func ToFeatureCollection(routes []models.RouteFeature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range routes {
		line := make(orb.LineString, len(r.Coordinates))
		for i, c := range r.Coordinates {
			line[i] = orb.Point{c[0], c[1]}
		}
		feature := geojson.NewFeature(line)
		feature.Properties["shape_id"] = r.ShapeID
		fc.Append(feature)
	}
	return fc
}
