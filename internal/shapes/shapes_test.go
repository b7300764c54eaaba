package shapes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gumifu/van-bus-cast/models"
)

const lineFeature = `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[-123.12,49.28],[-123.11,49.29]]}}`

// stubFetcher returns one line per shape unless the shape is listed as failing
type stubFetcher struct {
	failing map[int]bool
	calls   atomic.Int32
}

func (s *stubFetcher) FetchShape(ctx context.Context, shapeID int) ([]models.RouteFeature, error) {
	s.calls.Add(1)
	if s.failing[shapeID] {
		return nil, fmt.Errorf("%w: %d", ErrShapeNotFound, shapeID)
	}
	return []models.RouteFeature{{ShapeID: shapeID, Coordinates: [][2]float64{{0, 0}, {1, 1}}}}, nil
}

func TestLoadSkipsFailedShapes(t *testing.T) {
	fetcher := &stubFetcher{failing: map[int]bool{2: true}}
	loader := NewLoader(fetcher, 0)

	routes := loader.Load(context.Background(), []int{1, 2, 3})

	require.Len(t, routes, 2)
	assert.Equal(t, 1, routes[0].ShapeID)
	assert.Equal(t, 3, routes[1].ShapeID)
	assert.EqualValues(t, 3, fetcher.calls.Load())
}

func TestLoadEmptyAndAllFailing(t *testing.T) {
	fetcher := &stubFetcher{failing: map[int]bool{1: true, 2: true}}
	loader := NewLoader(fetcher, 2)

	empty := loader.Load(context.Background(), nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	failed := loader.Load(context.Background(), []int{1, 2})
	assert.NotNil(t, failed)
	assert.Empty(t, failed)
}

func TestLoadKeepsDuplicates(t *testing.T) {
	loader := NewLoader(&stubFetcher{}, 1)

	routes := loader.Load(context.Background(), []int{5, 5})

	assert.Len(t, routes, 2)
}

// blockingFetcher records the highest number of concurrent calls
type blockingFetcher struct {
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (b *blockingFetcher) FetchShape(ctx context.Context, shapeID int) ([]models.RouteFeature, error) {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.peak {
		b.peak = b.inFlight
	}
	b.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
	return []models.RouteFeature{{ShapeID: shapeID, Coordinates: [][2]float64{{0, 0}, {1, 1}}}}, nil
}

func TestLoadRespectsLimit(t *testing.T) {
	fetcher := &blockingFetcher{}
	loader := NewLoader(fetcher, 2)

	routes := loader.Load(context.Background(), []int{1, 2, 3, 4, 5, 6})

	assert.Len(t, routes, 6)
	assert.LessOrEqual(t, fetcher.peak, 2)
}

func TestParseShapeVariants(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantLines int
		wantErr   bool
	}{
		{"feature", lineFeature, 1, false},
		{"collection", `{"type":"FeatureCollection","features":[` + lineFeature + `,` + lineFeature + `]}`, 2, false},
		{"multilinestring", `{"type":"MultiLineString","coordinates":[[[0,0],[1,1]],[[2,2],[3,3]]]}`, 2, false},
		{"point only", `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}}`, 0, true},
		{"garbage", `not json`, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			routes, err := ParseShape(9, []byte(tc.data))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, routes, tc.wantLines)
			for _, r := range routes {
				assert.Equal(t, 9, r.ShapeID)
			}
		})
	}
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shape_42.geojson"), []byte(lineFeature), 0o644))
	fetcher := NewFileFetcher(dir)

	routes, err := fetcher.FetchShape(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, [2]float64{-123.12, 49.28}, routes[0].Coordinates[0])

	_, err = fetcher.FetchShape(context.Background(), 43)
	assert.True(t, errors.Is(err, ErrShapeNotFound))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shapes/shape_1.geojson":
			w.Write([]byte(lineFeature))
		case "/shapes/shape_2.geojson":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.URL + "/shapes")
	loader := NewLoader(fetcher, 4)

	routes := loader.Load(context.Background(), []int{1, 2, 3})
	require.Len(t, routes, 1)
	assert.Equal(t, 1, routes[0].ShapeID)

	_, err := fetcher.FetchShape(context.Background(), 3)
	assert.ErrorIs(t, err, ErrShapeNotFound)
}

func TestCachingFetcher(t *testing.T) {
	stub := &stubFetcher{failing: map[int]bool{2: true}}
	cache := NewCachingFetcher(stub, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	_, err := cache.FetchShape(context.Background(), 1)
	require.NoError(t, err)
	_, err = cache.FetchShape(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stub.calls.Load())

	_, err = cache.FetchShape(context.Background(), 2)
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Len(), "failures are not cached")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, cache.Purge())
	_, err = cache.FetchShape(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stub.calls.Load())
}

func TestToFeatureCollection(t *testing.T) {
	fc := ToFeatureCollection([]models.RouteFeature{
		{ShapeID: 3, Coordinates: [][2]float64{{0, 0}, {1, 1}}},
	})

	require.Len(t, fc.Features, 1)
	assert.Equal(t, 3, fc.Features[0].Properties["shape_id"])
	assert.Equal(t, "LineString", fc.Features[0].Geometry.GeoJSONType())
}

type memoryStore struct {
	mu     sync.Mutex
	data   map[int][]byte
	times  map[int]time.Time
	writes int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[int][]byte{}, times: map[int]time.Time{}}
}

func (m *memoryStore) GetShape(ctx context.Context, shapeID int) ([]byte, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[shapeID], m.times[shapeID], nil
}

func (m *memoryStore) PutShape(ctx context.Context, shapeID int, data []byte, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[shapeID] = data
	m.times[shapeID] = fetchedAt
	m.writes++
	return nil
}

func TestPersistentFetcher(t *testing.T) {
	stub := &stubFetcher{failing: map[int]bool{2: true}}
	store := newMemoryStore()
	p := NewPersistentFetcher(stub, store, time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	first, err := p.FetchShape(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.writes)

	again, err := p.FetchShape(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stub.calls.Load(), "served from the store")
	assert.Equal(t, first, again)

	now = now.Add(2 * time.Hour)
	_, err = p.FetchShape(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stub.calls.Load(), "stale entries are refetched")

	_, err = p.FetchShape(context.Background(), 2)
	assert.ErrorIs(t, err, ErrShapeNotFound)
	assert.Equal(t, 2, store.writes)
}
