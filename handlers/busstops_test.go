package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gumifu/van-bus-cast/internal/translink"
	"github.com/gumifu/van-bus-cast/models"
)

// stubStopSource mimics the TransLink client
type stubStopSource struct {
	key   bool
	body  string
	err   error
	calls []translink.StopsQuery
}

func (s *stubStopSource) HasKey() bool { return s.key }

func (s *stubStopSource) Stops(ctx context.Context, q translink.StopsQuery) (json.RawMessage, error) {
	s.calls = append(s.calls, q)
	if !s.key {
		return nil, translink.ErrNoAPIKey
	}
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.body), nil
}

func getBusStops(t *testing.T, source TransitStopSource, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/bus-stops"+query, nil)
	rec := httptest.NewRecorder()
	NewBusStopHandler(source).GetBusStops(rec, req)
	return rec
}

func decodeStops(t *testing.T, rec *httptest.ResponseRecorder) []models.TransitStop {
	t.Helper()
	var out []models.TransitStop
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func stopNames(stops []models.TransitStop) []string {
	names := make([]string, len(stops))
	for i, s := range stops {
		names[i] = s.Name
	}
	return names
}

func TestBusStopsDemoReturnsAllFive(t *testing.T) {
	rec := getBusStops(t, &stubStopSource{}, "?demo=true")
	require.Equal(t, http.StatusOK, rec.Code)

	stops := decodeStops(t, rec)
	require.Len(t, stops, 5)
	assert.Equal(t, 1001, stops[0].StopNo)
	assert.Equal(t, "Waterfront Station", stops[0].Name)
	assert.Equal(t, "Canada Line, Expo Line, SeaBus, West Coast Express", stops[0].Routes)
	assert.Equal(t, "Stadium–Chinatown Station", stops[4].Name)
}

func TestBusStopsFallbackFiltersByRadius(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantIn    []string
		wantNotIn []string
	}{
		{
			name:   "2km around downtown",
			query:  "?lat=49.2827&lng=-123.1207&radius=2000",
			wantIn: []string{"Waterfront Station", "Burrard Station", "Granville Station", "Vancouver City Centre Station", "Stadium–Chinatown Station"},
		},
		{
			name:      "500m around downtown",
			query:     "?lat=49.2827&lng=-123.1207&radius=500",
			wantIn:    []string{"Vancouver City Centre Station"},
			wantNotIn: []string{"Waterfront Station", "Stadium–Chinatown Station"},
		},
		{
			name:      "default radius",
			query:     "?lat=49.2827&lng=-123.1207",
			wantNotIn: []string{"Waterfront Station"},
		},
		{
			name:      "far away",
			query:     "?lat=49.1631&lng=-123.1336&radius=1000&stations_only=true",
			wantNotIn: []string{"Waterfront Station", "Burrard Station"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := getBusStops(t, &stubStopSource{}, tc.query)
			require.Equal(t, http.StatusOK, rec.Code)
			names := stopNames(decodeStops(t, rec))
			for _, n := range tc.wantIn {
				assert.Contains(t, names, n)
			}
			for _, n := range tc.wantNotIn {
				assert.NotContains(t, names, n)
			}
		})
	}
}

func TestBusStopsUpstreamFirst(t *testing.T) {
	source := &stubStopSource{key: true, body: `[{"StopNo":50001,"Name":"WB W HASTINGS ST FS SEYMOUR ST","BayNo":"N"}]`}
	rec := getBusStops(t, source, "?lat=49.2827&lng=-123.1207&radius=300")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, source.body, rec.Body.String(), "upstream payload is passed through")

	require.Len(t, source.calls, 1)
	assert.Equal(t, 300, source.calls[0].Radius)
	assert.Equal(t, 49.2827, *source.calls[0].Lat)
}

func TestBusStopsUpstreamFailureFallsBack(t *testing.T) {
	source := &stubStopSource{key: true, err: &translink.StatusError{Code: 503, Status: "503 Service Unavailable"}}
	rec := getBusStops(t, source, "?lat=49.2856&lng=-123.1110&radius=100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Waterfront Station"}, stopNames(decodeStops(t, rec)))
}

func TestBusStopsWithoutLocation(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		rec := getBusStops(t, &stubStopSource{}, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Translink API key not found")
	})

	t.Run("upstream status", func(t *testing.T) {
		source := &stubStopSource{key: true, err: &translink.StatusError{Code: 403, Status: "403 Forbidden"}}
		rec := getBusStops(t, source, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Failed to fetch bus stops", body.Error)
	})

	t.Run("network error", func(t *testing.T) {
		source := &stubStopSource{key: true, err: errors.New("dial tcp: connection refused")}
		rec := getBusStops(t, source, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("all stops", func(t *testing.T) {
		source := &stubStopSource{key: true, body: `[]`}
		rec := getBusStops(t, source, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, source.calls[0].Lat)
	})
}

func TestBusStopsBadInput(t *testing.T) {
	for _, q := range []string{"?radius=abc", "?radius=-5", "?radius=0.5", "?radius=NaN", "?radius=Inf", "?lat=x&lng=1", "?lat=95&lng=-123"} {
		rec := getBusStops(t, &stubStopSource{}, q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestBusStopsTruncatesFractionalRadius(t *testing.T) {
	source := &stubStopSource{key: true, body: `[]`}
	rec := getBusStops(t, source, "?lat=49.2827&lng=-123.1207&radius=500.5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, source.calls, 1)
	assert.Equal(t, 500, source.calls[0].Radius)
}
