package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gumifu/van-bus-cast/internal/regions"
	"github.com/gumifu/van-bus-cast/models"
)

// levelEstimator returns the same level for everything
type levelEstimator models.DelayLevel

func (l levelEstimator) Estimate(kind models.DelayKind, id string) models.DelayLevel {
	return models.DelayLevel(l)
}

func (l levelEstimator) Forecast(routeID string, from time.Time, hours int) []models.ForecastPoint {
	out := make([]models.ForecastPoint, hours)
	for i := range out {
		out[i] = models.ForecastPoint{Hour: from.Add(time.Duration(i) * time.Hour), Level: models.DelayLevel(l)}
	}
	return out
}

func (l levelEstimator) Source() string { return "fixed" }

func newDelayRouter() http.Handler {
	h := NewDelayHandler(levelEstimator(models.DelayMinor), regions.Default())
	r := chi.NewRouter()
	r.Get("/api/delays/regions", h.GetRegionDelays)
	r.Get("/api/delays/stops", h.GetStopDelays)
	r.Get("/api/delays/routes", h.GetRouteDelays)
	r.Get("/api/delays/routes/{routeId}/forecast", h.GetRouteForecast)
	return r
}

func decodeDelays(t *testing.T, body []byte) models.DelaysResponse {
	t.Helper()
	var resp models.DelaysResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestRegionDelaysDefaultToConfiguredRegions(t *testing.T) {
	rec := serve(newDelayRouter(), "/api/delays/regions")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeDelays(t, rec.Body.Bytes())
	assert.Equal(t, len(regions.Default().IDs()), resp.Count)
	assert.Equal(t, "fixed", resp.Source)
	for _, e := range resp.Estimates {
		assert.Equal(t, models.DelayKindRegion, e.Kind)
		assert.Equal(t, models.DelayMinor, e.Level)
		assert.Equal(t, "Minor Delay", e.Name)
	}
}

func TestStopAndRouteDelays(t *testing.T) {
	router := newDelayRouter()

	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/delays/stops").Code)

	rec := serve(router, "/api/delays/stops?ids=50001,%2050002,")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeDelays(t, rec.Body.Bytes())
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "50002", resp.Estimates[1].ID)

	rec = serve(router, "/api/delays/routes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, len(DefaultRoutes), decodeDelays(t, rec.Body.Bytes()).Count)

	rec = serve(router, "/api/delays/routes?ids=099")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeDelays(t, rec.Body.Bytes()).Count)
}

func TestRouteForecast(t *testing.T) {
	router := newDelayRouter()

	rec := serve(router, "/api/delays/routes/099/forecast")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "099", resp.RouteID)
	assert.Len(t, resp.Forecast, 6)

	rec = serve(router, "/api/delays/routes/099/forecast?hours=3")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Forecast, 3)

	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/delays/routes/099/forecast?hours=0").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, "/api/delays/routes/099/forecast?hours=25").Code)
}
