package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/internal/stops"
	"github.com/gumifu/van-bus-cast/models"
)

// StopCatalog defines the stop lookups used by the handlers
type StopCatalog interface {
	Len() int
	Get(stopID string) (models.Stop, error)
	Search(query string, limit int) []models.Stop
	Nearby(lat, lon, radiusMeters float64, limit int) []models.NearbyStop
}

// StopHandler handles HTTP requests for static stop data
type StopHandler struct {
	catalog StopCatalog
}

// NewStopHandler creates a new handler with the given catalog
func NewStopHandler(catalog StopCatalog) *StopHandler {
	return &StopHandler{catalog: catalog}
}

// StopsResponse is the JSON response for GET /api/stops
type StopsResponse struct {
	Stops []models.Stop `json:"stops"`
	Count int           `json:"count"`
}

// NearbyStopsResponse is the JSON response for GET /api/stops/nearby
type NearbyStopsResponse struct {
	Stops        []models.NearbyStop `json:"stops"`
	Count        int                 `json:"count"`
	RadiusMeters float64             `json:"radiusMeters"`
}

// SearchStops handles GET /api/stops
// Query params: q (required), limit (optional, default 20)
func (h *StopHandler) SearchStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required", nil)
		return
	}

	results := h.catalog.Search(q, queryInt(r, "limit", 20))
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, StopsResponse{Stops: results, Count: len(results)})
}

// GetNearbyStops handles GET /api/stops/nearby
// Query params: lat, lng (required), radius (meters, default 500), limit (default 50)
func (h *StopHandler) GetNearbyStops(w http.ResponseWriter, r *http.Request) {
	lat, hasLat, errLat := queryFloat(r, "lat")
	lng, hasLng, errLng := queryFloat(r, "lng")
	if !hasLat || !hasLng || errLat != nil || errLng != nil || !geo.IsValidCoordinate(lat, lng) {
		writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates", nil)
		return
	}

	radius := float64(queryInt(r, "radius", defaultBusStopRadius))
	if radius <= 0 {
		writeError(w, http.StatusBadRequest, "radius must be positive", nil)
		return
	}

	results := h.catalog.Nearby(lat, lng, radius, queryInt(r, "limit", 50))
	writeJSON(w, http.StatusOK, NearbyStopsResponse{Stops: results, Count: len(results), RadiusMeters: radius})
}

// GetStop handles GET /api/stops/{stopId}
func (h *StopHandler) GetStop(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopId")

	stop, err := h.catalog.Get(stopID)
	if err != nil {
		if errors.Is(err, stops.ErrStopNotFound) {
			writeError(w, http.StatusNotFound, "Stop not found", map[string]interface{}{"stopId": stopID})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to retrieve stop", map[string]interface{}{"internal": err.Error()})
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, stop)
}
