package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/internal/translink"
	"github.com/gumifu/van-bus-cast/models"
)

// defaultBusStopRadius is the search radius in meters when none is given
const defaultBusStopRadius = 500

// DemoStops are the downtown SkyTrain stations served when TransLink is
// unreachable or demo data is requested.
var DemoStops = []models.TransitStop{
	{StopNo: 1001, Name: "Waterfront Station", Latitude: 49.2856, Longitude: -123.1110, Routes: "Canada Line, Expo Line, SeaBus, West Coast Express", Type: "SkyTrain"},
	{StopNo: 1002, Name: "Burrard Station", Latitude: 49.2850, Longitude: -123.1200, Routes: "Expo Line", Type: "SkyTrain"},
	{StopNo: 1003, Name: "Granville Station", Latitude: 49.2831, Longitude: -123.1165, Routes: "Expo Line", Type: "SkyTrain"},
	{StopNo: 1004, Name: "Vancouver City Centre Station", Latitude: 49.2825, Longitude: -123.1186, Routes: "Canada Line", Type: "SkyTrain"},
	{StopNo: 1005, Name: "Stadium–Chinatown Station", Latitude: 49.2796, Longitude: -123.1098, Routes: "Expo Line", Type: "SkyTrain"},
}

// TransitStopSource fetches stops from the TransLink RTTI API
type TransitStopSource interface {
	HasKey() bool
	Stops(ctx context.Context, q translink.StopsQuery) (json.RawMessage, error)
}

// BusStopHandler serves GET /api/bus-stops
type BusStopHandler struct {
	source TransitStopSource
}

// NewBusStopHandler creates a new handler backed by source
func NewBusStopHandler(source TransitStopSource) *BusStopHandler {
	return &BusStopHandler{source: source}
}

// NearbyDemoStops returns the demo stops within radius meters of (lat, lng)
func NearbyDemoStops(lat, lng, radius float64, stationsOnly bool) []models.TransitStop {
	out := make([]models.TransitStop, 0, len(DemoStops))
	for _, s := range DemoStops {
		if geo.Haversine(lat, lng, s.Latitude, s.Longitude) > radius {
			continue
		}
		if stationsOnly && !s.IsStation() {
			continue
		}
		out = append(out, s)
	}
	return out
}

// GetBusStops handles GET /api/bus-stops
// Query params: lat, lng, radius (meters, default 500), demo, stations_only
//
// With lat and lng the live API is tried first and the demo table, filtered by
// distance, is the fallback. demo=true without a location returns the whole
// demo table. Otherwise every stop is requested from the live API.
func (h *BusStopHandler) GetBusStops(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	q := r.URL.Query()
	useDemo := q.Get("demo") == "true"
	stationsOnly := q.Get("stations_only") == "true"

	radius := defaultBusStopRadius
	if raw := strings.TrimSpace(q.Get("radius")); raw != "" {
		// Fractional meters are truncated
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt32 || int(v) <= 0 {
			writeError(w, http.StatusBadRequest, "radius must be a positive number", map[string]interface{}{"radius": raw})
			return
		}
		radius = int(v)
	}

	lat, hasLat, errLat := queryFloat(r, "lat")
	lng, hasLng, errLng := queryFloat(r, "lng")
	if errLat != nil || errLng != nil || (hasLat && hasLng && !geo.IsValidCoordinate(lat, lng)) {
		writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates", nil)
		return
	}

	if hasLat && hasLng {
		if h.source.HasKey() {
			body, err := h.source.Stops(ctx, translink.StopsQuery{Lat: &lat, Lng: &lng, Radius: radius})
			if err == nil {
				writeRaw(w, http.StatusOK, body)
				return
			}
			log.Printf("Warning: TransLink stops request failed, falling back to demo data: %v", err)
		} else {
			log.Println("Warning: TransLink API key not set, falling back to demo data")
		}

		stops := NearbyDemoStops(lat, lng, float64(radius), stationsOnly)
		log.Printf("Returning %d nearby demo stops", len(stops))
		writeJSON(w, http.StatusOK, stops)
		return
	}

	if useDemo {
		writeJSON(w, http.StatusOK, DemoStops)
		return
	}

	body, err := h.source.Stops(ctx, translink.StopsQuery{})
	if err != nil {
		var statusErr *translink.StatusError
		switch {
		case errors.Is(err, translink.ErrNoAPIKey):
			writeError(w, http.StatusInternalServerError, "Translink API key not found", nil)
		case errors.As(err, &statusErr):
			writeError(w, statusErr.Code, "Failed to fetch bus stops", map[string]interface{}{
				"status": statusErr.Code,
			})
		default:
			log.Printf("Error calling TransLink API: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error", nil)
		}
		return
	}
	writeRaw(w, http.StatusOK, body)
}
