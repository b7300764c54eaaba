package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/internal/shapes"
	"github.com/gumifu/van-bus-cast/models"
)

// RouteResolver shortlists route shapes near a point
type RouteResolver interface {
	ShapeIDs(lon, lat float64) []int
}

// ShapeLoader loads line geometry for shapes
type ShapeLoader interface {
	Load(ctx context.Context, shapeIDs []int) []models.RouteFeature
}

// RouteHandler handles HTTP requests for route lines
type RouteHandler struct {
	resolver RouteResolver
	loader   ShapeLoader
}

// NewRouteHandler creates a new handler
func NewRouteHandler(resolver RouteResolver, loader ShapeLoader) *RouteHandler {
	return &RouteHandler{resolver: resolver, loader: loader}
}

// GetNearbyRoutes handles GET /api/routes/nearby
// Query params: lng, lat (required), format=geojson (optional)
func (h *RouteHandler) GetNearbyRoutes(w http.ResponseWriter, r *http.Request) {
	lng, hasLng, errLng := queryFloat(r, "lng")
	lat, hasLat, errLat := queryFloat(r, "lat")
	if !hasLat || !hasLng || errLat != nil || errLng != nil || !geo.IsValidCoordinate(lat, lng) {
		writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	ids := h.resolver.ShapeIDs(lng, lat)
	routes := []models.RouteFeature{}
	if len(ids) > 0 {
		routes = h.loader.Load(ctx, ids)
	}

	if r.URL.Query().Get("format") == "geojson" {
		writeJSON(w, http.StatusOK, shapes.ToFeatureCollection(routes))
		return
	}
	writeJSON(w, http.StatusOK, models.NearbyRoutesResponse{ShapeIDs: ids, Routes: routes, Count: len(routes)})
}

// GetShape handles GET /api/routes/shapes/{shapeId}
func (h *RouteHandler) GetShape(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "shapeId")
	shapeID, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "shapeId must be an integer", map[string]interface{}{"shapeId": raw})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	routes := h.loader.Load(ctx, []int{shapeID})
	if len(routes) == 0 {
		writeError(w, http.StatusNotFound, "Shape not found", map[string]interface{}{"shapeId": shapeID})
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, shapes.ToFeatureCollection(routes))
}
