package handlers

import (
	"net/http"

	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/models"
)

// RegionSource lists regions and finds those covering a point
type RegionSource interface {
	All() []models.Region
	Containing(lat, lon float64) []string
}

// RegionHandler serves the region selector data
type RegionHandler struct {
	regions RegionSource
}

// NewRegionHandler creates a new handler
func NewRegionHandler(regions RegionSource) *RegionHandler {
	return &RegionHandler{regions: regions}
}

// RegionsResponse is the JSON response for GET /api/regions
type RegionsResponse struct {
	Regions    []models.Region `json:"regions"`
	Count      int             `json:"count"`
	Containing []string        `json:"containing,omitempty"`
}

// GetRegions handles GET /api/regions
// Query params: lat, lng (optional) report which regions cover the point
func (h *RegionHandler) GetRegions(w http.ResponseWriter, r *http.Request) {
	all := h.regions.All()
	resp := RegionsResponse{Regions: all, Count: len(all)}

	lat, hasLat, errLat := queryFloat(r, "lat")
	lng, hasLng, errLng := queryFloat(r, "lng")
	if hasLat && hasLng {
		if errLat != nil || errLng != nil || !geo.IsValidCoordinate(lat, lng) {
			writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates", nil)
			return
		}
		resp.Containing = h.regions.Containing(lat, lng)
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, resp)
}
