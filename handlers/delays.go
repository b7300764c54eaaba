package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gumifu/van-bus-cast/internal/delays"
	"github.com/gumifu/van-bus-cast/models"
)

// DefaultRoutes are reported by GET /api/delays/routes when no ids are given
var DefaultRoutes = []string{"023", "025", "041", "099", "410", "416"}

// RegionLister lists the configured region IDs
type RegionLister interface {
	IDs() []string
}

// DelayHandler handles HTTP requests for delay estimates
type DelayHandler struct {
	estimator delays.Estimator
	regions   RegionLister
	now       func() time.Time
}

// NewDelayHandler creates a new handler with the given estimator
func NewDelayHandler(estimator delays.Estimator, regions RegionLister) *DelayHandler {
	return &DelayHandler{estimator: estimator, regions: regions, now: time.Now}
}

func (h *DelayHandler) respond(w http.ResponseWriter, kind models.DelayKind, ids []string) {
	estimates := delays.Estimates(h.estimator, kind, ids)
	w.Header().Set("Cache-Control", "public, max-age=30")
	writeJSON(w, http.StatusOK, models.DelaysResponse{
		Estimates:   estimates,
		Count:       len(estimates),
		Source:      h.estimator.Source(),
		LastChecked: h.now().UTC(),
	})
}

// GetRegionDelays handles GET /api/delays/regions
func (h *DelayHandler) GetRegionDelays(w http.ResponseWriter, r *http.Request) {
	ids := queryList(r, "ids")
	if len(ids) == 0 {
		ids = h.regions.IDs()
	}
	h.respond(w, models.DelayKindRegion, ids)
}

// GetStopDelays handles GET /api/delays/stops
// Query params: ids (required, comma-separated)
func (h *DelayHandler) GetStopDelays(w http.ResponseWriter, r *http.Request) {
	ids := queryList(r, "ids")
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids parameter is required", nil)
		return
	}
	h.respond(w, models.DelayKindStop, ids)
}

// GetRouteDelays handles GET /api/delays/routes
// Query params: ids (optional, comma-separated)
func (h *DelayHandler) GetRouteDelays(w http.ResponseWriter, r *http.Request) {
	ids := queryList(r, "ids")
	if len(ids) == 0 {
		ids = DefaultRoutes
	}
	h.respond(w, models.DelayKindRoute, ids)
}

// GetRouteForecast handles GET /api/delays/routes/{routeId}/forecast
// Query params: hours (optional, 1-24, default 6)
func (h *DelayHandler) GetRouteForecast(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")
	hours := queryInt(r, "hours", delays.ForecastHours)
	if hours < 1 || hours > 24 {
		writeError(w, http.StatusBadRequest, "hours must be between 1 and 24", map[string]interface{}{"hours": hours})
		return
	}

	writeJSON(w, http.StatusOK, models.ForecastResponse{
		RouteID:  routeID,
		Forecast: h.estimator.Forecast(routeID, h.now(), hours),
	})
}
