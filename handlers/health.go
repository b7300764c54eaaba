package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gumifu/van-bus-cast/models"
)

// Probe reports the state of one component
type Probe func(ctx context.Context, now time.Time) models.ComponentHealth

// HealthHandler handles HTTP requests for health data
type HealthHandler struct {
	database func(ctx context.Context) error
	probes   []Probe
}

// NewHealthHandler creates a new handler. database may be nil when pins are kept in memory.
func NewHealthHandler(database func(ctx context.Context) error, probes ...Probe) *HealthHandler {
	return &HealthHandler{database: database, probes: probes}
}

// GetHealth handles GET /health
// Reports 503 when the database does not answer
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.database == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"database":  "memory",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	if err := h.database(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	})
}

// GetComponentHealth handles GET /api/health/components
func (h *HealthHandler) GetComponentHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	components := make([]models.ComponentHealth, 0, len(h.probes))
	for _, probe := range h.probes {
		components = append(components, probe(ctx, now))
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, calculateOverallHealth(components, now))
}

// calculateOverallHealth averages component scores into an overall status
func calculateOverallHealth(components []models.ComponentHealth, now time.Time) models.OverallHealth {
	if len(components) == 0 {
		return models.OverallHealth{
			Status:      models.StatusUnknown,
			Components:  components,
			LastUpdated: now,
		}
	}

	total := 0
	unhealthy := 0
	for _, c := range components {
		total += c.HealthScore
		if c.Status == models.StatusUnhealthy || c.Status == models.StatusUnknown {
			unhealthy++
		}
	}
	avg := total / len(components)

	status := models.StatusOperational
	if unhealthy > len(components)/2 {
		status = models.StatusOutage
	} else if unhealthy > 0 || avg < 80 {
		status = models.StatusDegraded
	}

	return models.OverallHealth{
		Status:      status,
		HealthScore: avg,
		Components:  components,
		LastUpdated: now,
	}
}

// CountProbe reports a static data set as healthy when it is non-empty
func CountProbe(component models.Component, count func() int) Probe {
	return func(ctx context.Context, now time.Time) models.ComponentHealth {
		n := count()
		score := 100
		if n == 0 {
			score = 0
		}
		return models.ComponentHealth{
			Component:   component,
			Status:      models.CalculateHealthStatus(score),
			HealthScore: score,
			Count:       n,
			AgeSeconds:  -1,
		}
	}
}

// FreshnessProbe scores a polled data source by the age of its last update
func FreshnessProbe(component models.Component, lastUpdated func() time.Time) Probe {
	return func(ctx context.Context, now time.Time) models.ComponentHealth {
		h := models.ComponentHealth{Component: component, AgeSeconds: -1}
		t := lastUpdated()
		if !t.IsZero() {
			h.LastUpdated = &t
			h.AgeSeconds = int(now.Sub(t).Seconds())
		}
		h.HealthScore = models.CalculateFreshnessScore(h.AgeSeconds)
		h.Status = models.CalculateHealthStatus(h.HealthScore)
		h.Detail = models.CalculateFreshnessStatus(h.AgeSeconds)
		return h
	}
}

// PingProbe reports whether a dependency answers
func PingProbe(component models.Component, ping func(ctx context.Context) error) Probe {
	return func(ctx context.Context, now time.Time) models.ComponentHealth {
		h := models.ComponentHealth{Component: component, AgeSeconds: -1, HealthScore: 100}
		if err := ping(ctx); err != nil {
			h.HealthScore = 0
			h.Detail = err.Error()
		}
		h.Status = models.CalculateHealthStatus(h.HealthScore)
		return h
	}
}

// ConfigResponse is the public client configuration
type ConfigResponse struct {
	MapboxToken     string     `json:"mapboxToken"`
	DefaultLocation [2]float64 `json:"defaultLocation"`
	StopsDataURL    string     `json:"stopsDataUrl"`
	APIURL          string     `json:"apiUrl"`
}

// ConfigHandler returns a handler for GET /api/config
func ConfigHandler(cfg ConfigResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		writeJSON(w, http.StatusOK, cfg)
	}
}
