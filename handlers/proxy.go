package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gumifu/van-bus-cast/internal/predict"
)

// PredictionSource is the prediction API
type PredictionSource interface {
	RegionalStatus(ctx context.Context) (*predict.Response, error)
	StopPredictions(ctx context.Context, stopID string) (*predict.Response, error)
}

// ProxyHandler relays the prediction API without caching
type ProxyHandler struct {
	source PredictionSource
}

// NewProxyHandler creates a new handler backed by source
func NewProxyHandler(source PredictionSource) *ProxyHandler {
	return &ProxyHandler{source: source}
}

// upstreamError is the body sent when the prediction API answers non-2xx
type upstreamError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	APIURL  string `json:"apiUrl,omitempty"`
}

func newUpstreamError(resp *predict.Response, withURL bool) upstreamError {
	details := string(resp.Body)
	if details == "" {
		details = "No error details"
	}
	e := upstreamError{
		Error:   fmt.Sprintf("API request failed: %d %s", resp.StatusCode, resp.StatusText()),
		Details: details,
	}
	if withURL {
		e.APIURL = resp.URL
	}
	return e
}

// GetRegionalStatus handles GET /api/regional-status
func (h *ProxyHandler) GetRegionalStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	resp, err := h.source.RegionalStatus(ctx)
	if err != nil {
		log.Printf("Error fetching regional status: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch regional status", nil)
		return
	}
	if !resp.OK() {
		log.Printf("Prediction API error: %d %s", resp.StatusCode, resp.StatusText())
		writeJSON(w, resp.StatusCode, newUpstreamError(resp, true))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeRaw(w, http.StatusOK, resp.Body)
}

// GetStopPredictions handles GET /api/stops/{stopId}/predictions
func (h *ProxyHandler) GetStopPredictions(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopId")
	if stopID == "" {
		writeError(w, http.StatusBadRequest, "stopId parameter is required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	resp, err := h.source.StopPredictions(ctx, stopID)
	if err != nil {
		log.Printf("Error fetching stop predictions: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch stop predictions", nil)
		return
	}
	if !resp.OK() {
		log.Printf("Prediction API error: %d %s", resp.StatusCode, resp.StatusText())
		writeJSON(w, resp.StatusCode, newUpstreamError(resp, false))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeRaw(w, http.StatusOK, resp.Body)
}
