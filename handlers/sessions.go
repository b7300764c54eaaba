package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/internal/session"
	"github.com/gumifu/van-bus-cast/internal/stops"
	"github.com/gumifu/van-bus-cast/models"
)

// SessionManager creates and tracks map sessions
type SessionManager interface {
	Initialize(owner string, surface session.Surface, pins session.PinSource) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Teardown(id string) error
}

// SessionHandler exposes the map session state machine over HTTP.
// Each session draws on an in-memory surface whose snapshot the browser applies.
type SessionHandler struct {
	manager  SessionManager
	registry PinRegistry
	catalog  StopCatalog
}

// NewSessionHandler creates a new handler
func NewSessionHandler(manager SessionManager, registry PinRegistry, catalog StopCatalog) *SessionHandler {
	return &SessionHandler{manager: manager, registry: registry, catalog: catalog}
}

// CreateSessionRequest is the body of POST /api/sessions
type CreateSessionRequest struct {
	Ready bool `json:"ready"`
}

// SelectRequest is the body of POST /api/sessions/{id}/select.
// Stop is used when the catalog does not know StopID.
type SelectRequest struct {
	StopID string       `json:"stopId"`
	Stop   *models.Stop `json:"stop,omitempty"`
}

// LocationRequest is the body of POST /api/sessions/{id}/location
type LocationRequest struct {
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
	Denied bool     `json:"denied"`
}

// SelectResponse reports whether the route overlay of this selection was applied
type SelectResponse struct {
	Applied bool         `json:"applied"`
	Session session.View `json:"session"`
}

// readySetter is implemented by surfaces whose load state is driven by the client
type readySetter interface {
	SetReady(bool)
}

func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionId")
	s, err := h.manager.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found", map[string]interface{}{"sessionId": id})
		return nil, false
	}
	return s, true
}

func writeSessionError(w http.ResponseWriter, s *session.Session, err error) {
	if errors.Is(err, session.ErrSessionClosed) {
		writeError(w, http.StatusGone, "Session closed", map[string]interface{}{"sessionId": s.ID()})
		return
	}
	log.Printf("Session %s: %v", s.ID(), err)
	writeError(w, http.StatusInternalServerError, "Failed to update map", map[string]interface{}{"internal": err.Error()})
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session body", map[string]interface{}{"internal": err.Error()})
		return
	}

	owner := clientID(r)
	var pinSource session.PinSource
	if owner != "" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		store, err := h.registry.Store(ctx, owner)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load pinned stops", map[string]interface{}{"internal": err.Error()})
			return
		}
		pinSource = store
	}

	s, err := h.manager.Initialize(owner, session.NewMemorySurface(req.Ready), pinSource)
	if err != nil {
		writeSessionError(w, s, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.View())
}

// GetSession handles GET /api/sessions/{sessionId}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, s.View())
}

// MarkReady handles POST /api/sessions/{sessionId}/ready, sent when the map has loaded
func (h *SessionHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if rs, ok := s.Surface().(readySetter); ok {
		rs.SetReady(true)
	}
	if err := s.NotifyReady(); err != nil {
		writeSessionError(w, s, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// SelectStop handles POST /api/sessions/{sessionId}/select
func (h *SessionHandler) SelectStop(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid select body", map[string]interface{}{"internal": err.Error()})
		return
	}

	stop, err := h.catalog.Get(req.StopID)
	if err != nil {
		if !errors.Is(err, stops.ErrStopNotFound) || req.Stop == nil {
			writeError(w, http.StatusNotFound, "Stop not found", map[string]interface{}{"stopId": req.StopID})
			return
		}
		stop = *req.Stop
		if stop.StopID == "" {
			stop.StopID = req.StopID
		}
		if err := stop.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid stop", map[string]interface{}{"internal": err.Error()})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	applied, err := s.Select(ctx, stop)
	if err != nil {
		writeSessionError(w, s, err)
		return
	}
	writeJSON(w, http.StatusOK, SelectResponse{Applied: applied, Session: s.View()})
}

// CloseSelection handles POST /api/sessions/{sessionId}/close
func (h *SessionHandler) CloseSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Close(); err != nil {
		writeSessionError(w, s, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// SetLocation handles POST /api/sessions/{sessionId}/location.
// A denied or missing location places the marker at the default city center.
func (h *SessionHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req LocationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid location body", map[string]interface{}{"internal": err.Error()})
		return
	}

	var p *geo.Point
	if !req.Denied && req.Lat != nil && req.Lng != nil {
		if !geo.IsValidCoordinate(*req.Lat, *req.Lng) {
			writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates", nil)
			return
		}
		p = &geo.Point{Lon: *req.Lng, Lat: *req.Lat}
	}

	if _, err := s.SetUserLocation(p); err != nil {
		writeSessionError(w, s, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// DeleteSession handles DELETE /api/sessions/{sessionId}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if err := h.manager.Teardown(id); err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			writeError(w, http.StatusNotFound, "Session not found", map[string]interface{}{"sessionId": id})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session", map[string]interface{}{"internal": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
