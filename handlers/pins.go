package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gumifu/van-bus-cast/internal/pins"
	"github.com/gumifu/van-bus-cast/internal/stops"
	"github.com/gumifu/van-bus-cast/models"
)

// ClientIDHeader carries the anonymous client key that owns pins and sessions
const ClientIDHeader = "X-Client-ID"

// PinRegistry opens per-owner pin stores
type PinRegistry interface {
	Store(ctx context.Context, owner string) (*pins.Store, error)
}

// OwnerNotifier is told when an owner's pins change so open maps redraw
type OwnerNotifier interface {
	ReconcileOwner(owner string)
}

// PinHandler handles HTTP requests for pinned stops
type PinHandler struct {
	registry PinRegistry
	catalog  StopCatalog
	notifier OwnerNotifier
	now      func() time.Time
}

// NewPinHandler creates a new handler. notifier may be nil.
func NewPinHandler(registry PinRegistry, catalog StopCatalog, notifier OwnerNotifier) *PinHandler {
	return &PinHandler{registry: registry, catalog: catalog, notifier: notifier, now: time.Now}
}

func clientID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ClientIDHeader))
}

func (h *PinHandler) store(w http.ResponseWriter, r *http.Request) (*pins.Store, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s, err := h.registry.Store(ctx, clientID(r))
	if err != nil {
		if errors.Is(err, pins.ErrInvalidOwner) {
			writeError(w, http.StatusBadRequest, ClientIDHeader+" header is required", nil)
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to load pinned stops", map[string]interface{}{"internal": err.Error()})
		return nil, false
	}
	return s, true
}

func pinsResponse(s *pins.Store) models.PinnedStopsResponse {
	list := s.List()
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.StopID
	}
	return models.PinnedStopsResponse{StopIDs: ids, Stops: list, Count: len(list)}
}

// ListPins handles GET /api/pins
func (h *PinHandler) ListPins(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, pinsResponse(s))
}

// PutPin handles PUT /api/pins/{stopId}
// The snapshot comes from the stop catalog; an optional JSON body fills in
// stops the catalog does not know.
func (h *PinHandler) PutPin(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopId")
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var body models.PinnedStop
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid pin body", map[string]interface{}{"internal": err.Error()})
		return
	}

	snapshot := body
	snapshot.StopID = stopID
	snapshot.PinnedAt = h.now().UTC()
	if stop, err := h.catalog.Get(stopID); err == nil {
		snapshot = models.SnapshotFromStop(stop, h.now())
	} else if !errors.Is(err, stops.ErrStopNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to look up stop", map[string]interface{}{"internal": err.Error()})
		return
	} else if body.Name == "" {
		writeError(w, http.StatusNotFound, "Stop not found", map[string]interface{}{"stopId": stopID})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.Pin(ctx, snapshot); err != nil {
		log.Printf("Failed to pin stop %s for %s: %v", stopID, s.Owner(), err)
		writeError(w, http.StatusInternalServerError, "Failed to pin stop", map[string]interface{}{"internal": err.Error()})
		return
	}

	h.notify(s.Owner())
	writeJSON(w, http.StatusOK, pinsResponse(s))
}

// DeletePin handles DELETE /api/pins/{stopId}
func (h *PinHandler) DeletePin(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopId")
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.Unpin(ctx, stopID); err != nil {
		log.Printf("Failed to unpin stop %s for %s: %v", stopID, s.Owner(), err)
		writeError(w, http.StatusInternalServerError, "Failed to unpin stop", map[string]interface{}{"internal": err.Error()})
		return
	}

	h.notify(s.Owner())
	writeJSON(w, http.StatusOK, pinsResponse(s))
}

func (h *PinHandler) notify(owner string) {
	if h.notifier != nil {
		h.notifier.ReconcileOwner(owner)
	}
}
