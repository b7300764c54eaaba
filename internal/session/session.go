package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/internal/shapes"
	"github.com/gumifu/van-bus-cast/models"
)

// Layer, source and marker keys managed by the reconciler
const (
	StopsSourceID  = "bus-stops"
	StopsLayerID   = "bus-stops-unclustered"
	RoutesSourceID = "nearby-routes"
	RoutesLayerID  = "nearby-routes-line"
	UserMarkerID   = "user-location"

	pinKeyPrefix   = "pin-"
	pinLayerSuffix = "-halo"
)

// Colors used by the stop layer paint rule
const (
	DefaultStopColor  = "#3b82f6"
	SelectedStopColor = "#ef4444"
	RouteLineColor    = "#f59e0b"
	PinColor          = "#facc15"
)

// Resolver finds route lines near a coordinate
type Resolver interface {
	Resolve(ctx context.Context, lon, lat float64) []models.RouteFeature
}

// PinSource lists the owner's pinned stops
type PinSource interface {
	List() []models.PinnedStop
}

// Options tune session behaviour
type Options struct {
	StopsDataURL string        // data URL for the stop source
	RetryDelay   time.Duration // delay between reconcile attempts while the map is loading
	MaxRetries   int           // timer retries before waiting for NotifyReady
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		StopsDataURL: "/data/stops.geojson",
		RetryDelay:   100 * time.Millisecond,
		MaxRetries:   50,
	}
}

// Session owns the map state of one browser map instance.
// All visual state is derived from the fields below by Reconcile.
type Session struct {
	id       string
	owner    string
	surface  Surface
	resolver Resolver
	pins     PinSource
	opts     Options

	mu           sync.Mutex
	selection    models.SelectionState
	userLocation *geo.Point
	routes       []models.RouteFeature
	epoch        uint64
	pinKeys      map[string]bool
	pending      bool
	retries      int
	retryTimer   *time.Timer
	closed       bool
	now          func() time.Time
	lastUsed     time.Time
}

func newSession(id, owner string, surface Surface, resolver Resolver, pins PinSource, opts Options, now func() time.Time) *Session {
	return &Session{
		id:       id,
		owner:    owner,
		surface:  surface,
		resolver: resolver,
		pins:     pins,
		opts:     opts,
		pinKeys:  make(map[string]bool),
		now:      now,
		lastUsed: now(),
	}
}

// LastUsed returns when the client last read or changed the session
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touchLocked() {
	s.lastUsed = s.now()
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// Owner returns the client key the session belongs to
func (s *Session) Owner() string {
	return s.owner
}

// Selection returns a copy of the selection state
func (s *Session) Selection() models.SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionCopyLocked()
}

func (s *Session) selectionCopyLocked() models.SelectionState {
	sel := models.SelectionState{IsPanelOpen: s.selection.IsPanelOpen}
	if s.selection.SelectedStopID != nil {
		id := *s.selection.SelectedStopID
		sel.SelectedStopID = &id
	}
	if s.selection.SelectedStop != nil {
		stop := *s.selection.SelectedStop
		sel.SelectedStop = &stop
	}
	return sel
}

// Epoch returns the current selection epoch
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Routes returns the route overlay currently drawn
func (s *Session) Routes() []models.RouteFeature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RouteFeature(nil), s.routes...)
}

// Pending reports whether a reconciliation is waiting for the map to load
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Select opens the panel on stop and draws the routes passing near it.
// The overlay of any previous selection is cleared first. If another Select or
// Close happens while routes are resolving, the stale result is discarded and
// applied is false.
func (s *Session) Select(ctx context.Context, stop models.Stop) (applied bool, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	s.touchLocked()
	s.epoch++
	epoch := s.epoch
	id := stop.StopID
	s.selection = models.SelectionState{SelectedStopID: &id, SelectedStop: &stop, IsPanelOpen: true}
	s.routes = nil
	err = s.reconcileLocked()
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	var routes []models.RouteFeature
	if s.resolver != nil {
		routes = s.resolver.Resolve(ctx, stop.Longitude, stop.Latitude)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.epoch != epoch {
		log.Printf("Session %s: discarding %d routes for stale selection %s", s.id, len(routes), id)
		return false, nil
	}
	s.routes = routes
	return true, s.reconcileLocked()
}

// Close returns to the no-selection state and clears the route overlay
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()
	s.epoch++
	s.selection = models.SelectionState{}
	s.routes = nil
	return s.reconcileLocked()
}

// SetUserLocation replaces the user-location marker.
// A nil point (geolocation denied or unavailable) falls back to geo.DefaultLocation.
func (s *Session) SetUserLocation(p *geo.Point) (geo.Point, error) {
	loc := geo.DefaultLocation
	if p != nil && geo.IsValidCoordinate(p.Lat, p.Lon) {
		loc = *p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return loc, ErrSessionClosed
	}
	s.touchLocked()
	s.userLocation = &loc
	return loc, s.reconcileLocked()
}

// Reconcile makes the surface match the session state.
// Calling it repeatedly with unchanged state leaves the surface unchanged.
func (s *Session) Reconcile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileLocked()
}

// NotifyReady is called when the map reports it has loaded
func (s *Session) NotifyReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.retries = 0
	return s.reconcileLocked()
}

func (s *Session) reconcileLocked() error {
	if s.closed {
		return nil
	}
	if !s.surface.Ready() {
		s.deferLocked()
		return nil
	}

	s.pending = false
	s.retries = 0
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}

	if err := s.applyStopLayer(); err != nil {
		return fmt.Errorf("session %s: stop layer: %w", s.id, err)
	}
	if err := s.applyRoutes(); err != nil {
		return fmt.Errorf("session %s: route overlay: %w", s.id, err)
	}
	if err := s.applyPins(); err != nil {
		return fmt.Errorf("session %s: pins: %w", s.id, err)
	}
	if err := s.applyUserLocation(); err != nil {
		return fmt.Errorf("session %s: user location: %w", s.id, err)
	}
	return nil
}

// deferLocked schedules another attempt while the surface is loading.
// After MaxRetries the session stays pending until NotifyReady or the next state change.
func (s *Session) deferLocked() {
	s.pending = true
	if s.retryTimer != nil {
		return
	}
	if s.opts.MaxRetries > 0 && s.retries >= s.opts.MaxRetries {
		log.Printf("Session %s: map still not ready after %d retries, waiting for ready signal", s.id, s.retries)
		return
	}
	s.retries++
	s.retryTimer = time.AfterFunc(s.opts.RetryDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.retryTimer = nil
		if !s.pending {
			return
		}
		if err := s.reconcileLocked(); err != nil {
			log.Printf("Session %s: deferred reconcile failed: %v", s.id, err)
		}
	})
}

// SelectionColor is the declarative circle-color rule for the stop layer
func SelectionColor(selectedStopID *string) interface{} {
	if selectedStopID == nil {
		return DefaultStopColor
	}
	return []interface{}{
		"case",
		[]interface{}{"==", []interface{}{"to-string", []interface{}{"get", "stop_id"}}, *selectedStopID},
		SelectedStopColor,
		DefaultStopColor,
	}
}

func (s *Session) applyStopLayer() error {
	if err := s.ensureSource(StopsSourceID, s.opts.StopsDataURL); err != nil {
		return err
	}
	if err := s.ensureLayer(Layer{
		ID:     StopsLayerID,
		Type:   "circle",
		Source: StopsSourceID,
		Paint: map[string]interface{}{
			"circle-radius":       6,
			"circle-stroke-width": 2,
			"circle-stroke-color": "#333333",
		},
	}); err != nil {
		return err
	}
	return s.surface.SetPaintProperty(StopsLayerID, "circle-color", SelectionColor(s.selection.SelectedStopID))
}

func (s *Session) applyRoutes() error {
	if len(s.routes) == 0 {
		if err := s.surface.RemoveLayer(RoutesLayerID); err != nil {
			return err
		}
		return s.surface.RemoveSource(RoutesSourceID)
	}

	if err := s.ensureSource(RoutesSourceID, shapes.ToFeatureCollection(s.routes)); err != nil {
		return err
	}
	return s.ensureLayer(Layer{
		ID:     RoutesLayerID,
		Type:   "line",
		Source: RoutesSourceID,
		Paint: map[string]interface{}{
			"line-color":   RouteLineColor,
			"line-width":   4,
			"line-opacity": 0.8,
		},
	})
}

func (s *Session) applyPins() error {
	desired := make(map[string]models.PinnedStop)
	if s.pins != nil {
		for _, p := range s.pins.List() {
			desired[pinKeyPrefix+p.StopID] = p
		}
	}

	for key, p := range desired {
		if err := s.surface.SetMarker(Marker{
			ID:     key,
			Kind:   "pin",
			LngLat: [2]float64{p.Longitude, p.Latitude},
			Label:  p.Name,
		}); err != nil {
			return err
		}
		point := geojson.NewFeature(orb.Point{p.Longitude, p.Latitude})
		point.Properties["stop_id"] = p.StopID
		if err := s.ensureSource(key, point); err != nil {
			return err
		}
		if err := s.ensureLayer(Layer{
			ID:     key + pinLayerSuffix,
			Type:   "circle",
			Source: key,
			Paint: map[string]interface{}{
				"circle-radius":  12,
				"circle-color":   PinColor,
				"circle-opacity": 0.35,
			},
		}); err != nil {
			return err
		}
		s.pinKeys[key] = true
	}

	// Anything registered under a pin key that is no longer pinned goes, including
	// markers left over from before this session tracked them.
	stale := make(map[string]bool)
	for key := range s.pinKeys {
		if _, ok := desired[key]; !ok {
			stale[key] = true
		}
	}
	for _, id := range s.surface.MarkerIDs() {
		if len(id) > len(pinKeyPrefix) && id[:len(pinKeyPrefix)] == pinKeyPrefix {
			if _, ok := desired[id]; !ok {
				stale[id] = true
			}
		}
	}
	for key := range stale {
		if err := s.removePin(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) removePin(key string) error {
	if err := s.surface.RemoveLayer(key + pinLayerSuffix); err != nil {
		return err
	}
	if err := s.surface.RemoveSource(key); err != nil {
		return err
	}
	if err := s.surface.RemoveMarker(key); err != nil {
		return err
	}
	delete(s.pinKeys, key)
	return nil
}

func (s *Session) applyUserLocation() error {
	if s.userLocation == nil {
		return s.surface.RemoveMarker(UserMarkerID)
	}
	return s.surface.SetMarker(Marker{
		ID:     UserMarkerID,
		Kind:   "user",
		LngLat: s.userLocation.LngLat(),
		Label:  fmt.Sprintf("%.4f, %.4f", s.userLocation.Lat, s.userLocation.Lon),
	})
}

func (s *Session) ensureSource(id string, data interface{}) error {
	if s.surface.HasSource(id) {
		return s.surface.SetSourceData(id, data)
	}
	return s.surface.AddSource(id, data)
}

func (s *Session) ensureLayer(layer Layer) error {
	if s.surface.HasLayer(layer.ID) {
		return nil
	}
	return s.surface.AddLayer(layer)
}

// teardown removes everything this session registered and stops pending retries
func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pending = false
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}

	for key := range s.pinKeys {
		if err := s.removePin(key); err != nil {
			log.Printf("Session %s: teardown of %s failed: %v", s.id, key, err)
		}
	}
	_ = s.surface.RemoveMarker(UserMarkerID)
	_ = s.surface.RemoveLayer(RoutesLayerID)
	_ = s.surface.RemoveSource(RoutesSourceID)
	_ = s.surface.RemoveLayer(StopsLayerID)
	_ = s.surface.RemoveSource(StopsSourceID)
}

// Surface returns the surface the session draws on
func (s *Session) Surface() Surface {
	return s.surface
}
