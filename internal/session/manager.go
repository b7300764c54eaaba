package session

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gumifu/van-bus-cast/models"
)

var (
	ErrUnknownSession = errors.New("session not found")
	ErrSessionClosed  = errors.New("session closed")
)

// View is the JSON shape of a session
type View struct {
	ID           string                `json:"id"`
	Owner        string                `json:"owner,omitempty"`
	Epoch        uint64                `json:"epoch"`
	Selection    models.SelectionState `json:"selection"`
	UserLocation *[2]float64           `json:"userLocation,omitempty"`
	RouteCount   int                   `json:"routeCount"`
	Pending      bool                  `json:"pending"`
	Surface      *SurfaceState         `json:"surface,omitempty"`
}

// snapshotter is implemented by surfaces that can report their registry
type snapshotter interface {
	Snapshot() SurfaceState
}

// View returns a snapshot of the session and its surface
func (s *Session) View() View {
	s.mu.Lock()
	s.touchLocked()
	v := View{
		ID:         s.id,
		Owner:      s.owner,
		Epoch:      s.epoch,
		Selection:  s.selectionCopyLocked(),
		RouteCount: len(s.routes),
		Pending:    s.pending,
	}
	if s.userLocation != nil {
		ll := s.userLocation.LngLat()
		v.UserLocation = &ll
	}
	s.mu.Unlock()

	if snap, ok := s.surface.(snapshotter); ok {
		state := snap.Snapshot()
		v.Surface = &state
	}
	return v
}

// Manager tracks the live sessions
type Manager struct {
	resolver Resolver
	opts     Options
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions resolve routes through resolver
func NewManager(resolver Resolver, opts Options) *Manager {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultOptions().RetryDelay
	}
	if opts.StopsDataURL == "" {
		opts.StopsDataURL = DefaultOptions().StopsDataURL
	}
	return &Manager{
		resolver: resolver,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Initialize creates a session bound to surface and runs the first reconciliation.
// pins may be nil for anonymous clients.
func (m *Manager) Initialize(owner string, surface Surface, pins PinSource) (*Session, error) {
	s := newSession(uuid.NewString(), owner, surface, m.resolver, pins, m.opts, m.now)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	if err := s.Reconcile(); err != nil {
		return s, err
	}
	log.Printf("Session %s initialized (owner=%q, ready=%v)", s.id, owner, surface.Ready())
	return s, nil
}

// Get returns a live session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ForOwner returns the owner's sessions ordered by ID
func (m *Manager) ForOwner(owner string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.owner == owner {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ReconcileOwner redraws every session of owner, e.g. after the pin set changed
func (m *Manager) ReconcileOwner(owner string) {
	for _, s := range m.ForOwner(owner) {
		if err := s.Reconcile(); err != nil {
			log.Printf("Warning: reconcile of session %s failed: %v", s.id, err)
		}
	}
}

// Teardown removes the session and everything it registered on its surface
func (m *Manager) Teardown(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	s.teardown()
	log.Printf("Session %s torn down", id)
	return nil
}

// Shutdown tears down all sessions
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.teardown()
	}
}

// Sweep tears down sessions not used for longer than idle, e.g. tabs closed
// without a DELETE. It returns the number of sessions removed.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if err := m.Teardown(id); err == nil {
			n++
		}
	}
	if n > 0 {
		log.Printf("Swept %d idle sessions", n)
	}
	return n
}

// HasOwner reports whether owner has a live session
func (m *Manager) HasOwner(owner string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.owner == owner {
			return true
		}
	}
	return false
}

// RunSweeper calls Sweep every interval until ctx is done.
// afterSweep, when set, runs after each pass.
func (m *Manager) RunSweeper(ctx context.Context, interval, idle time.Duration, afterSweep func()) {
	if interval <= 0 || idle <= 0 {
		log.Println("Warning: idle session sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(idle)
			if afterSweep != nil {
				afterSweep()
			}
		}
	}
}
