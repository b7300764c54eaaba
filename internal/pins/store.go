package pins

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gumifu/van-bus-cast/models"
)

// ErrInvalidOwner is returned for an empty owner key
var ErrInvalidOwner = errors.New("owner is required")

// Repository persists one pinned-stops payload per owner.
// Load returns (nil, nil) when the owner has nothing stored.
type Repository interface {
	LoadPins(ctx context.Context, owner string) ([]byte, error)
	SavePins(ctx context.Context, owner string, payload []byte) error
	DeletePins(ctx context.Context, owner string) error
}

// Store is the pinned-stop set of one owner.
// Every mutation is written through to the repository before memory changes,
// so a failed write leaves the in-memory set untouched.
type Store struct {
	owner string
	repo  Repository

	mu    sync.RWMutex
	stops map[string]models.PinnedStop
}

// Open loads the owner's pins, migrating and rewriting legacy payloads
func Open(ctx context.Context, repo Repository, owner string) (*Store, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrInvalidOwner
	}

	payload, err := repo.LoadPins(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load pins for %s: %w", owner, err)
	}

	doc, migrated, err := Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pins for %s: %w", owner, err)
	}

	s := &Store{owner: owner, repo: repo, stops: doc.Stops}
	if migrated {
		log.Printf("Migrating legacy pinned stops for %s (%d stops)", owner, len(doc.Stops))
		if err := s.persist(ctx, doc.Stops); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Owner returns the owner key
func (s *Store) Owner() string {
	return s.owner
}

// Pin adds a stop snapshot. Pinning a stop that is already pinned is a no-op
// and keeps the first snapshot, so Unpin after Pin restores the previous set
// whenever the stop was not pinned before.
func (s *Store) Pin(ctx context.Context, stop models.PinnedStop) error {
	if strings.TrimSpace(stop.StopID) == "" {
		return errors.New("stop_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stops[stop.StopID]; ok {
		return nil
	}

	next := s.copyLocked()
	next[stop.StopID] = stop
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.stops = next
	return nil
}

// Unpin removes a stop. Unpinning a stop that is not pinned is a no-op.
func (s *Store) Unpin(ctx context.Context, stopID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stops[stopID]; !ok {
		return nil
	}

	next := s.copyLocked()
	delete(next, stopID)
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.stops = next
	return nil
}

// Toggle pins an unpinned stop or unpins a pinned one, returning the new state
func (s *Store) Toggle(ctx context.Context, stop models.PinnedStop) (bool, error) {
	if s.IsPinned(stop.StopID) {
		return false, s.Unpin(ctx, stop.StopID)
	}
	return true, s.Pin(ctx, stop)
}

// IsPinned reports membership in the pinned set
func (s *Store) IsPinned(stopID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stops[stopID]
	return ok
}

// List returns the pinned stops sorted by stop ID
func (s *Store) List() []models.PinnedStop {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.PinnedStop, 0, len(s.stops))
	for _, stop := range s.stops {
		out = append(out, stop)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StopID < out[j].StopID })
	return out
}

// IDs returns the pinned stop IDs, sorted
func (s *Store) IDs() []string {
	stops := s.List()
	ids := make([]string, len(stops))
	for i, stop := range stops {
		ids[i] = stop.StopID
	}
	return ids
}

func (s *Store) copyLocked() map[string]models.PinnedStop {
	next := make(map[string]models.PinnedStop, len(s.stops)+1)
	for id, stop := range s.stops {
		next[id] = stop
	}
	return next
}

// persist writes the set; an empty set removes the stored payload entirely
func (s *Store) persist(ctx context.Context, stops map[string]models.PinnedStop) error {
	if len(stops) == 0 {
		if err := s.repo.DeletePins(ctx, s.owner); err != nil {
			return fmt.Errorf("failed to clear pins for %s: %w", s.owner, err)
		}
		return nil
	}

	payload, err := Encode(Document{Stops: stops})
	if err != nil {
		return fmt.Errorf("failed to encode pins: %w", err)
	}
	if err := s.repo.SavePins(ctx, s.owner, payload); err != nil {
		return fmt.Errorf("failed to save pins for %s: %w", s.owner, err)
	}
	return nil
}

// Registry opens and caches one Store per owner.
// Stores not requested for a while are dropped by Evict and reopened from the
// repository on next use.
type Registry struct {
	repo Repository
	now  func() time.Time

	mu       sync.Mutex
	stores   map[string]*Store
	lastUsed map[string]time.Time
}

// NewRegistry creates a registry over repo
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:     repo,
		now:      time.Now,
		stores:   make(map[string]*Store),
		lastUsed: make(map[string]time.Time),
	}
}

// Len returns the number of cached stores
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Evict drops stores unused for longer than idle. Owners for which inUse
// reports true are kept so open maps keep sharing the same Store.
func (r *Registry) Evict(idle time.Duration, inUse func(owner string) bool) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for owner := range r.stores {
		if !r.lastUsed[owner].Before(cutoff) {
			continue
		}
		if inUse != nil && inUse(owner) {
			continue
		}
		delete(r.stores, owner)
		delete(r.lastUsed, owner)
		n++
	}
	return n
}

// Store returns the owner's store, opening it on first use
func (r *Registry) Store(ctx context.Context, owner string) (*Store, error) {
	owner = strings.TrimSpace(owner)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[owner]; ok {
		r.lastUsed[owner] = r.now()
		return s, nil
	}
	s, err := Open(ctx, r.repo, owner)
	if err != nil {
		return nil, err
	}
	r.stores[owner] = s
	r.lastUsed[owner] = r.now()
	return s, nil
}

// MemoryRepository keeps payloads in a map. Used for tests and when no database is configured.
type MemoryRepository struct {
	mu       sync.Mutex
	payloads map[string][]byte
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{payloads: make(map[string][]byte)}
}

// LoadPins returns a copy of the stored payload, or nil
func (m *MemoryRepository) LoadPins(ctx context.Context, owner string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payloads[owner]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), p...), nil
}

// SavePins stores a copy of payload
func (m *MemoryRepository) SavePins(ctx context.Context, owner string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[owner] = append([]byte(nil), payload...)
	return nil
}

// DeletePins removes the owner's payload
func (m *MemoryRepository) DeletePins(ctx context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payloads, owner)
	return nil
}
