package shapes

import (
	"context"
	"log"
	"time"

	"github.com/gumifu/van-bus-cast/models"
)

// Store persists shape GeoJSON between restarts.
// GetShape returns nil data when the shape has not been stored.
type Store interface {
	GetShape(ctx context.Context, shapeID int) ([]byte, time.Time, error)
	PutShape(ctx context.Context, shapeID int, data []byte, fetchedAt time.Time) error
}

// PersistentFetcher serves shapes from a Store while they are younger than
// maxAge and refreshes them through next otherwise. Store errors are logged
// and never fail a fetch.
type PersistentFetcher struct {
	next   Fetcher
	store  Store
	maxAge time.Duration
	now    func() time.Time
}

// NewPersistentFetcher wraps next with a durable store
func NewPersistentFetcher(next Fetcher, store Store, maxAge time.Duration) *PersistentFetcher {
	return &PersistentFetcher{next: next, store: store, maxAge: maxAge, now: time.Now}
}

// FetchShape returns the stored shape while fresh, otherwise fetches and stores it
func (p *PersistentFetcher) FetchShape(ctx context.Context, shapeID int) ([]models.RouteFeature, error) {
	data, fetchedAt, err := p.store.GetShape(ctx, shapeID)
	if err != nil {
		log.Printf("Warning: shape store read for %d failed: %v", shapeID, err)
	} else if data != nil && p.now().Sub(fetchedAt) < p.maxAge {
		if features, err := ParseShape(shapeID, data); err == nil {
			return features, nil
		}
		log.Printf("Warning: stored shape %d is unreadable, refetching", shapeID)
	}

	features, err := p.next.FetchShape(ctx, shapeID)
	if err != nil {
		return nil, err
	}

	encoded, err := ToFeatureCollection(features).MarshalJSON()
	if err != nil {
		log.Printf("Warning: failed to encode shape %d: %v", shapeID, err)
		return features, nil
	}
	if err := p.store.PutShape(ctx, shapeID, encoded, p.now()); err != nil {
		log.Printf("Warning: shape store write for %d failed: %v", shapeID, err)
	}
	return features, nil
}
