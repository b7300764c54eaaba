package shapes

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/gumifu/van-bus-cast/models"
)

// Loader resolves shape IDs into line features with concurrent fetches
type Loader struct {
	fetcher Fetcher
	limit   int
}

// NewLoader creates a loader. limit bounds in-flight fetches; <= 0 means unbounded.
func NewLoader(fetcher Fetcher, limit int) *Loader {
	return &Loader{fetcher: fetcher, limit: limit}
}

// Load fetches every shape concurrently and waits for all of them to settle.
// A failed shape is skipped with a warning; the rest of the batch still loads.
// Results keep the order of shapeIDs. Duplicates are fetched as given.
func (l *Loader) Load(ctx context.Context, shapeIDs []int) []models.RouteFeature {
	if len(shapeIDs) == 0 {
		return []models.RouteFeature{}
	}

	results := make([][]models.RouteFeature, len(shapeIDs))

	var g errgroup.Group
	if l.limit > 0 {
		g.SetLimit(l.limit)
	}
	for i, id := range shapeIDs {
		i, id := i, id
		g.Go(func() error {
			features, err := l.fetcher.FetchShape(ctx, id)
			if err != nil {
				log.Printf("Warning: skipping route shape %d: %v", id, err)
				return nil
			}
			results[i] = features
			return nil
		})
	}
	_ = g.Wait()

	flat := []models.RouteFeature{}
	for _, features := range results {
		flat = append(flat, features...)
	}
	return flat
}
