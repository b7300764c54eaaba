package nearby

import (
	"context"

	"github.com/gumifu/van-bus-cast/models"
)

// Index shortlists shapes whose bounding box contains a point
type Index interface {
	Lookup(lon, lat float64) []int
}

// Loader turns shape IDs into line features
type Loader interface {
	Load(ctx context.Context, shapeIDs []int) []models.RouteFeature
}

// Resolver finds the route lines passing near a coordinate.
// No distance refinement is done after the bbox test, so non-convex shapes can
// produce false positives.
type Resolver struct {
	index  Index
	loader Loader
}

// NewResolver creates a resolver over index and loader
func NewResolver(index Index, loader Loader) *Resolver {
	return &Resolver{index: index, loader: loader}
}

// ShapeIDs returns the candidate shapes for (lon, lat)
func (r *Resolver) ShapeIDs(lon, lat float64) []int {
	return r.index.Lookup(lon, lat)
}

// Resolve returns the route features near (lon, lat).
// "No nearby routes" is an empty slice, never an error.
func (r *Resolver) Resolve(ctx context.Context, lon, lat float64) []models.RouteFeature {
	ids := r.ShapeIDs(lon, lat)
	if len(ids) == 0 {
		return []models.RouteFeature{}
	}
	return r.loader.Load(ctx, ids)
}
