package models

import "errors"

// RouteIndexEntry is one row of the prebuilt route bounding-box index
type RouteIndexEntry struct {
	ShapeID int        `json:"shape_id"`
	BBox    [4]float64 `json:"bbox"` // [minLon, minLat, maxLon, maxLat]
}

// Validate checks the bbox is well-formed
func (e *RouteIndexEntry) Validate() error {
	if e.BBox[0] > e.BBox[2] {
		return errors.New("bbox minLon greater than maxLon")
	}
	if e.BBox[1] > e.BBox[3] {
		return errors.New("bbox minLat greater than maxLat")
	}
	return nil
}

// RouteFeature is a route line geometry for one shape
type RouteFeature struct {
	ShapeID     int          `json:"shapeId"`
	Coordinates [][2]float64 `json:"coordinates"` // ordered [lon, lat] vertices
}

// NearbyRoutesResponse is the JSON response for GET /api/routes/nearby
type NearbyRoutesResponse struct {
	ShapeIDs []int          `json:"shapeIds"`
	Routes   []RouteFeature `json:"routes"`
	Count    int            `json:"count"`
}
