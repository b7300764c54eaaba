package models

import "time"

// PinnedStop is the snapshot kept for a stop the user pinned
type PinnedStop struct {
	StopID    string    `json:"stopId"`
	Name      string    `json:"name,omitempty"`
	Code      string    `json:"code,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Routes    []string  `json:"routes,omitempty"`
	PinnedAt  time.Time `json:"pinnedAt"`
}

// SnapshotFromStop builds a pin snapshot from catalog data
func SnapshotFromStop(s Stop, at time.Time) PinnedStop {
	return PinnedStop{
		StopID:    s.StopID,
		Name:      s.Name,
		Code:      s.Code,
		Longitude: s.Longitude,
		Latitude:  s.Latitude,
		Routes:    s.RouteShortNames,
		PinnedAt:  at.UTC(),
	}
}

// PinnedStopsResponse is the JSON response for GET /api/pins
type PinnedStopsResponse struct {
	StopIDs []string     `json:"stopIds"`
	Stops   []PinnedStop `json:"stops"`
	Count   int          `json:"count"`
}
