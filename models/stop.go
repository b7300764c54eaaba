package models

import (
	"errors"
	"strings"
)

// Stop is a boarding point from the static stops GeoJSON.
// Immutable reference data: stops are only ever selected or deselected.
type Stop struct {
	// Primary identifier
	StopID string `json:"stopId"`

	Name string `json:"name"`
	Code string `json:"code,omitempty"`

	// Position in GeoJSON order
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`

	// Optional attributes (absent in some feeds)
	WheelchairAccessible *bool    `json:"wheelchairAccessible,omitempty"`
	RouteShortNames      []string `json:"routeShortNames,omitempty"`
	TripHeadsigns        []string `json:"tripHeadsigns,omitempty"`
}

// Validate checks if the Stop model has valid data
func (s *Stop) Validate() error {
	if strings.TrimSpace(s.StopID) == "" {
		return errors.New("stop_id is required")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return errors.New("latitude out of range: must be between -90 and 90")
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return errors.New("longitude out of range: must be between -180 and 180")
	}
	return nil
}

// NearbyStop is a Stop annotated with its distance from a query point
type NearbyStop struct {
	Stop
	DistanceMeters float64 `json:"distanceMeters"`
}

// TransitStop mirrors the TransLink RTTI stop payload.
// The demo fallback table is expressed in the same shape so clients see one format.
type TransitStop struct {
	StopNo    int     `json:"StopNo"`
	Name      string  `json:"Name"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	Routes    string  `json:"Routes"`
	Type      string  `json:"Type,omitempty"`
}

// IsStation reports whether the stop is a rail/ferry station rather than a plain bus stop
func (s TransitStop) IsStation() bool {
	return s.Type != "" && s.Type != "Bus"
}
