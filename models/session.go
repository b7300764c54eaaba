package models

// SelectionState is the stop-selection half of a map session.
// At most one stop is selected; IsPanelOpen is true exactly when one is.
type SelectionState struct {
	SelectedStopID *string `json:"selectedStopId"`
	SelectedStop   *Stop   `json:"selectedStop"`
	IsPanelOpen    bool    `json:"isPanelOpen"`
}

// Region is a named area of the map with a preset camera
type Region struct {
	ID     string     `json:"id" yaml:"id"`
	Name   string     `json:"name" yaml:"name"`
	Center [2]float64 `json:"center" yaml:"center"` // [lon, lat]
	Zoom   float64    `json:"zoom" yaml:"zoom"`
	Radius float64    `json:"radiusMeters,omitempty" yaml:"radius_meters"`
}
