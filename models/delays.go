package models

import "time"

// DelayKind is what a delay estimate is attached to
type DelayKind string

const (
	DelayKindRegion DelayKind = "region"
	DelayKindStop   DelayKind = "stop"
	DelayKindRoute  DelayKind = "route"
)

// DelayLevel is a severity bucket: 0 is on time, higher is worse
type DelayLevel int

const (
	DelayOnTime DelayLevel = iota
	DelaySlight
	DelayMinor
	DelayModerate
	DelayMajor
	DelaySevere
)

// MaxDelayLevel is the worst level an estimate can carry
const MaxDelayLevel = DelaySevere

var delayLevelNames = [...]string{"On Time", "Slight Delay", "Minor Delay", "Moderate Delay", "Major Delay", "Severe Delay"}
var delayLevelSymbols = [...]string{"🟢", "🟡", "🟠", "🔴", "🟣", "⚫"}

// Clamp forces the level into the valid range
func (l DelayLevel) Clamp() DelayLevel {
	if l < DelayOnTime {
		return DelayOnTime
	}
	if l > MaxDelayLevel {
		return MaxDelayLevel
	}
	return l
}

// Name returns the display name of the level
func (l DelayLevel) Name() string {
	return delayLevelNames[l.Clamp()]
}

// Symbol returns the badge symbol of the level
func (l DelayLevel) Symbol() string {
	return delayLevelSymbols[l.Clamp()]
}

// DelayEstimate maps a region, stop or route to a severity level
type DelayEstimate struct {
	Kind   DelayKind  `json:"kind"`
	ID     string     `json:"id"`
	Level  DelayLevel `json:"level"`
	Name   string     `json:"name"`
	Symbol string     `json:"symbol"`
}

// NewDelayEstimate fills in the display fields for a level
func NewDelayEstimate(kind DelayKind, id string, level DelayLevel) DelayEstimate {
	level = level.Clamp()
	return DelayEstimate{
		Kind:   kind,
		ID:     id,
		Level:  level,
		Name:   level.Name(),
		Symbol: level.Symbol(),
	}
}

// ForecastPoint is one hour of a route delay outlook
type ForecastPoint struct {
	Hour  time.Time  `json:"hour"`
	Level DelayLevel `json:"level"`
	Name  string     `json:"name"`
}

// DelaysResponse is the response for GET /api/delays/{kind}
type DelaysResponse struct {
	Estimates   []DelayEstimate `json:"estimates"`
	Count       int             `json:"count"`
	Source      string          `json:"source"`
	LastChecked time.Time       `json:"lastChecked"`
}

// ForecastResponse is the response for GET /api/delays/routes/{routeId}/forecast
type ForecastResponse struct {
	RouteID  string          `json:"routeId"`
	Forecast []ForecastPoint `json:"forecast"`
}
