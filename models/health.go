package models

import "time"

// Component is a data source or subsystem reported by the health endpoint
type Component string

const (
	ComponentStops      Component = "stops"
	ComponentRouteIndex Component = "route_index"
	ComponentDelayFeed  Component = "delay_feed"
	ComponentDatabase   Component = "database"
	ComponentTransLink  Component = "translink"
	ComponentSessions   Component = "sessions"
)

// ComponentHealth is the status of one component.
// Components without a refresh cycle leave LastUpdated nil and AgeSeconds -1.
type ComponentHealth struct {
	Component   Component  `json:"component"`
	Status      string     `json:"status"` // "healthy", "degraded", "unhealthy", "unknown"
	HealthScore int        `json:"healthScore"`
	Count       int        `json:"count"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	AgeSeconds  int        `json:"ageSeconds"`
	Detail      string     `json:"detail,omitempty"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status      string            `json:"status"` // "operational", "degraded", "outage"
	HealthScore int               `json:"healthScore"`
	Components  []ComponentHealth `json:"components"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// HealthStatus constants
const (
	StatusHealthy     = "healthy"
	StatusDegraded    = "degraded"
	StatusUnhealthy   = "unhealthy"
	StatusUnknown     = "unknown"
	StatusOperational = "operational"
	StatusOutage      = "outage"
)

// FreshnessStatus constants
const (
	FreshnessFresh       = "fresh"       // < 60s
	FreshnessStale       = "stale"       // 60s - 5min
	FreshnessUnavailable = "unavailable" // > 5min or no data
)

// CalculateFreshnessStatus returns the freshness status based on age
func CalculateFreshnessStatus(ageSeconds int) string {
	if ageSeconds < 0 {
		return FreshnessUnavailable
	}
	if ageSeconds < 60 {
		return FreshnessFresh
	}
	if ageSeconds < 300 {
		return FreshnessStale
	}
	return FreshnessUnavailable
}

// CalculateFreshnessScore returns a 0-100 score based on data age
func CalculateFreshnessScore(ageSeconds int) int {
	if ageSeconds < 0 {
		return 0
	}
	if ageSeconds <= 30 {
		return 100
	}
	if ageSeconds >= 300 {
		return 0
	}
	// Linear decay from 100 at 30s to 0 at 300s
	return 100 - ((ageSeconds - 30) * 100 / 270)
}

// CalculateHealthStatus returns health status based on score
func CalculateHealthStatus(score int) string {
	if score >= 80 {
		return StatusHealthy
	}
	if score >= 50 {
		return StatusDegraded
	}
	if score > 0 {
		return StatusUnhealthy
	}
	return StatusUnknown
}
