package delays

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/gumifu/van-bus-cast/models"
)

// ForecastHours is the length of the route outlook shown in the stop panel
const ForecastHours = 6

// Estimator assigns delay levels to regions, stops and routes
type Estimator interface {
	Estimate(kind models.DelayKind, id string) models.DelayLevel
	Forecast(routeID string, from time.Time, hours int) []models.ForecastPoint
	Source() string
}

// Estimates evaluates e for every id
func Estimates(e Estimator, kind models.DelayKind, ids []string) []models.DelayEstimate {
	out := make([]models.DelayEstimate, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewDelayEstimate(kind, id, e.Estimate(kind, id)))
	}
	return out
}

// RandomEstimator produces pseudo-random levels for demos.
// A level is stable for one (kind, id) within a period and changes between periods.
type RandomEstimator struct {
	seed   int64
	period time.Duration
	now    func() time.Time
}

// NewRandomEstimator creates an estimator whose levels change every period
func NewRandomEstimator(seed int64, period time.Duration) *RandomEstimator {
	if period <= 0 {
		period = time.Minute
	}
	return &RandomEstimator{seed: seed, period: period, now: time.Now}
}

// Source reports the estimates as simulated
func (e *RandomEstimator) Source() string {
	return "simulated"
}

// Estimate returns the level for (kind, id) in the current period
func (e *RandomEstimator) Estimate(kind models.DelayKind, id string) models.DelayLevel {
	return e.levelAt(string(kind)+":"+id, e.now())
}

// Forecast returns hourly levels for routeID starting at the hour of from
func (e *RandomEstimator) Forecast(routeID string, from time.Time, hours int) []models.ForecastPoint {
	return forecast(from, hours, func(hour time.Time) models.DelayLevel {
		return e.levelAt("forecast:"+routeID, hour)
	})
}

func (e *RandomEstimator) levelAt(key string, at time.Time) models.DelayLevel {
	h := fnv.New64a()
	h.Write([]byte(key))
	bucket := at.UnixNano() / int64(e.period)
	r := rand.New(rand.NewSource(e.seed ^ int64(h.Sum64()) ^ bucket))
	return models.DelayLevel(r.Intn(int(models.MaxDelayLevel) + 1))
}

// forecast builds hourly points starting at the hour containing from
func forecast(from time.Time, hours int, level func(time.Time) models.DelayLevel) []models.ForecastPoint {
	if hours <= 0 {
		hours = ForecastHours
	}
	start := from.Truncate(time.Hour)
	points := make([]models.ForecastPoint, 0, hours)
	for i := 0; i < hours; i++ {
		hour := start.Add(time.Duration(i) * time.Hour)
		l := level(hour).Clamp()
		points = append(points, models.ForecastPoint{Hour: hour, Level: l, Name: l.Name()})
	}
	return points
}

// LevelForDelay buckets a mean delay into a level
func LevelForDelay(d time.Duration) models.DelayLevel {
	switch {
	case d < time.Minute:
		return models.DelayOnTime
	case d < 3*time.Minute:
		return models.DelaySlight
	case d < 5*time.Minute:
		return models.DelayMinor
	case d < 10*time.Minute:
		return models.DelayModerate
	case d < 15*time.Minute:
		return models.DelayMajor
	default:
		return models.DelaySevere
	}
}
