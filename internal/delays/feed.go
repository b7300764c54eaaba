package delays

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/gumifu/van-bus-cast/models"
)

// FeedEstimator derives route and stop levels from a GTFS-RT trip updates feed.
// Anything the feed does not cover (regions, unseen IDs, future hours) is
// answered by the fallback estimator.
type FeedEstimator struct {
	url      string
	client   *http.Client
	fallback Estimator

	mu          sync.RWMutex
	routes      map[string]time.Duration
	stops       map[string]time.Duration
	lastChecked time.Time
}

// NewFeedEstimator creates an estimator for the trip updates feed at url
func NewFeedEstimator(url string, fallback Estimator) *FeedEstimator {
	return &FeedEstimator{
		url:      url,
		fallback: fallback,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		routes: make(map[string]time.Duration),
		stops:  make(map[string]time.Duration),
	}
}

// Source reports the estimates as coming from the GTFS-RT feed
func (f *FeedEstimator) Source() string {
	return "gtfs-rt"
}

// LastChecked returns the time of the last successful poll
func (f *FeedEstimator) LastChecked() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastChecked
}

// Estimate maps the mean feed delay of a route or stop to a level
func (f *FeedEstimator) Estimate(kind models.DelayKind, id string) models.DelayLevel {
	f.mu.RLock()
	var (
		d  time.Duration
		ok bool
	)
	switch kind {
	case models.DelayKindRoute:
		d, ok = f.routes[id]
	case models.DelayKindStop:
		d, ok = f.stops[id]
	}
	f.mu.RUnlock()

	if ok {
		return LevelForDelay(d)
	}
	return f.fallback.Estimate(kind, id)
}

// Forecast starts from the live route level and uses the fallback for later hours
func (f *FeedEstimator) Forecast(routeID string, from time.Time, hours int) []models.ForecastPoint {
	points := f.fallback.Forecast(routeID, from, hours)
	f.mu.RLock()
	d, ok := f.routes[routeID]
	f.mu.RUnlock()
	if ok && len(points) > 0 {
		l := LevelForDelay(d)
		points[0].Level = l
		points[0].Name = l.Name()
	}
	return points
}

// DefaultPollInterval is used by Run when given a non-positive interval
const DefaultPollInterval = time.Minute

// Run polls the feed until ctx is cancelled
func (f *FeedEstimator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Printf("Warning: invalid delay poll interval %v, using %v", interval, DefaultPollInterval)
		interval = DefaultPollInterval
	}

	if err := f.Poll(ctx); err != nil {
		log.Printf("Delay feed poll error: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.Poll(ctx); err != nil {
				log.Printf("Delay feed poll error: %v", err)
			}
		case <-ctx.Done():
			log.Println("Delay feed loop stopped")
			return
		}
	}
}

// Poll fetches the feed once and replaces the per-route and per-stop means
func (f *FeedEstimator) Poll(ctx context.Context) error {
	feed, err := f.fetchFeed(ctx)
	if err != nil {
		return err
	}

	routes, stops := meanDelays(feed)

	f.mu.Lock()
	f.routes = routes
	f.stops = stops
	f.lastChecked = time.Now().UTC()
	f.mu.Unlock()

	log.Printf("Delay feed: %d routes, %d stops", len(routes), len(stops))
	return nil
}

type accumulator struct {
	total time.Duration
	n     int
}

func (a *accumulator) add(d time.Duration) {
	a.total += d
	a.n++
}

// meanDelays averages stop time update delays per route and per stop.
// Arrival delay wins over departure delay; the trip-level delay is used when
// a trip carries no stop updates.
func meanDelays(feed *gtfs.FeedMessage) (map[string]time.Duration, map[string]time.Duration) {
	byRoute := make(map[string]*accumulator)
	byStop := make(map[string]*accumulator)
	get := func(m map[string]*accumulator, key string) *accumulator {
		a, ok := m[key]
		if !ok {
			a = &accumulator{}
			m[key] = a
		}
		return a
	}

	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		routeID := tu.GetTrip().GetRouteId()

		updates := 0
		for _, stu := range tu.GetStopTimeUpdate() {
			var delay *int32
			if stu.GetArrival() != nil && stu.GetArrival().Delay != nil {
				delay = stu.GetArrival().Delay
			} else if stu.GetDeparture() != nil && stu.GetDeparture().Delay != nil {
				delay = stu.GetDeparture().Delay
			}
			if delay == nil {
				continue
			}
			d := time.Duration(*delay) * time.Second
			updates++
			if routeID != "" {
				get(byRoute, routeID).add(d)
			}
			if stopID := stu.GetStopId(); stopID != "" {
				get(byStop, stopID).add(d)
			}
		}

		if updates == 0 && tu.Delay != nil && routeID != "" {
			get(byRoute, routeID).add(time.Duration(tu.GetDelay()) * time.Second)
		}
	}

	return means(byRoute), means(byStop)
}

func means(m map[string]*accumulator) map[string]time.Duration {
	out := make(map[string]time.Duration, len(m))
	for k, a := range m {
		out[k] = a.total / time.Duration(a.n)
	}
	return out
}

// fetchFeed fetches and decodes the GTFS-RT feed
func (f *FeedEstimator) fetchFeed(ctx context.Context) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf: %w", err)
	}
	return feed, nil
}
