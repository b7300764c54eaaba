package delays

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/gumifu/van-bus-cast/models"
)

func TestLevelForDelay(t *testing.T) {
	tests := []struct {
		delay time.Duration
		want  models.DelayLevel
	}{
		{-2 * time.Minute, models.DelayOnTime},
		{30 * time.Second, models.DelayOnTime},
		{2 * time.Minute, models.DelaySlight},
		{4 * time.Minute, models.DelayMinor},
		{7 * time.Minute, models.DelayModerate},
		{12 * time.Minute, models.DelayMajor},
		{40 * time.Minute, models.DelaySevere},
	}
	for _, tc := range tests {
		t.Run(tc.delay.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, LevelForDelay(tc.delay))
		})
	}
}

func TestRandomEstimatorIsStableWithinPeriod(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e := NewRandomEstimator(42, time.Minute)
	e.now = func() time.Time { return now }

	for _, id := range []string{"023", "025", "041", "099", "410", "416"} {
		first := e.Estimate(models.DelayKindRoute, id)
		assert.GreaterOrEqual(t, int(first), 0)
		assert.LessOrEqual(t, int(first), int(models.MaxDelayLevel))
		now = now.Add(5 * time.Second)
		assert.Equal(t, first, e.Estimate(models.DelayKindRoute, id))
	}

	other := NewRandomEstimator(42, time.Minute)
	other.now = e.now
	assert.Equal(t, e.Estimate(models.DelayKindStop, "1001"), other.Estimate(models.DelayKindStop, "1001"))
}

func TestForecastSixHours(t *testing.T) {
	from := time.Date(2025, 3, 1, 9, 41, 0, 0, time.UTC)
	points := NewRandomEstimator(7, time.Minute).Forecast("099", from, 0)
	require.Len(t, points, ForecastHours)
	for i, p := range points {
		assert.Equal(t, from.Truncate(time.Hour).Add(time.Duration(i)*time.Hour), p.Hour)
		assert.Equal(t, p.Level.Name(), p.Name)
	}
}

func TestEstimates(t *testing.T) {
	est := Estimates(NewRandomEstimator(1, time.Minute), models.DelayKindRegion, []string{"vancouver", "surrey"})
	require.Len(t, est, 2)
	assert.Equal(t, "vancouver", est[0].ID)
	assert.Equal(t, models.DelayKindRegion, est[0].Kind)
	assert.Equal(t, est[0].Level.Symbol(), est[0].Symbol)
}

// fixedEstimator answers every question with one level
type fixedEstimator models.DelayLevel

func (f fixedEstimator) Estimate(models.DelayKind, string) models.DelayLevel {
	return models.DelayLevel(f)
}

func (f fixedEstimator) Forecast(routeID string, from time.Time, hours int) []models.ForecastPoint {
	return forecast(from, hours, func(time.Time) models.DelayLevel { return models.DelayLevel(f) })
}

func (f fixedEstimator) Source() string { return "fixed" }

func stopUpdate(stopID string, arrivalDelay int32) *gtfs.TripUpdate_StopTimeUpdate {
	return &gtfs.TripUpdate_StopTimeUpdate{
		StopId:  proto.String(stopID),
		Arrival: &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(arrivalDelay)},
	}
}

func testFeed(t *testing.T) []byte {
	t.Helper()
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1740819600),
		},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("t1"),
				TripUpdate: &gtfs.TripUpdate{
					Trip: &gtfs.TripDescriptor{TripId: proto.String("trip-1"), RouteId: proto.String("099")},
					StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{
						stopUpdate("1001", 540),
						stopUpdate("1002", 840),
					},
				},
			},
			{
				Id: proto.String("t2"),
				TripUpdate: &gtfs.TripUpdate{
					Trip:  &gtfs.TripDescriptor{TripId: proto.String("trip-2"), RouteId: proto.String("023")},
					Delay: proto.Int32(20),
				},
			},
		},
	}
	data, err := proto.Marshal(feed)
	require.NoError(t, err)
	return data
}

func TestFeedEstimatorPoll(t *testing.T) {
	payload := testFeed(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewFeedEstimator(srv.URL, fixedEstimator(models.DelaySevere))
	assert.True(t, f.LastChecked().IsZero())
	require.NoError(t, f.Poll(context.Background()))
	assert.False(t, f.LastChecked().IsZero())

	// route 099 averages 11.5 minutes
	assert.Equal(t, models.DelayMajor, f.Estimate(models.DelayKindRoute, "099"))
	assert.Equal(t, models.DelayModerate, f.Estimate(models.DelayKindStop, "1001"))
	assert.Equal(t, models.DelayOnTime, f.Estimate(models.DelayKindRoute, "023"))

	// not in the feed
	assert.Equal(t, models.DelaySevere, f.Estimate(models.DelayKindRoute, "410"))
	assert.Equal(t, models.DelaySevere, f.Estimate(models.DelayKindRegion, "vancouver"))

	points := f.Forecast("099", time.Now(), ForecastHours)
	require.Len(t, points, ForecastHours)
	assert.Equal(t, models.DelayMajor, points[0].Level)
	assert.Equal(t, models.DelaySevere, points[1].Level)
}

func TestFeedEstimatorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/garbage":
			w.Write([]byte("not a protobuf"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	f := NewFeedEstimator(srv.URL+"/down", fixedEstimator(models.DelayMinor))
	err := f.Poll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, models.DelayMinor, f.Estimate(models.DelayKindRoute, "099"))

	f = NewFeedEstimator(srv.URL+"/garbage", fixedEstimator(models.DelayMinor))
	assert.Error(t, f.Poll(context.Background()))
}

func TestFeedEstimatorRunWithZeroInterval(t *testing.T) {
	payload := testFeed(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewFeedEstimator(srv.URL, fixedEstimator(models.DelayMinor))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx, 0)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !f.LastChecked().IsZero() }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
