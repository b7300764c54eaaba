package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantMeters             float64
		tolerance              float64
	}{
		{
			name: "Waterfront Station to downtown centre",
			lat1: 49.2827, lon1: -123.1207,
			lat2: 49.2856, lon2: -123.1110,
			wantMeters: 774,
			tolerance:  10,
		},
		{
			name: "same point",
			lat1: 49.2827, lon1: -123.1207,
			lat2: 49.2827, lon2: -123.1207,
			wantMeters: 0,
			tolerance:  0.001,
		},
		{
			name: "equator quarter circumference",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 90,
			wantMeters: math.Pi / 2 * earthRadiusMeters,
			tolerance:  1,
		},
		{
			name: "pole to pole",
			lat1: 90, lon1: 0,
			lat2: -90, lon2: 0,
			wantMeters: math.Pi * earthRadiusMeters,
			tolerance:  1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Haversine(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			assert.InDelta(t, tc.wantMeters, got, tc.tolerance)
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	points := [][2]float64{
		{49.2827, -123.1207},
		{49.2856, -123.1110},
		{49.1666, -123.1336},
		{-33.8688, 151.2093},
		{0, 0},
	}
	for _, a := range points {
		for _, b := range points {
			ab := Haversine(a[0], a[1], b[0], b[1])
			ba := Haversine(b[0], b[1], a[0], a[1])
			assert.InDelta(t, ab, ba, 1e-6)
		}
		assert.Zero(t, Haversine(a[0], a[1], a[0], a[1]))
	}
}

func TestBBoxContains(t *testing.T) {
	box := BBox{-123.2, 49.2, -123.0, 49.3}

	assert.True(t, box.Contains(-123.1, 49.25))
	assert.True(t, box.Contains(-123.2, 49.2), "corners are inclusive")
	assert.True(t, box.Contains(-123.0, 49.3))
	assert.False(t, box.Contains(-122.99, 49.25))
	assert.False(t, box.Contains(-123.1, 49.31))
}

func TestRadiusBoundsEnclosesCircle(t *testing.T) {
	lat, lon := 49.2827, -123.1207
	box := RadiusBounds(lat, lon, 1000)

	// Points 999m due north and due east must be inside the box
	north := lat + 999.0/earthRadiusMeters*180/math.Pi
	assert.True(t, box.Contains(lon, north))

	eastDeg := 999.0 / (earthRadiusMeters * math.Cos(lat*math.Pi/180)) * 180 / math.Pi
	assert.True(t, box.Contains(lon+eastDeg, lat))
	assert.False(t, box.Contains(lon+2*eastDeg, lat))
}

func TestBearing(t *testing.T) {
	assert.InDelta(t, 0, Bearing(0, 0, 1, 0), 0.001)
	assert.InDelta(t, 90, Bearing(0, 0, 0, 1), 0.001)
	assert.InDelta(t, 180, Bearing(1, 0, 0, 0), 0.001)
	assert.InDelta(t, 270, Bearing(0, 1, 0, 0), 0.001)
}

func TestLineLength(t *testing.T) {
	assert.Zero(t, LineLength(nil))
	line := [][2]float64{{0, 0}, {0, 1}, {0, 2}}
	assert.InDelta(t, 2*Haversine(0, 0, 1, 0), LineLength(line), 0.001)
}

func TestIsValidCoordinate(t *testing.T) {
	assert.True(t, IsValidCoordinate(49.28, -123.12))
	assert.False(t, IsValidCoordinate(0, 0))
	assert.False(t, IsValidCoordinate(91, 0))
	assert.False(t, IsValidCoordinate(45, 181))
	assert.False(t, IsValidCoordinate(math.NaN(), 1))
}
