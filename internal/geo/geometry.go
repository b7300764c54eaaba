package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6371000

// DefaultLocation is downtown Vancouver, used when the client cannot report a position
var DefaultLocation = Point{Lon: -123.1207, Lat: 49.2827}

// Point is a WGS84 coordinate
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// LngLat returns the point in [lng, lat] order as used by GeoJSON and the map client
func (p Point) LngLat() [2]float64 {
	return [2]float64{p.Lon, p.Lat}
}

// BBox is an axis-aligned rectangle [minLon, minLat, maxLon, maxLat]
type BBox [4]float64

// Bound converts the box to an orb.Bound
func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b[0], b[1]},
		Max: orb.Point{b[2], b[3]},
	}
}

// Contains reports whether the point lies in the box, edges included
func (b BBox) Contains(lon, lat float64) bool {
	return b.Bound().Contains(orb.Point{lon, lat})
}

// Haversine calculates the distance between two points in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Bearing calculates the bearing from point 1 to point 2 in degrees (0-360)
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	x := math.Sin(deltaLambda) * math.Cos(phi2)
	y := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLambda)

	bearing := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// RadiusBounds returns a box that encloses every point within radiusMeters of (lat, lon).
// Used as a cheap prefilter before exact Haversine checks.
func RadiusBounds(lat, lon, radiusMeters float64) BBox {
	latDeg := radiusMeters / earthRadiusMeters * (180 / math.Pi)
	cosLat := math.Cos(lat * math.Pi / 180)
	lonDeg := 180.0
	if cosLat > 1e-9 {
		lonDeg = math.Min(latDeg/cosLat, 180)
	}
	return BBox{lon - lonDeg, lat - latDeg, lon + lonDeg, lat + latDeg}
}

// LineLength calculates the total length of a [lng, lat] line in meters
func LineLength(coords [][2]float64) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Haversine(
			coords[i-1][1], coords[i-1][0],
			coords[i][1], coords[i][0],
		)
	}
	return total
}

// IsValidCoordinate checks latitude and longitude ranges.
// (0,0) is rejected since it only shows up from missing data.
func IsValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
