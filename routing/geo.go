package routing

import "math"

const EARTH_RADIUS_KM = 6371.0

// Coordinate is a WGS84 position in degrees, always ordered (Lat, Lon).
type Coordinate struct {
	Lat float64
	Lon float64
}

// Valid reports whether the coordinate is finite and within lat/lon ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Pair returns the coordinate as a [lat, lon] pair, the wire order.
func (c Coordinate) Pair() [2]float64 {
	return [2]float64{c.Lat, c.Lon}
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// HaversineDistance returns the great-circle distance in meters.
func HaversineDistance(coord1, coord2 Coordinate) float64 {
	phi1 := toRadians(coord1.Lat)
	phi2 := toRadians(coord2.Lat)
	deltaPhi := toRadians(coord2.Lat - coord1.Lat)
	deltaLambda := toRadians(coord2.Lon - coord1.Lon)

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EARTH_RADIUS_KM * c * 1000
}
