// Package geo maps free-text addresses onto stable points inside the
// San Francisco demo area.
package geo

// Bounding box every synthesized point falls in.
const (
	MinLat = 37.70
	MaxLat = 37.81
	MinLng = -122.51
	MaxLng = -122.35
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Synthesize hashes address into a point inside the bounding box. The same
// address always yields the same point.
func Synthesize(address string) Point {
	var hash int32
	for _, r := range address {
		hash = hash*31 + int32(r)
	}
	latStep := abs(int64(hash) % 1000)
	lngStep := abs(int64(hash>>10) % 1000)
	return Point{
		Lat: MinLat + float64(latStep)/1000*(MaxLat-MinLat),
		Lng: MinLng + float64(lngStep)/1000*(MaxLng-MinLng),
	}
}

// InBounds reports whether lat/lng lies inside the bounding box.
func InBounds(lat, lng float64) bool {
	return lat >= MinLat && lat <= MaxLat && lng >= MinLng && lng <= MaxLng
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
