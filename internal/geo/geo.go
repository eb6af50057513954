// Package geo provides the static ZIP-code coordinate index and
// great-circle math used by location search. The index is immutable
// after construction and needs no synchronization.
package geo

import "math"

// EarthRadiusMiles is the haversine radius constant.
const EarthRadiusMiles = 3959.0

// Coord is the location of a single ZIP code.
type Coord struct {
	Zip   string
	Lat   float64
	Lng   float64
	City  string
	State string
}

// Index maps ZIP codes to coordinates for the covered metro areas.
type Index struct {
	coords map[string]Coord
}

type metro struct {
	city  string
	state string
	lat   float64
	lng   float64
	zips  []string
}

// Metro coverage mirrors the ingestion feed's top-metro list, plus the
// Texas suburbs present in the demo seed data.
var metros = []metro{
	{"New York City", "NY", 40.7505, -73.9934, []string{"10001", "10101", "10016"}},
	{"Los Angeles", "CA", 33.9739, -118.2484, []string{"90001", "90210", "90028"}},
	{"Chicago", "IL", 41.8853, -87.6221, []string{"60601", "60616", "60611"}},
	{"Houston", "TX", 29.8131, -95.3098, []string{"77001", "77002", "77027"}},
	{"Phoenix", "AZ", 33.4484, -112.0740, []string{"85001", "85004", "85016"}},
	{"Dallas", "TX", 32.7842, -96.7975, []string{"75201", "75202", "75207"}},
	{"Austin", "TX", 30.2672, -97.7431, []string{"78701", "78704", "78731"}},
	{"San Antonio", "TX", 29.4680, -98.5375, []string{"78201", "78205", "78216"}},
	{"Philadelphia", "PA", 39.9526, -75.1652, []string{"19101", "19103", "19107"}},
	{"San Diego", "CA", 32.7157, -117.1611, []string{"92101", "92102", "92109"}},
	{"Jacksonville", "FL", 30.3322, -81.6557, []string{"32099", "32202", "32207"}},
	{"San Francisco", "CA", 37.7849, -122.4194, []string{"94102", "94103", "94109"}},
	{"Columbus", "OH", 39.9894, -83.0115, []string{"43201", "43206", "43215"}},
	{"Charlotte", "NC", 35.2271, -80.8431, []string{"28201", "28202", "28205"}},
	{"Indianapolis", "IN", 39.7684, -86.1581, []string{"46201", "46204", "46220"}},
	{"Seattle", "WA", 47.6062, -122.3321, []string{"98101", "98102", "98109"}},
	{"Denver", "CO", 39.7392, -104.9903, []string{"80201", "80202", "80205"}},
	{"Nashville", "TN", 36.1627, -86.7816, []string{"37201", "37203", "37212"}},
	{"Atlanta", "GA", 33.7490, -84.3880, []string{"30301", "30303", "30309"}},
	{"Miami", "FL", 25.7743, -80.1937, []string{"33101", "33131", "33139"}},
	{"Detroit", "MI", 42.3314, -83.0458, []string{"48201", "48207", "48226"}},
	{"Portland", "OR", 45.5051, -122.6309, []string{"97201", "97205", "97209"}},
	{"Las Vegas", "NV", 36.1716, -115.1391, []string{"89101", "89102", "89109"}},
	{"Minneapolis", "MN", 44.9833, -93.2667, []string{"55401", "55403", "55408"}},
	{"Tampa", "FL", 27.9506, -82.4572, []string{"33601", "33602", "33606"}},
	{"Fort Worth", "TX", 32.7511, -97.3296, []string{"76101"}},
	{"Round Rock", "TX", 30.5083, -97.6789, []string{"78664"}},
	{"Georgetown", "TX", 30.6333, -97.6780, []string{"78626"}},
}

// NewIndex builds the metro ZIP index.
func NewIndex() *Index {
	coords := make(map[string]Coord)
	for _, m := range metros {
		for _, zip := range m.zips {
			coords[zip] = Coord{Zip: zip, Lat: m.lat, Lng: m.lng, City: m.city, State: m.state}
		}
	}
	return &Index{coords: coords}
}

// Lookup returns the coordinate for a ZIP code.
func (i *Index) Lookup(zip string) (Coord, bool) {
	c, ok := i.coords[zip]
	return c, ok
}

// All returns a copy of every indexed coordinate.
func (i *Index) All() []Coord {
	out := make([]Coord, 0, len(i.coords))
	for _, c := range i.coords {
		out = append(out, c)
	}
	return out
}

// Haversine returns the great-circle distance in miles between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dlat := radians(lat2 - lat1)
	dlng := radians(lng2 - lng1)
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dlng/2)*math.Sin(dlng/2)
	return EarthRadiusMiles * 2 * math.Asin(math.Sqrt(a))
}

// BoundingBox returns a latitude/longitude box that contains every
// point within radiusMiles of the center. Used as a cheap index-backed
// pre-filter before the exact haversine pass.
func BoundingBox(lat, lng, radiusMiles float64) (latMin, latMax, lngMin, lngMax float64) {
	latDelta := radiusMiles / 69.0
	lngDelta := radiusMiles / (69.0 * math.Cos(radians(lat)))
	return lat - latDelta, lat + latDelta, lng - lngDelta, lng + lngDelta
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
