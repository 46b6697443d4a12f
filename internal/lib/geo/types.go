package geo

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Polyline represents an encoded polyline with optional decoded points
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline"`
	Points          []Point `json:"points"`
}

// GeoUtils interface defines geographic calculation utilities
type GeoUtils interface {
	// Calculate great-circle distance between two points in meters
	PointToPoint(p1, p2 Point) (float64, error)

	// Calculate total length of a point sequence in meters
	PathLength(points []Point) (float64, error)

	// Calculate minimum distance from point to polyline in meters
	PointToPolyline(point Point, polyline Polyline) (float64, error)

	// Calculate percentage of polyline1 that lies within thresholdMeters of polyline2
	PolylineOverlapPercentage(polyline1, polyline2 Polyline, thresholdMeters float64) (float64, error)

	// Decode an encoded polyline string to a point sequence
	DecodePolyline(encoded string) ([]Point, error)

	// Encode a point sequence to a polyline string
	EncodePolyline(points []Point) string

	// Calculate distance between coordinate pairs (convenience method)
	DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error)
}

// NewGeoUtils is implemented in geo.go
