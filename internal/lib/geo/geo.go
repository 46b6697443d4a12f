package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

const earthRadius = 6371000 // meters

// PointToPoint calculates great-circle distance between two points using Haversine formula
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}

	if p1.Latitude == p2.Latitude && p1.Longitude == p2.Longitude {
		return 0, nil
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c, nil
}

// PathLength calculates the total length of a point sequence in meters
func (g *geoUtils) PathLength(points []Point) (float64, error) {
	if len(points) < 2 {
		return 0, nil
	}

	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		segment, err := g.PointToPoint(points[i], points[i+1])
		if err != nil {
			return 0, err
		}
		total += segment
	}
	return total, nil
}

// PointToPolyline calculates minimum distance from point to polyline
func (g *geoUtils) PointToPolyline(point Point, polyline Polyline) (float64, error) {
	if !isValidCoordinate(point) {
		return 0, errors.New("invalid point coordinates")
	}

	if len(polyline.Points) == 0 {
		return 0, errors.New("polyline has no points")
	}

	if len(polyline.Points) == 1 {
		return g.PointToPoint(point, polyline.Points[0])
	}

	minDistance := math.Inf(1)
	for i := 0; i < len(polyline.Points)-1; i++ {
		distance := g.pointToSegmentDistance(point, polyline.Points[i], polyline.Points[i+1])
		if distance < minDistance {
			minDistance = distance
		}
	}

	return minDistance, nil
}

// pointToSegmentDistance calculates perpendicular distance from point to line segment
func (g *geoUtils) pointToSegmentDistance(point, segmentStart, segmentEnd Point) float64 {
	if segmentStart.Latitude == segmentEnd.Latitude && segmentStart.Longitude == segmentEnd.Longitude {
		distance, _ := g.PointToPoint(point, segmentStart)
		return distance
	}

	// Cross-track distance on a sphere. An approximation that holds well
	// for road-scale segment lengths.
	distanceToStart, _ := g.PointToPoint(point, segmentStart)
	distanceToEnd, _ := g.PointToPoint(point, segmentEnd)
	segmentLength, _ := g.PointToPoint(segmentStart, segmentEnd)

	if segmentLength < 1 {
		return math.Min(distanceToStart, distanceToEnd)
	}

	lat1 := segmentStart.Latitude * math.Pi / 180
	lon1 := segmentStart.Longitude * math.Pi / 180
	lat2 := segmentEnd.Latitude * math.Pi / 180
	lon2 := segmentEnd.Longitude * math.Pi / 180
	lat3 := point.Latitude * math.Pi / 180
	lon3 := point.Longitude * math.Pi / 180

	d13 := distanceToStart / earthRadius

	y := math.Sin(lon2-lon1) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1)
	bearing13 := math.Atan2(y, x)

	y = math.Sin(lon3-lon1) * math.Cos(lat3)
	x = math.Cos(lat1)*math.Sin(lat3) - math.Sin(lat1)*math.Cos(lat3)*math.Cos(lon3-lon1)
	bearing12 := math.Atan2(y, x)

	dxt := math.Asin(math.Sin(d13) * math.Sin(bearing12-bearing13))
	crossTrackDistance := math.Abs(dxt) * earthRadius

	dat := math.Acos(math.Cos(d13) / math.Cos(dxt))
	alongTrackDistance := dat * earthRadius

	// Projection falls beyond the segment, nearest endpoint wins.
	if alongTrackDistance > segmentLength {
		return distanceToEnd
	}

	return crossTrackDistance
}

// interpolatePoint calculates a point along the segment between two points.
// t=0 returns start, t=1 returns end. Linear interpolation is adequate for
// road-scale segments (< 10km).
func (g *geoUtils) interpolatePoint(start, end Point, t float64) Point {
	lat := start.Latitude + t*(end.Latitude-start.Latitude)
	lon := start.Longitude + t*(end.Longitude-start.Longitude)
	return Point{Latitude: lat, Longitude: lon}
}

// PolylineOverlapPercentage calculates the percentage of polyline1 that lies
// within thresholdMeters of polyline2, using fine-grained sampling. Used to
// score how closely a generated route matches an uploaded source geometry.
func (g *geoUtils) PolylineOverlapPercentage(polyline1, polyline2 Polyline, thresholdMeters float64) (float64, error) {
	if len(polyline1.Points) < 2 || len(polyline2.Points) < 2 {
		return 0, errors.New("both polylines must have at least 2 points")
	}

	totalLength := 0.0
	for i := 0; i < len(polyline1.Points)-1; i++ {
		segmentLength, _ := g.PointToPoint(polyline1.Points[i], polyline1.Points[i+1])
		totalLength += segmentLength
	}

	if totalLength == 0 {
		return 0, nil
	}

	overlappingLength := 0.0
	sampleDistance := 25.0 // sample every 25 meters

	for i := 0; i < len(polyline1.Points)-1; i++ {
		seg1Start := polyline1.Points[i]
		seg1End := polyline1.Points[i+1]
		segmentLength, _ := g.PointToPoint(seg1Start, seg1End)

		numSamples := int(math.Max(2, math.Ceil(segmentLength/sampleDistance)))
		overlappingSamples := 0

		for s := 0; s < numSamples; s++ {
			t := float64(s) / float64(numSamples-1)
			samplePoint := g.interpolatePoint(seg1Start, seg1End, t)

			distance, _ := g.PointToPolyline(samplePoint, polyline2)
			if distance <= thresholdMeters {
				overlappingSamples++
			}
		}

		overlapProportion := float64(overlappingSamples) / float64(numSamples)
		overlappingLength += segmentLength * overlapProportion
	}

	return (overlappingLength / totalLength) * 100, nil
}

// DecodePolyline decodes an encoded polyline string to a point sequence
func (g *geoUtils) DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}

		if !isValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// EncodePolyline encodes a point sequence to a polyline string
func (g *geoUtils) EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// DistanceFromCoords calculates distance between two coordinate pairs
// Convenience method for raw latitude/longitude values
func (g *geoUtils) DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error) {
	return g.PointToPoint(Point{Latitude: lat1, Longitude: lon1}, Point{Latitude: lat2, Longitude: lon2})
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
