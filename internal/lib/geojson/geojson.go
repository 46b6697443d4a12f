// Package geojson holds the minimal GeoJSON structures exchanged with the
// geometry ingestion service and boundary configuration files.
package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/routedesk/server/internal/lib/geo"
)

// Geometry type names handled by this module
const (
	TypePoint             = "Point"
	TypeLineString        = "LineString"
	TypeMultiLineString   = "MultiLineString"
	TypePolygon           = "Polygon"
	TypeMultiPolygon      = "MultiPolygon"
	TypeFeature           = "Feature"
	TypeFeatureCollection = "FeatureCollection"
)

// Geometry represents a GeoJSON geometry object. Coordinates stay raw until
// a typed accessor decodes them, since nesting depth depends on the type.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature represents a single geographic feature with geometry and properties
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// FeatureCollection represents a collection of geographic features
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// IsLineGeometry reports whether the geometry is a LineString or MultiLineString
func (g Geometry) IsLineGeometry() bool {
	return g.Type == TypeLineString || g.Type == TypeMultiLineString
}

// LineCoordinates extracts every coordinate of a LineString or
// MultiLineString as geographic points, concatenating segment sequences in
// order. GeoJSON positions are [lng, lat].
func (g Geometry) LineCoordinates() ([]geo.Point, error) {
	switch g.Type {
	case TypeLineString:
		var coords [][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("failed to decode LineString coordinates: %w", err)
		}
		return positionsToPoints(coords)

	case TypeMultiLineString:
		var lines [][][]float64
		if err := json.Unmarshal(g.Coordinates, &lines); err != nil {
			return nil, fmt.Errorf("failed to decode MultiLineString coordinates: %w", err)
		}
		var points []geo.Point
		for _, line := range lines {
			linePoints, err := positionsToPoints(line)
			if err != nil {
				return nil, err
			}
			points = append(points, linePoints...)
		}
		return points, nil

	default:
		return nil, fmt.Errorf("geometry type %q is not a line geometry", g.Type)
	}
}

// PolygonRings extracts the ring sets of a Polygon or MultiPolygon. Each
// polygon is a slice of rings; ring 0 is the exterior, the rest are holes.
func (g Geometry) PolygonRings() ([][][]geo.Point, error) {
	switch g.Type {
	case TypePolygon:
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("failed to decode Polygon coordinates: %w", err)
		}
		polygon, err := ringsToPoints(rings)
		if err != nil {
			return nil, err
		}
		return [][][]geo.Point{polygon}, nil

	case TypeMultiPolygon:
		var polygons [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polygons); err != nil {
			return nil, fmt.Errorf("failed to decode MultiPolygon coordinates: %w", err)
		}
		result := make([][][]geo.Point, 0, len(polygons))
		for _, rings := range polygons {
			polygon, err := ringsToPoints(rings)
			if err != nil {
				return nil, err
			}
			result = append(result, polygon)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("geometry type %q is not a polygon geometry", g.Type)
	}
}

// NewLineString builds a LineString geometry from a point sequence
func NewLineString(points []geo.Point) (Geometry, error) {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Longitude, p.Latitude}
	}
	raw, err := json.Marshal(coords)
	if err != nil {
		return Geometry{}, fmt.Errorf("failed to encode LineString coordinates: %w", err)
	}
	return Geometry{Type: TypeLineString, Coordinates: raw}, nil
}

// StringProperty returns a feature property as a string, with ok=false when
// the property is missing or not a string.
func (f Feature) StringProperty(key string) (string, bool) {
	value, exists := f.Properties[key]
	if !exists {
		return "", false
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func positionsToPoints(positions [][]float64) ([]geo.Point, error) {
	points := make([]geo.Point, 0, len(positions))
	for _, pos := range positions {
		if len(pos) < 2 {
			return nil, fmt.Errorf("position has %d ordinates, expected at least 2", len(pos))
		}
		points = append(points, geo.Point{Latitude: pos[1], Longitude: pos[0]})
	}
	return points, nil
}

func ringsToPoints(rings [][][]float64) ([][]geo.Point, error) {
	result := make([][]geo.Point, 0, len(rings))
	for _, ring := range rings {
		points, err := positionsToPoints(ring)
		if err != nil {
			return nil, err
		}
		result = append(result, points)
	}
	return result, nil
}
