// Package boundary decides whether route geometry lies inside a configured
// jurisdiction polygon.
package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/routedesk/server/internal/lib/geo"
	"github.com/routedesk/server/internal/lib/geojson"
)

// ErrOutsideBoundary is returned when a sampled or exhaustive check finds a
// point outside the jurisdiction polygon.
var ErrOutsideBoundary = errors.New("geometry lies outside the jurisdiction boundary")

// ErrEmptyGeometry is returned when a geometry yields no coordinates. An
// empty geometry is rejected, never vacuously accepted.
var ErrEmptyGeometry = errors.New("geometry has no extractable coordinates")

// sampleBudget bounds how many points of a long geometry are tested. First
// and last coordinates are always included on top of the strided samples.
const sampleBudget = 50

// Boundary is a jurisdiction polygon set. Each polygon has an exterior ring
// and zero or more hole rings.
type Boundary struct {
	polygons [][][]geo.Point
}

// FromGeoJSON builds a Boundary from GeoJSON bytes. Accepts a bare Polygon
// or MultiPolygon geometry, or a FeatureCollection wrapper whose polygon
// features are merged into one boundary set.
func FromGeoJSON(data []byte) (*Boundary, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse boundary document: %w", err)
	}

	switch probe.Type {
	case geojson.TypePolygon, geojson.TypeMultiPolygon:
		var geom geojson.Geometry
		if err := json.Unmarshal(data, &geom); err != nil {
			return nil, fmt.Errorf("failed to parse boundary geometry: %w", err)
		}
		polygons, err := geom.PolygonRings()
		if err != nil {
			return nil, err
		}
		return newBoundary(polygons)

	case geojson.TypeFeatureCollection:
		var collection geojson.FeatureCollection
		if err := json.Unmarshal(data, &collection); err != nil {
			return nil, fmt.Errorf("failed to parse boundary feature collection: %w", err)
		}
		var polygons [][][]geo.Point
		for _, feature := range collection.Features {
			if feature.Geometry.Type != geojson.TypePolygon && feature.Geometry.Type != geojson.TypeMultiPolygon {
				continue
			}
			featurePolygons, err := feature.Geometry.PolygonRings()
			if err != nil {
				return nil, err
			}
			polygons = append(polygons, featurePolygons...)
		}
		return newBoundary(polygons)

	case geojson.TypeFeature:
		var feature geojson.Feature
		if err := json.Unmarshal(data, &feature); err != nil {
			return nil, fmt.Errorf("failed to parse boundary feature: %w", err)
		}
		polygons, err := feature.Geometry.PolygonRings()
		if err != nil {
			return nil, err
		}
		return newBoundary(polygons)

	default:
		return nil, fmt.Errorf("unsupported boundary document type %q", probe.Type)
	}
}

// FromFile loads a Boundary from a GeoJSON or KML file on disk, chosen by
// extension.
func FromFile(path string) (*Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".kml") {
		return FromKML(data)
	}
	return FromGeoJSON(data)
}

func newBoundary(polygons [][][]geo.Point) (*Boundary, error) {
	if len(polygons) == 0 {
		return nil, errors.New("boundary document contains no polygon geometry")
	}
	for _, rings := range polygons {
		if len(rings) == 0 || len(rings[0]) < 3 {
			return nil, errors.New("boundary polygon needs an exterior ring with at least 3 points")
		}
	}
	return &Boundary{polygons: polygons}, nil
}

// ContainsPoint reports whether a point lies inside the boundary. Points on
// a polygon edge count as inside. Hole rings exclude their interior.
func (b *Boundary) ContainsPoint(point geo.Point) bool {
	for _, rings := range b.polygons {
		if !pointInRing(point, rings[0]) {
			continue
		}
		inHole := false
		for _, hole := range rings[1:] {
			if pointInRing(point, hole) && !pointOnRingEdge(point, hole) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// ContainsAll checks every coordinate exhaustively. Used at upload time
// where the raw path is short enough that full validation is affordable.
func (b *Boundary) ContainsAll(points []geo.Point) error {
	if len(points) == 0 {
		return ErrEmptyGeometry
	}
	for _, point := range points {
		if !b.ContainsPoint(point) {
			return ErrOutsideBoundary
		}
	}
	return nil
}

// ValidateGeometry checks a (possibly long) coordinate sequence against the
// boundary using bounded sampling: the first and last coordinates are always
// tested, the remainder is strided so at most ~sampleBudget points are
// tested regardless of geometry length. Sampling may miss an excursion that
// falls between samples; that is an accepted approximation.
func (b *Boundary) ValidateGeometry(points []geo.Point) error {
	if len(points) == 0 {
		return ErrEmptyGeometry
	}
	for _, idx := range SampleIndices(len(points)) {
		if !b.ContainsPoint(points[idx]) {
			return ErrOutsideBoundary
		}
	}
	return nil
}

// SampleIndices returns the indices ValidateGeometry tests for a sequence of
// the given length: always 0 and length-1, plus a stride of
// max(1, length/sampleBudget) through the interior.
func SampleIndices(length int) []int {
	if length == 0 {
		return nil
	}
	if length == 1 {
		return []int{0}
	}

	step := length / sampleBudget
	if step < 1 {
		step = 1
	}

	indices := []int{0}
	for i := step; i < length-1; i += step {
		indices = append(indices, i)
	}
	indices = append(indices, length-1)
	return indices
}

// pointInRing runs a standard ray-casting test against a single ring.
// Points exactly on an edge count as inside.
func pointInRing(point geo.Point, ring []geo.Point) bool {
	if pointOnRingEdge(point, ring) {
		return true
	}

	inside := false
	n := len(ring)
	j := n - 1
	for i := 0; i < n; i++ {
		yi, xi := ring[i].Latitude, ring[i].Longitude
		yj, xj := ring[j].Latitude, ring[j].Longitude
		if (yi > point.Latitude) != (yj > point.Latitude) {
			intersectX := (xj-xi)*(point.Latitude-yi)/(yj-yi) + xi
			if point.Longitude < intersectX {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// pointOnRingEdge reports whether the point lies on one of the ring's
// segments, within a small floating point tolerance.
func pointOnRingEdge(point geo.Point, ring []geo.Point) bool {
	const epsilon = 1e-9

	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]

		cross := (point.Longitude-a.Longitude)*(b.Latitude-a.Latitude) -
			(point.Latitude-a.Latitude)*(b.Longitude-a.Longitude)
		if cross > epsilon || cross < -epsilon {
			continue
		}

		withinLng := point.Longitude >= min(a.Longitude, b.Longitude)-epsilon &&
			point.Longitude <= max(a.Longitude, b.Longitude)+epsilon
		withinLat := point.Latitude >= min(a.Latitude, b.Latitude)-epsilon &&
			point.Latitude <= max(a.Latitude, b.Latitude)+epsilon
		if withinLng && withinLat {
			return true
		}
	}
	return false
}
