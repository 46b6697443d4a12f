package boundary

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/routedesk/server/internal/lib/geo"
)

// kmlPolygon matches a KML <Polygon> element wherever it appears in the
// document tree (Placemark, MultiGeometry, Folder).
type kmlPolygon struct {
	Outer kmlRing   `xml:"outerBoundaryIs>LinearRing"`
	Inner []kmlRing `xml:"innerBoundaryIs>LinearRing"`
}

type kmlRing struct {
	Coordinates string `xml:"coordinates"`
}

// FromKML builds a Boundary from a KML document. Every <Polygon> in the
// document contributes one boundary polygon; inner rings become holes.
func FromKML(data []byte) (*Boundary, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var polygons [][][]geo.Point
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse boundary KML: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "Polygon" {
			continue
		}

		var polygon kmlPolygon
		if err := decoder.DecodeElement(&polygon, &start); err != nil {
			return nil, fmt.Errorf("failed to parse KML polygon: %w", err)
		}

		outer, err := parseKMLCoordinates(polygon.Outer.Coordinates)
		if err != nil {
			return nil, err
		}
		rings := [][]geo.Point{outer}
		for _, inner := range polygon.Inner {
			hole, err := parseKMLCoordinates(inner.Coordinates)
			if err != nil {
				return nil, err
			}
			rings = append(rings, hole)
		}
		polygons = append(polygons, rings)
	}

	return newBoundary(polygons)
}

// parseKMLCoordinates parses the KML coordinate format: whitespace-separated
// "lng,lat" or "lng,lat,alt" tuples.
func parseKMLCoordinates(raw string) ([]geo.Point, error) {
	var points []geo.Point
	for _, tuple := range strings.Fields(raw) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid KML coordinate tuple %q", tuple)
		}
		lng, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid KML longitude %q: %w", parts[0], err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid KML latitude %q: %w", parts[1], err)
		}
		points = append(points, geo.Point{Latitude: lat, Longitude: lng})
	}
	return points, nil
}
