package route

import (
	"github.com/routedesk/server/internal/lib/geo"
	"github.com/routedesk/server/internal/lib/geojson"
)

// RouteCoordinates is the wire shape of a route's coordinate set. Positions
// are [lng, lat] pairs, matching the GeoJSON convention used on the save
// boundary.
type RouteCoordinates struct {
	Origin      []float64   `json:"origin"`
	Destination []float64   `json:"destination"`
	Waypoints   [][]float64 `json:"waypoints"`
}

// SaveRequest is the persisted/exported route DTO produced on save from
// committed markers plus the latest snapped geometry.
type SaveRequest struct {
	UUID             string            `json:"uuid"`
	RouteName        string            `json:"route_name"`
	Coordinates      RouteCoordinates  `json:"coordinates"`
	EncodedPolyline  string            `json:"encoded_polyline,omitempty"`
	ProjectID        int               `json:"region_id"`
	Tag              string            `json:"tag,omitempty"`
	Length           float64           `json:"length,omitempty"`
	MatchPercentage  *float64          `json:"match_percentage,omitempty"`
	OriginalGeometry *geojson.Geometry `json:"original_route_geo_json,omitempty"`
	Center           *geo.Point        `json:"center,omitempty"`
}

// BuildSaveRequest assembles the save DTO for a route from its committed
// markers and snapped road. The road may be zero-valued when no geometry has
// been generated yet.
func BuildSaveRequest(r Route, markers RouteMarkers, snapped ComputedRoad) SaveRequest {
	ordered := markers.OrderedWaypoints()
	waypoints := make([][]float64, len(ordered))
	for i, wp := range ordered {
		waypoints[i] = []float64{wp.Position.Longitude, wp.Position.Latitude}
	}

	center := geo.Point{
		Latitude:  (markers.Start.Latitude + markers.End.Latitude) / 2,
		Longitude: (markers.Start.Longitude + markers.End.Longitude) / 2,
	}

	length := r.LengthMeters
	if length == 0 && len(snapped.Points) > 1 {
		if computed, err := geo.NewGeoUtils().PathLength(snapped.Points); err == nil {
			length = computed
		}
	}

	return SaveRequest{
		UUID:      r.ID,
		RouteName: r.Name,
		Coordinates: RouteCoordinates{
			Origin:      []float64{markers.Start.Longitude, markers.Start.Latitude},
			Destination: []float64{markers.End.Longitude, markers.End.Latitude},
			Waypoints:   waypoints,
		},
		EncodedPolyline:  snapped.EncodedPolyline,
		ProjectID:        r.ProjectID,
		Tag:              r.Tag,
		Length:           length,
		MatchPercentage:  r.MatchPercentage,
		OriginalGeometry: r.OriginalGeometry,
		Center:           &center,
	}
}
