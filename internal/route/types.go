// Package route holds the route data model shared by the editing, generation
// and upload subsystems, plus the in-memory store that owns it.
package route

import (
	"time"

	"github.com/google/uuid"

	"github.com/routedesk/server/internal/lib/geo"
	"github.com/routedesk/server/internal/lib/geojson"
)

// RoadKind distinguishes committed geometry from speculative geometry
type RoadKind string

const (
	// RoadSnapped is accepted geometry for a saved route
	RoadSnapped RoadKind = "snapped"
	// RoadPreview is speculative geometry awaiting save or discard
	RoadPreview RoadKind = "preview"
)

// Waypoint is an ordered intermediate stop on a route. Order is dense and
// zero-based within its route; no two waypoints of a route share a value.
type Waypoint struct {
	ID       string    `json:"id"`
	Position geo.Point `json:"position"`
	Order    int       `json:"order"`
}

// RouteMarkers is the editable endpoint and waypoint set for one route
type RouteMarkers struct {
	RouteID   string     `json:"route_id"`
	Start     geo.Point  `json:"start"`
	End       geo.Point  `json:"end"`
	Waypoints []Waypoint `json:"waypoints"`
}

// ComputedRoad is an immutable generated-geometry result for one route and
// kind. A route has at most one road per kind; newer results replace older
// ones wholesale.
type ComputedRoad struct {
	RouteID         string      `json:"route_id"`
	Kind            RoadKind    `json:"kind"`
	EncodedPolyline string      `json:"encoded_polyline"`
	Points          []geo.Point `json:"points"`
	DistanceMeters  int32       `json:"distance_meters"`
	DurationSeconds int32       `json:"duration_seconds"`
	ComputedAt      time.Time   `json:"computed_at"`
}

// Route is a named registered path. Routes are soft-deleted only.
type Route struct {
	ID               string            `json:"uuid"`
	Name             string            `json:"route_name"`
	Origin           geo.Point         `json:"origin"`
	Destination      geo.Point         `json:"destination"`
	Waypoints        []Waypoint        `json:"waypoints"`
	EncodedPolyline  string            `json:"encoded_polyline"`
	ProjectID        int               `json:"project_id"`
	Tag              string            `json:"tag,omitempty"`
	LengthMeters     float64           `json:"length,omitempty"`
	MatchPercentage  *float64          `json:"match_percentage,omitempty"`
	OriginalGeometry *geojson.Geometry `json:"original_route_geo_json,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	DeletedAt        *time.Time        `json:"deleted_at,omitempty"`
}

// UploadedRoute is an uploaded candidate feature awaiting route generation.
// It persists once its route generates and is removed when generation fails
// or its batch is cancelled; failed features remain visible through the
// batch summary.
type UploadedRoute struct {
	ID             string           `json:"id"`
	BatchID        string           `json:"batch_id"`
	Name           string           `json:"name"`
	SourceGeometry geojson.Geometry `json:"source_geometry"`
	ColorTag       string           `json:"color_tag"`
	UploadedAt     time.Time        `json:"uploaded_at"`
}

// NewWaypoint creates a waypoint with a fresh identity
func NewWaypoint(position geo.Point, order int) Waypoint {
	return Waypoint{
		ID:       uuid.NewString(),
		Position: position,
		Order:    order,
	}
}
