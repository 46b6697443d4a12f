package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/routedesk/server/internal/boundary"
	"github.com/routedesk/server/internal/clients/routing"
	"github.com/routedesk/server/internal/editing"
	"github.com/routedesk/server/internal/lib/geo"
	"github.com/routedesk/server/internal/route"
)

// ErrMissingEndpoints indicates a route cannot be generated because its
// markers lack an origin or a destination.
var ErrMissingEndpoints = errors.New("route has no origin or destination marker")

// ErrNoMarkers indicates no marker set exists for the route
var ErrNoMarkers = errors.New("no markers exist for route")

// ErrSuperseded indicates a newer regeneration request for the same route
// replaced this one before its result could be applied.
var ErrSuperseded = errors.New("route generation superseded by a newer request")

// RouteComputer abstracts the routing service client
type RouteComputer interface {
	ComputeRoute(ctx context.Context, origin, destination geo.Point, intermediates []geo.Point) (*routing.RouteData, error)
}

// Coordinator turns marker changes into route geometry. It reads the current
// markers for a route, calls the routing service, validates the result
// against the jurisdiction boundary, and writes the accepted geometry into
// the preview or snapped bucket depending on whether an edit session is
// open. Overlapping calls for the same route are resolved last-write-wins
// through the cancel registry.
type Coordinator struct {
	store    *route.Store
	editing  *editing.Manager
	computer RouteComputer
	boundary *boundary.Boundary
	registry *CancelRegistry
	geoUtils geo.GeoUtils
}

// NewCoordinator creates a coordinator. boundary may be nil when no
// jurisdiction boundary is configured.
func NewCoordinator(store *route.Store, editingMgr *editing.Manager, computer RouteComputer, b *boundary.Boundary, registry *CancelRegistry) *Coordinator {
	return &Coordinator{
		store:    store,
		editing:  editingMgr,
		computer: computer,
		boundary: b,
		registry: registry,
		geoUtils: geo.NewGeoUtils(),
	}
}

// Registry exposes the cancel registry shared with the batch processor
func (c *Coordinator) Registry() *CancelRegistry {
	return c.registry
}

// Cancel aborts any in-flight regeneration for the route
func (c *Coordinator) Cancel(routeID string) bool {
	return c.registry.Cancel(routeID)
}

// Regenerate computes fresh geometry for the route from its current markers,
// draft markers when an edit session is open, committed markers otherwise.
// Markers are read at call time, not captured earlier, so rapid successive
// mutations never produce a road from stale input. A second Regenerate for
// the same route cancels and supersedes the first; the superseded call
// returns ErrSuperseded or a context cancellation, neither of which should
// be reported to the user.
func (c *Coordinator) Regenerate(ctx context.Context, routeID string) (route.ComputedRoad, error) {
	markers, ok := c.editing.CurrentMarkers(routeID)
	if !ok {
		return route.ComputedRoad{}, fmt.Errorf("%w: %s", ErrNoMarkers, routeID)
	}
	if !markers.HasEndpoints() {
		return route.ComputedRoad{}, fmt.Errorf("%w: %s", ErrMissingEndpoints, routeID)
	}

	taskCtx, epoch := c.registry.Begin(ctx, routeID)

	data, err := c.computer.ComputeRoute(taskCtx, markers.Start, markers.End, markers.WaypointPositions())
	if err != nil {
		c.registry.Finish(routeID, epoch)
		if taskCtx.Err() != nil {
			return route.ComputedRoad{}, fmt.Errorf("route generation aborted: %w", context.Canceled)
		}
		return route.ComputedRoad{}, fmt.Errorf("failed to generate route %s: %w", routeID, err)
	}

	points, err := c.geoUtils.DecodePolyline(data.Polyline)
	if err != nil {
		c.registry.Finish(routeID, epoch)
		return route.ComputedRoad{}, fmt.Errorf("failed to decode generated polyline for route %s: %w", routeID, err)
	}

	if c.boundary != nil {
		if err := c.boundary.ValidateGeometry(points); err != nil {
			// Preview geometry from an earlier accepted result is stale
			// once the markers produce an out-of-bounds road. Committed
			// geometry is left untouched. The delete runs under the same
			// epoch guard as a write: a superseded call must not remove
			// preview geometry a newer call has produced.
			if !c.registry.Complete(routeID, epoch, func() {
				c.store.DeleteComputedRoad(routeID, route.RoadPreview)
			}) {
				log.Printf("Discarding superseded route result for %s", routeID)
				return route.ComputedRoad{}, ErrSuperseded
			}
			return route.ComputedRoad{}, fmt.Errorf("route %s rejected: %w", routeID, err)
		}
	}

	kind := route.RoadSnapped
	if c.editing.IsEditing(routeID) {
		kind = route.RoadPreview
	}

	road := route.ComputedRoad{
		RouteID:         routeID,
		Kind:            kind,
		EncodedPolyline: data.Polyline,
		Points:          points,
		DistanceMeters:  data.DistanceMeters,
		DurationSeconds: data.DurationSeconds,
		ComputedAt:      time.Now(),
	}

	if !c.registry.Complete(routeID, epoch, func() {
		c.store.SetComputedRoad(road)
	}) {
		log.Printf("Discarding superseded route result for %s", routeID)
		return route.ComputedRoad{}, ErrSuperseded
	}

	return road, nil
}

// IsCancellation reports whether err is a cancellation or supersede outcome,
// which is never surfaced to the user.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrSuperseded)
}
