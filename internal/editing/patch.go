package editing

import (
	"github.com/routedesk/server/internal/lib/geo"
	"github.com/routedesk/server/internal/route"
)

// Patch is a single draft-marker mutation. applyTo mutates the marker set in
// place and reports whether anything changed; unknown waypoint ids and
// out-of-range positions leave the markers untouched.
type Patch interface {
	applyTo(m *route.RouteMarkers) bool
}

// MoveStart repositions the start marker
type MoveStart struct {
	Position geo.Point
}

func (p MoveStart) applyTo(m *route.RouteMarkers) bool {
	m.Start = p.Position
	return true
}

// MoveEnd repositions the end marker
type MoveEnd struct {
	Position geo.Point
}

func (p MoveEnd) applyTo(m *route.RouteMarkers) bool {
	m.End = p.Position
	return true
}

// SwapEndpoints exchanges the start and end markers and reverses waypoint
// order so the route reads the same way in the opposite direction.
type SwapEndpoints struct{}

func (p SwapEndpoints) applyTo(m *route.RouteMarkers) bool {
	m.Start, m.End = m.End, m.Start
	ordered := m.OrderedWaypoints()
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	m.Waypoints = ordered
	m.Renumber()
	return true
}

// AddWaypoint appends a waypoint, or inserts it at Order when given
type AddWaypoint struct {
	Position geo.Point
	// Order of the new waypoint; nil appends at the end
	Order *int
}

func (p AddWaypoint) applyTo(m *route.RouteMarkers) bool {
	order := len(m.Waypoints)
	if p.Order != nil {
		order = *p.Order
		if order < 0 {
			order = 0
		}
		if order > len(m.Waypoints) {
			order = len(m.Waypoints)
		}
	}

	ordered := m.OrderedWaypoints()
	for i := range ordered {
		if ordered[i].Order >= order {
			ordered[i].Order++
		}
	}
	m.Waypoints = append(ordered, route.NewWaypoint(p.Position, order))
	m.Renumber()
	return true
}

// RemoveWaypoint deletes a waypoint by id
type RemoveWaypoint struct {
	WaypointID string
}

func (p RemoveWaypoint) applyTo(m *route.RouteMarkers) bool {
	idx := m.WaypointIndex(p.WaypointID)
	if idx < 0 {
		return false
	}
	m.Waypoints = append(m.Waypoints[:idx], m.Waypoints[idx+1:]...)
	m.Renumber()
	return true
}

// MoveWaypoint repositions a waypoint without changing its order
type MoveWaypoint struct {
	WaypointID string
	Position   geo.Point
}

func (p MoveWaypoint) applyTo(m *route.RouteMarkers) bool {
	idx := m.WaypointIndex(p.WaypointID)
	if idx < 0 {
		return false
	}
	m.Waypoints[idx].Position = p.Position
	return true
}

// ReorderWaypoint moves a waypoint to a new order slot; the rest of the
// sequence renumbers around it.
type ReorderWaypoint struct {
	WaypointID string
	NewOrder   int
}

func (p ReorderWaypoint) applyTo(m *route.RouteMarkers) bool {
	idx := m.WaypointIndex(p.WaypointID)
	if idx < 0 {
		return false
	}

	ordered := m.OrderedWaypoints()
	var moved route.Waypoint
	position := -1
	for i, wp := range ordered {
		if wp.ID == p.WaypointID {
			moved = wp
			position = i
			break
		}
	}
	ordered = append(ordered[:position], ordered[position+1:]...)

	target := p.NewOrder
	if target < 0 {
		target = 0
	}
	if target > len(ordered) {
		target = len(ordered)
	}

	ordered = append(ordered[:target], append([]route.Waypoint{moved}, ordered[target:]...)...)
	m.Waypoints = ordered
	m.Renumber()
	return true
}

// MoveWaypointUp swaps a waypoint with its predecessor
type MoveWaypointUp struct {
	WaypointID string
}

func (p MoveWaypointUp) applyTo(m *route.RouteMarkers) bool {
	return shiftWaypoint(m, p.WaypointID, -1)
}

// MoveWaypointDown swaps a waypoint with its successor
type MoveWaypointDown struct {
	WaypointID string
}

func (p MoveWaypointDown) applyTo(m *route.RouteMarkers) bool {
	return shiftWaypoint(m, p.WaypointID, +1)
}

func shiftWaypoint(m *route.RouteMarkers, waypointID string, delta int) bool {
	ordered := m.OrderedWaypoints()
	position := -1
	for i, wp := range ordered {
		if wp.ID == waypointID {
			position = i
			break
		}
	}
	if position < 0 {
		return false
	}

	target := position + delta
	if target < 0 || target >= len(ordered) {
		return false
	}

	ordered[position], ordered[target] = ordered[target], ordered[position]
	m.Waypoints = ordered
	m.Renumber()
	return true
}
