package route

import (
	"sort"

	"github.com/routedesk/server/internal/lib/geo"
)

// Clone returns a deep, independent copy of the marker set
func (m RouteMarkers) Clone() RouteMarkers {
	cloned := RouteMarkers{
		RouteID: m.RouteID,
		Start:   m.Start,
		End:     m.End,
	}
	if len(m.Waypoints) > 0 {
		cloned.Waypoints = make([]Waypoint, len(m.Waypoints))
		copy(cloned.Waypoints, m.Waypoints)
	}
	return cloned
}

// EqualPositions reports whether two marker sets are positionally identical:
// same start and end coordinates, same waypoint count, and the same position
// at every waypoint index. Waypoint identities are ignored.
func (m RouteMarkers) EqualPositions(other RouteMarkers) bool {
	if m.Start != other.Start || m.End != other.End {
		return false
	}
	if len(m.Waypoints) != len(other.Waypoints) {
		return false
	}
	for i := range m.Waypoints {
		if m.Waypoints[i].Position != other.Waypoints[i].Position {
			return false
		}
	}
	return true
}

// OrderedWaypoints returns the waypoints sorted by their Order field
func (m RouteMarkers) OrderedWaypoints() []Waypoint {
	ordered := make([]Waypoint, len(m.Waypoints))
	copy(ordered, m.Waypoints)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})
	return ordered
}

// Renumber rewrites waypoint Order values to a dense 0..n-1 sequence,
// preserving the current relative ordering.
func (m *RouteMarkers) Renumber() {
	ordered := m.OrderedWaypoints()
	for i := range ordered {
		ordered[i].Order = i
	}
	m.Waypoints = ordered
}

// HasEndpoints reports whether both the start and end markers are set. An
// unset marker is the zero coordinate.
func (m RouteMarkers) HasEndpoints() bool {
	return m.Start != (geo.Point{}) && m.End != (geo.Point{})
}

// WaypointPositions returns the positions of the waypoints in order
func (m RouteMarkers) WaypointPositions() []geo.Point {
	ordered := m.OrderedWaypoints()
	positions := make([]geo.Point, 0, len(ordered))
	for _, wp := range ordered {
		positions = append(positions, wp.Position)
	}
	return positions
}

// WaypointIndex returns the slice index of the waypoint with the given id,
// or -1 when absent.
func (m RouteMarkers) WaypointIndex(waypointID string) int {
	for i, wp := range m.Waypoints {
		if wp.ID == waypointID {
			return i
		}
	}
	return -1
}
