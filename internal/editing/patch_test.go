package editing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/server/internal/lib/geo"
	"github.com/routedesk/server/internal/route"
)

func draftWithWaypoints(ids ...string) route.RouteMarkers {
	m := route.RouteMarkers{
		RouteID: "r1",
		Start:   geo.Point{Latitude: 0, Longitude: 0},
		End:     geo.Point{Latitude: 10, Longitude: 10},
	}
	for i, id := range ids {
		m.Waypoints = append(m.Waypoints, route.Waypoint{
			ID:       id,
			Position: geo.Point{Latitude: float64(i + 1), Longitude: float64(i + 1)},
			Order:    i,
		})
	}
	return m
}

func orderOf(m route.RouteMarkers) []string {
	ids := make([]string, 0, len(m.Waypoints))
	for _, wp := range m.OrderedWaypoints() {
		ids = append(ids, wp.ID)
	}
	return ids
}

func assertDense(t *testing.T, m route.RouteMarkers) {
	t.Helper()
	seen := make(map[int]bool)
	for _, wp := range m.Waypoints {
		assert.False(t, seen[wp.Order], "duplicate order %d", wp.Order)
		seen[wp.Order] = true
		assert.GreaterOrEqual(t, wp.Order, 0)
		assert.Less(t, wp.Order, len(m.Waypoints))
	}
}

func TestPatch_AddWaypoint(t *testing.T) {
	m := draftWithWaypoints("a", "b")

	at := 1
	require.True(t, AddWaypoint{Position: geo.Point{Latitude: 5, Longitude: 5}, Order: &at}.applyTo(&m))

	require.Len(t, m.Waypoints, 3)
	ids := orderOf(m)
	assert.Equal(t, "a", ids[0])
	assert.Equal(t, "b", ids[2], "existing waypoint shifted down")
	assertDense(t, m)

	// Append without an explicit order
	require.True(t, AddWaypoint{Position: geo.Point{Latitude: 6, Longitude: 6}}.applyTo(&m))
	require.Len(t, m.Waypoints, 4)
	assert.Equal(t, 6.0, m.OrderedWaypoints()[3].Position.Latitude)
	assertDense(t, m)
}

func TestPatch_RemoveWaypointRenumbers(t *testing.T) {
	m := draftWithWaypoints("a", "b", "c")

	require.True(t, RemoveWaypoint{WaypointID: "b"}.applyTo(&m))
	assert.Equal(t, []string{"a", "c"}, orderOf(m))
	assertDense(t, m)

	assert.False(t, RemoveWaypoint{WaypointID: "missing"}.applyTo(&m))
}

func TestPatch_ReorderWaypoint(t *testing.T) {
	m := draftWithWaypoints("a", "b", "c", "d")

	require.True(t, ReorderWaypoint{WaypointID: "d", NewOrder: 0}.applyTo(&m))
	assert.Equal(t, []string{"d", "a", "b", "c"}, orderOf(m))
	assertDense(t, m)

	require.True(t, ReorderWaypoint{WaypointID: "d", NewOrder: 99}.applyTo(&m))
	assert.Equal(t, []string{"a", "b", "c", "d"}, orderOf(m), "out-of-range order clamps to the end")
	assertDense(t, m)

	assert.False(t, ReorderWaypoint{WaypointID: "missing", NewOrder: 0}.applyTo(&m))
}

func TestPatch_MoveUpDown(t *testing.T) {
	m := draftWithWaypoints("a", "b", "c")

	require.True(t, MoveWaypointUp{WaypointID: "b"}.applyTo(&m))
	assert.Equal(t, []string{"b", "a", "c"}, orderOf(m))
	assertDense(t, m)

	assert.False(t, MoveWaypointUp{WaypointID: "b"}.applyTo(&m), "already first")
	assert.False(t, MoveWaypointDown{WaypointID: "c"}.applyTo(&m), "already last")

	require.True(t, MoveWaypointDown{WaypointID: "a"}.applyTo(&m))
	assert.Equal(t, []string{"b", "c", "a"}, orderOf(m))
	assertDense(t, m)
}

func TestPatch_SwapEndpointsReversesWaypoints(t *testing.T) {
	m := draftWithWaypoints("a", "b", "c")

	require.True(t, SwapEndpoints{}.applyTo(&m))

	assert.Equal(t, 10.0, m.Start.Latitude)
	assert.Equal(t, 0.0, m.End.Latitude)
	assert.Equal(t, []string{"c", "b", "a"}, orderOf(m))
	assertDense(t, m)
}

func TestPatch_MoveWaypointKeepsOrder(t *testing.T) {
	m := draftWithWaypoints("a", "b")

	require.True(t, MoveWaypoint{WaypointID: "a", Position: geo.Point{Latitude: 9, Longitude: 9}}.applyTo(&m))
	assert.Equal(t, []string{"a", "b"}, orderOf(m))
	assert.Equal(t, 9.0, m.Waypoints[m.WaypointIndex("a")].Position.Latitude)
}
