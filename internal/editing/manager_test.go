package editing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/server/internal/lib/geo"
	"github.com/routedesk/server/internal/route"
)

func seededStore(t *testing.T, routeID string) *route.Store {
	t.Helper()
	store := route.NewStore()
	store.SetMarkers(route.RouteMarkers{
		RouteID: routeID,
		Start:   geo.Point{Latitude: 38.0675, Longitude: -120.5436},
		End:     geo.Point{Latitude: 38.1391, Longitude: -120.4561},
		Waypoints: []route.Waypoint{
			route.NewWaypoint(geo.Point{Latitude: 38.10, Longitude: -120.50}, 0),
			route.NewWaypoint(geo.Point{Latitude: 38.12, Longitude: -120.48}, 1),
		},
	})
	return store
}

func TestManager_BeginEditingIdempotent(t *testing.T) {
	store := seededStore(t, "r1")
	manager := NewManager(store)

	require.True(t, manager.BeginEditing("r1"))

	// Mutate, then begin again: the session must survive untouched
	result := manager.MutateDraft("r1", MoveStart{Position: geo.Point{Latitude: 39, Longitude: -121}})
	assert.Equal(t, Applied, result)

	require.True(t, manager.BeginEditing("r1"))

	s, ok := manager.Session("r1")
	require.True(t, ok)
	assert.Equal(t, 39.0, s.Draft.Start.Latitude, "second BeginEditing must not reset the draft")

	assert.False(t, manager.BeginEditing("missing"), "no committed markers, no session")
}

func TestManager_MutateWithoutSessionIsObservableNoop(t *testing.T) {
	store := seededStore(t, "r1")
	manager := NewManager(store)

	result := manager.MutateDraft("r1", MoveEnd{Position: geo.Point{Latitude: 1, Longitude: 1}})
	assert.Equal(t, Ignored, result)

	committed, _ := store.Markers("r1")
	assert.Equal(t, 38.1391, committed.End.Latitude, "committed state untouched")
}

func TestManager_DiscardRestoresOriginal(t *testing.T) {
	store := seededStore(t, "r1")
	manager := NewManager(store)
	require.True(t, manager.BeginEditing("r1"))

	original, _ := store.Markers("r1")

	manager.MutateDraft("r1", MoveStart{Position: geo.Point{Latitude: 40, Longitude: -122}})
	manager.MutateDraft("r1", AddWaypoint{Position: geo.Point{Latitude: 38.11, Longitude: -120.49}})
	manager.MutateDraft("r1", SwapEndpoints{})
	store.SetComputedRoad(route.ComputedRoad{RouteID: "r1", Kind: route.RoadPreview, EncodedPolyline: "preview"})

	require.True(t, manager.Discard("r1"))

	restored, _ := store.Markers("r1")
	assert.True(t, restored.EqualPositions(original), "discard restores the markers present at BeginEditing")

	_, hasPreview := store.ComputedRoad("r1", route.RoadPreview)
	assert.False(t, hasPreview, "preview dropped on discard")

	// A fresh session is re-opened automatically
	assert.True(t, manager.IsEditing("r1"))
	assert.Equal(t, Applied, manager.MutateDraft("r1", MoveEnd{Position: geo.Point{Latitude: 1, Longitude: 1}}))
}

func TestManager_SavePromotesDraftAndPreview(t *testing.T) {
	store := seededStore(t, "r1")
	manager := NewManager(store)
	require.True(t, manager.BeginEditing("r1"))

	manager.MutateDraft("r1", MoveStart{Position: geo.Point{Latitude: 40, Longitude: -122}})
	store.SetComputedRoad(route.ComputedRoad{RouteID: "r1", Kind: route.RoadSnapped, EncodedPolyline: "stale"})
	store.SetComputedRoad(route.ComputedRoad{RouteID: "r1", Kind: route.RoadPreview, EncodedPolyline: "fresh"})

	promoted, ok := manager.Save("r1")
	require.True(t, ok)
	assert.Equal(t, 40.0, promoted.Start.Latitude)

	committed, _ := store.Markers("r1")
	assert.Equal(t, 40.0, committed.Start.Latitude)

	snapped, _ := store.ComputedRoad("r1", route.RoadSnapped)
	assert.Equal(t, "fresh", snapped.EncodedPolyline, "preview promoted over prior snapped road")

	_, hasPreview := store.ComputedRoad("r1", route.RoadPreview)
	assert.False(t, hasPreview)

	assert.False(t, manager.IsEditing("r1"), "session closed on save")

	_, ok = manager.Save("r1")
	assert.False(t, ok, "second save is a no-op")
}

func TestManager_HasUnsavedChanges(t *testing.T) {
	store := seededStore(t, "r1")
	manager := NewManager(store)
	require.True(t, manager.BeginEditing("r1"))

	assert.False(t, manager.HasUnsavedChanges("r1"), "clean session")

	manager.MutateDraft("r1", MoveStart{Position: geo.Point{Latitude: 40, Longitude: -122}})
	assert.True(t, manager.HasUnsavedChanges("r1"))

	// Back to the original position counts as clean again
	manager.MutateDraft("r1", MoveStart{Position: geo.Point{Latitude: 38.0675, Longitude: -120.5436}})
	assert.False(t, manager.HasUnsavedChanges("r1"))

	// A pending preview road alone marks the route dirty
	store.SetComputedRoad(route.ComputedRoad{RouteID: "r1", Kind: route.RoadPreview})
	assert.True(t, manager.HasUnsavedChanges("r1"))
}

func TestManager_DiscardAfterSaveTracksNewBaseline(t *testing.T) {
	store := seededStore(t, "r1")
	manager := NewManager(store)
	require.True(t, manager.BeginEditing("r1"))

	manager.MutateDraft("r1", MoveStart{Position: geo.Point{Latitude: 40, Longitude: -122}})
	saved, ok := manager.Save("r1")
	require.True(t, ok)

	// New session, new baseline: discard returns to the saved state,
	// not the pre-save one.
	require.True(t, manager.BeginEditing("r1"))
	manager.MutateDraft("r1", MoveStart{Position: geo.Point{Latitude: 50, Longitude: -130}})
	require.True(t, manager.Discard("r1"))

	restored, _ := store.Markers("r1")
	assert.True(t, restored.EqualPositions(saved))
}

func TestManager_CurrentMarkersPrefersDraft(t *testing.T) {
	store := seededStore(t, "r1")
	manager := NewManager(store)

	committed, ok := manager.CurrentMarkers("r1")
	require.True(t, ok)
	assert.Equal(t, 38.0675, committed.Start.Latitude)

	require.True(t, manager.BeginEditing("r1"))
	manager.MutateDraft("r1", MoveStart{Position: geo.Point{Latitude: 41, Longitude: -123}})

	draft, ok := manager.CurrentMarkers("r1")
	require.True(t, ok)
	assert.Equal(t, 41.0, draft.Start.Latitude, "draft wins while a session is open")
}
