// Package editing tracks per-route draft sessions and provides save/discard
// semantics over the committed marker state.
package editing

import (
	"sync"

	"github.com/routedesk/server/internal/route"
)

// MutateResult reports whether a draft mutation took effect. Mutations
// against a route with no active session degrade to observable no-ops
// rather than errors, which keeps call sites simple.
type MutateResult string

const (
	// Applied means the draft markers changed
	Applied MutateResult = "applied"
	// Ignored means nothing happened (no session, unknown waypoint, ...)
	Ignored MutateResult = "ignored"
)

// Session is a per-route draft edit. Original is an independent deep copy of
// the committed markers at session start, so discard never needs
// recomputation. At most one session exists per route.
type Session struct {
	RouteID  string
	Original route.RouteMarkers
	Draft    route.RouteMarkers
}

// Manager owns the editing sessions. All operations are synchronous and
// total; guarded checks degrade to no-ops instead of failing.
type Manager struct {
	mu       sync.Mutex
	store    *route.Store
	sessions map[string]*Session
}

// NewManager creates a Manager over the shared route store
func NewManager(store *route.Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// BeginEditing opens a draft session for a route seeded from its committed
// markers. Idempotent: an existing session is left untouched. Returns false
// when the route has no committed markers to edit.
func (m *Manager) BeginEditing(routeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[routeID]; exists {
		return true
	}

	committed, ok := m.store.Markers(routeID)
	if !ok {
		return false
	}

	m.sessions[routeID] = &Session{
		RouteID:  routeID,
		Original: committed.Clone(),
		Draft:    committed.Clone(),
	}
	return true
}

// IsEditing reports whether a draft session is open for the route
func (m *Manager) IsEditing(routeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[routeID]
	return ok
}

// Session returns a copy of the route's session state
func (m *Manager) Session(routeID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[routeID]
	if !ok {
		return Session{}, false
	}
	return Session{
		RouteID:  s.RouteID,
		Original: s.Original.Clone(),
		Draft:    s.Draft.Clone(),
	}, true
}

// CurrentMarkers returns the markers a regeneration should run against: the
// draft when a session is open, otherwise the committed markers. The value
// reflects state at call time, not at scheduling time.
func (m *Manager) CurrentMarkers(routeID string) (route.RouteMarkers, bool) {
	m.mu.Lock()
	if s, ok := m.sessions[routeID]; ok {
		draft := s.Draft.Clone()
		m.mu.Unlock()
		return draft, true
	}
	m.mu.Unlock()
	return m.store.Markers(routeID)
}

// MutateDraft applies a marker mutation to the route's draft only. With no
// active session the call is an observable no-op.
func (m *Manager) MutateDraft(routeID string, patch Patch) MutateResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[routeID]
	if !ok {
		return Ignored
	}
	if !patch.applyTo(&s.Draft) {
		return Ignored
	}
	return Applied
}

// HasUnsavedChanges reports whether the route has pending work: a preview
// road exists, or the draft differs positionally from the session original.
func (m *Manager) HasUnsavedChanges(routeID string) bool {
	if _, ok := m.store.ComputedRoad(routeID, route.RoadPreview); ok {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[routeID]
	if !ok {
		return false
	}
	return !s.Draft.EqualPositions(s.Original)
}

// Save promotes the draft to committed markers and any preview road to
// snapped, then closes the session. No-op without an active session.
// Returns the promoted markers for callers that build the save DTO.
func (m *Manager) Save(routeID string) (route.RouteMarkers, bool) {
	m.mu.Lock()
	s, ok := m.sessions[routeID]
	if !ok {
		m.mu.Unlock()
		return route.RouteMarkers{}, false
	}
	promoted := s.Draft.Clone()
	delete(m.sessions, routeID)
	m.mu.Unlock()

	m.store.SetMarkers(promoted)
	m.store.PromotePreview(routeID)
	return promoted.Clone(), true
}

// Discard restores the committed markers from the session original, drops
// any preview road, and re-opens a fresh session seeded from the restored
// markers so further edits stay trackable without another BeginEditing.
func (m *Manager) Discard(routeID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[routeID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	restored := s.Original.Clone()
	m.sessions[routeID] = &Session{
		RouteID:  routeID,
		Original: restored.Clone(),
		Draft:    restored.Clone(),
	}
	m.mu.Unlock()

	m.store.SetMarkers(restored)
	m.store.DeleteComputedRoad(routeID, route.RoadPreview)
	return true
}

// EndEditing closes a session without promoting or restoring anything.
// Used when a route is deleted mid-edit.
func (m *Manager) EndEditing(routeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, routeID)
}
