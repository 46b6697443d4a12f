package route

import (
	"sync"
	"time"
)

// Store is the in-memory home of committed markers, computed roads, saved
// routes and uploaded features. Every mutation replaces a keyed entry
// wholesale so readers never observe partial updates.
type Store struct {
	mu       sync.RWMutex
	markers  map[string]RouteMarkers
	roads    map[roadKey]ComputedRoad
	routes   map[string]Route
	uploaded map[string]UploadedRoute
}

type roadKey struct {
	routeID string
	kind    RoadKind
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		markers:  make(map[string]RouteMarkers),
		roads:    make(map[roadKey]ComputedRoad),
		routes:   make(map[string]Route),
		uploaded: make(map[string]UploadedRoute),
	}
}

// SetMarkers replaces the committed marker set for a route
func (s *Store) SetMarkers(m RouteMarkers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[m.RouteID] = m.Clone()
}

// Markers returns a copy of the committed markers for a route
func (s *Store) Markers(routeID string) (RouteMarkers, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markers[routeID]
	if !ok {
		return RouteMarkers{}, false
	}
	return m.Clone(), true
}

// DeleteMarkers removes the committed markers for a route
func (s *Store) DeleteMarkers(routeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, routeID)
}

// SetComputedRoad stores a generated-geometry result, replacing any prior
// entry for the same route and kind.
func (s *Store) SetComputedRoad(road ComputedRoad) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roads[roadKey{road.RouteID, road.Kind}] = road
}

// ComputedRoad returns the geometry of the given kind for a route
func (s *Store) ComputedRoad(routeID string, kind RoadKind) (ComputedRoad, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	road, ok := s.roads[roadKey{routeID, kind}]
	return road, ok
}

// DeleteComputedRoad drops the geometry of the given kind for a route
func (s *Store) DeleteComputedRoad(routeID string, kind RoadKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roads, roadKey{routeID, kind})
}

// PromotePreview moves a route's preview geometry into the snapped bucket,
// replacing any prior snapped entry and clearing the preview. Returns false
// when no preview exists.
func (s *Store) PromotePreview(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	preview, ok := s.roads[roadKey{routeID, RoadPreview}]
	if !ok {
		return false
	}
	preview.Kind = RoadSnapped
	s.roads[roadKey{routeID, RoadSnapped}] = preview
	delete(s.roads, roadKey{routeID, RoadPreview})
	return true
}

// SaveRoute inserts or replaces a route record
func (s *Store) SaveRoute(r Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[r.ID] = r
}

// Route returns a route by id, including soft-deleted entries
func (s *Store) Route(id string) (Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[id]
	return r, ok
}

// ListRoutes returns all routes that have not been soft-deleted
func (s *Store) ListRoutes() []Route {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routes := make([]Route, 0, len(s.routes))
	for _, r := range s.routes {
		if r.DeletedAt == nil {
			routes = append(routes, r)
		}
	}
	return routes
}

// SoftDeleteRoute marks a route as deleted without removing the record.
// Returns false when the route does not exist.
func (s *Store) SoftDeleteRoute(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routes[id]
	if !ok || r.DeletedAt != nil {
		return false
	}
	now := time.Now()
	r.DeletedAt = &now
	r.UpdatedAt = now
	s.routes[id] = r
	return true
}

// DeleteRoute removes a route record entirely. Soft delete is the normal
// path; hard removal is for rolling back a dismissed upload batch.
func (s *Store) DeleteRoute(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[id]; !ok {
		return false
	}
	delete(s.routes, id)
	return true
}

// AddUploadedRoute registers an uploaded candidate feature
func (s *Store) AddUploadedRoute(u UploadedRoute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[u.ID] = u
}

// UploadedRoute returns an uploaded feature by id
func (s *Store) UploadedRoute(id string) (UploadedRoute, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.uploaded[id]
	return u, ok
}

// RemoveUploadedRoute drops a single uploaded feature
func (s *Store) RemoveUploadedRoute(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploaded[id]; !ok {
		return false
	}
	delete(s.uploaded, id)
	return true
}

// UploadedRoutesByBatch returns the uploaded features of one batch
func (s *Store) UploadedRoutesByBatch(batchID string) []UploadedRoute {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []UploadedRoute
	for _, u := range s.uploaded {
		if u.BatchID == batchID {
			result = append(result, u)
		}
	}
	return result
}

// RemoveBatch drops every uploaded feature belonging to a batch. Used when a
// batch is cancelled or cleared; completed uploads otherwise persist.
func (s *Store) RemoveBatch(batchID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id, u := range s.uploaded {
		if u.BatchID == batchID {
			delete(s.uploaded, id)
			removed++
		}
	}
	return removed
}
