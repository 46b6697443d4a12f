// Package history keeps a bounded undo/redo stack over the undo-relevant
// slice of application state. High-frequency gesture updates and derived
// caches never reach the stack; the projection and its equality predicate
// define exactly what counts as an undoable change.
package history

import (
	"sync"

	"github.com/routedesk/server/internal/lib/geo"
)

// MaxDepth bounds the undo stack; pushing beyond it evicts the oldest entry
const MaxDepth = 50

// Projection is the undoable subset of application state. Transient fields
// such as drag flags, validation progress, and derived geometry caches are
// deliberately absent, so restoring a snapshot never depends on replaying
// derived computation.
type Projection struct {
	DraftPoints []geo.Point `json:"draft_points"`

	SegmentCutPoints []geo.Point `json:"segment_cut_points"`
	SegmentDistance  float64     `json:"segment_distance"`
	SegmentType      string      `json:"segment_type"`

	WorkingRouteIDs []string `json:"working_route_ids"`
	TempSelection   []string `json:"temp_selection"`
	SelectionMode   string   `json:"selection_mode"`
	RouteInMaking   bool     `json:"route_in_making"`
}

// Observation is a projection plus the gesture flags that gate recording.
// While a drag or cut-point manipulation is in progress no snapshot is
// pushed; recording is deferred to gesture completion.
type Observation struct {
	Projection
	IsDragging    bool
	CutInProgress bool
}

// Equal is the snapshot equality predicate. Two projections are equal when
// their segmentation cut points, distance and type match, their draft route
// points match by count and contents, and their working route set,
// temporary selection, selection mode and route-in-making flag match.
func Equal(a, b Projection) bool {
	if a.SegmentDistance != b.SegmentDistance || a.SegmentType != b.SegmentType {
		return false
	}
	if !equalPoints(a.SegmentCutPoints, b.SegmentCutPoints) {
		return false
	}
	if !equalPoints(a.DraftPoints, b.DraftPoints) {
		return false
	}
	if !equalStrings(a.WorkingRouteIDs, b.WorkingRouteIDs) {
		return false
	}
	if !equalStrings(a.TempSelection, b.TempSelection) {
		return false
	}
	return a.SelectionMode == b.SelectionMode && a.RouteInMaking == b.RouteInMaking
}

func equalPoints(a, b []geo.Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RestoreHook runs after every undo or redo with the restored projection.
// Restoring must recompute derived preview geometry for any segmentation
// active in the snapshot, since derived caches are not recorded.
type RestoreHook func(Projection)

// Manager is a bounded linear undo/redo history
type Manager struct {
	mu      sync.Mutex
	entries []Projection
	index   int
	hook    RestoreHook
}

// NewManager creates an empty history. hook may be nil.
func NewManager(hook RestoreHook) *Manager {
	return &Manager{index: -1, hook: hook}
}

// Observe evaluates one state change and reports whether a snapshot was
// pushed. Gesture-in-progress observations are never recorded, and a
// projection equal to the current snapshot is coalesced. Pushing truncates
// any redo tail.
func (m *Manager) Observe(obs Observation) bool {
	if obs.IsDragging || obs.CutInProgress {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index >= 0 && Equal(m.entries[m.index], obs.Projection) {
		return false
	}

	snapshot := cloneProjection(obs.Projection)

	m.entries = append(m.entries[:m.index+1], snapshot)
	if len(m.entries) > MaxDepth {
		m.entries = m.entries[len(m.entries)-MaxDepth:]
	}
	m.index = len(m.entries) - 1
	return true
}

// Undo steps back one snapshot and runs the restore hook
func (m *Manager) Undo() (Projection, bool) {
	m.mu.Lock()
	if m.index <= 0 {
		m.mu.Unlock()
		return Projection{}, false
	}
	m.index--
	restored := cloneProjection(m.entries[m.index])
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(restored)
	}
	return restored, true
}

// Redo steps forward one snapshot and runs the restore hook
func (m *Manager) Redo() (Projection, bool) {
	m.mu.Lock()
	if m.index < 0 || m.index >= len(m.entries)-1 {
		m.mu.Unlock()
		return Projection{}, false
	}
	m.index++
	restored := cloneProjection(m.entries[m.index])
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(restored)
	}
	return restored, true
}

// CanUndo reports whether an earlier snapshot exists
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index > 0
}

// CanRedo reports whether a later snapshot exists
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index >= 0 && m.index < len(m.entries)-1
}

// Depth returns the number of recorded snapshots
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Current returns the snapshot at the history cursor
func (m *Manager) Current() (Projection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index < 0 {
		return Projection{}, false
	}
	return cloneProjection(m.entries[m.index]), true
}

func cloneProjection(p Projection) Projection {
	cloned := p
	cloned.DraftPoints = append([]geo.Point(nil), p.DraftPoints...)
	cloned.SegmentCutPoints = append([]geo.Point(nil), p.SegmentCutPoints...)
	cloned.WorkingRouteIDs = append([]string(nil), p.WorkingRouteIDs...)
	cloned.TempSelection = append([]string(nil), p.TempSelection...)
	return cloned
}
