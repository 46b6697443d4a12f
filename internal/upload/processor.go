// Package upload drives batch route creation from uploaded geometry files:
// validation, boundary filtering, naming, and concurrent per-feature route
// generation with a single end-of-batch summary.
package upload

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/routedesk/server/internal/boundary"
	"github.com/routedesk/server/internal/generation"
	"github.com/routedesk/server/internal/lib/geo"
	"github.com/routedesk/server/internal/lib/geojson"
	"github.com/routedesk/server/internal/route"
)

// MaxFeatures is the hard cap on features per uploaded batch
const MaxFeatures = 500

// matchThresholdMeters is the corridor width used when scoring how closely
// a generated road follows the uploaded source geometry.
const matchThresholdMeters = 25.0

// UnsupportedGeometryError reports the geometry types that made an upload
// unprocessable. Only line geometries can become routes.
type UnsupportedGeometryError struct {
	Types []string
}

func (e *UnsupportedGeometryError) Error() string {
	return fmt.Sprintf("unsupported geometry types in upload: %s (only LineString and MultiLineString are accepted)",
		strings.Join(e.Types, ", "))
}

// TooManyFeaturesError reports an upload exceeding the feature cap
type TooManyFeaturesError struct {
	Count int
}

func (e *TooManyFeaturesError) Error() string {
	return fmt.Sprintf("upload has %d features, exceeding the limit of %d", e.Count, MaxFeatures)
}

// NamingType selects how uploaded features are named
type NamingType string

const (
	// NamingPrefix names features "<prefix> <n>" in input order
	NamingPrefix NamingType = "prefix"
	// NamingProperty names features from a chosen feature property
	NamingProperty NamingType = "property"
	// NamingFeatureName names features from their own "name" property
	NamingFeatureName NamingType = "feature_name"
)

// NamingConfig describes the naming strategy for a batch
type NamingConfig struct {
	Type     NamingType `json:"type"`
	Prefix   string     `json:"prefix,omitempty"`
	Property string     `json:"property,omitempty"`
}

// FeatureFailure records one feature whose route generation failed
type FeatureFailure struct {
	FeatureID string `json:"feature_id"`
	Name      string `json:"name"`
	Error     string `json:"error"`
}

// BatchSummary is the aggregate outcome of one upload batch
type BatchSummary struct {
	BatchID      string           `json:"batch_id"`
	FileName     string           `json:"file_name"`
	Accepted     int              `json:"accepted"`
	Discarded    int              `json:"discarded"`
	Failed       []FeatureFailure `json:"failed"`
	Cancelled    bool             `json:"cancelled"`
	AllDiscarded bool             `json:"all_discarded"`
}

// ProgressNotifier receives batch lifecycle events. The dismissal hook lets
// a cancel tear down any pending progress indicator.
type ProgressNotifier interface {
	BatchStarted(batchID string, total int)
	BatchFinished(summary BatchSummary)
	BatchDismissed(batchID string)
}

// Processor fans out per-feature route generation for uploaded geometry.
// Generation tasks share the coordinator's cancel registry so a batch-level
// cancel aborts every outstanding request.
type Processor struct {
	store    *route.Store
	computer generation.RouteComputer
	boundary *boundary.Boundary
	registry *generation.CancelRegistry
	notifier ProgressNotifier
	geoUtils geo.GeoUtils

	mu      sync.Mutex
	batches map[string]*batchState
}

type batchState struct {
	cancelled bool
	taskKeys  []string
}

// NewProcessor creates a batch processor. boundary and notifier may be nil.
func NewProcessor(store *route.Store, computer generation.RouteComputer, b *boundary.Boundary, registry *generation.CancelRegistry, notifier ProgressNotifier) *Processor {
	return &Processor{
		store:    store,
		computer: computer,
		boundary: b,
		registry: registry,
		notifier: notifier,
		geoUtils: geo.NewGeoUtils(),
		batches:  make(map[string]*batchState),
	}
}

// Process validates and imports an uploaded feature set, generating a road
// for every feature that survives boundary filtering. It blocks until every
// generation task has finished and returns the batch summary. Individual
// generation failures never abort the batch; they are collected into the
// summary. Validation failures abort before any side effect.
func (p *Processor) Process(ctx context.Context, fileName string, features []geojson.Feature, naming NamingConfig, colorTag string) (*BatchSummary, error) {
	if err := validateFeatures(features); err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	state := &batchState{}
	p.mu.Lock()
	p.batches[batchID] = state
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.batches, batchID)
		p.mu.Unlock()
	}()

	if p.notifier != nil {
		p.notifier.BatchStarted(batchID, len(features))
	}

	summary := &BatchSummary{BatchID: batchID, FileName: fileName}
	var summaryMu sync.Mutex
	var wg sync.WaitGroup

	for i, feature := range features {
		// Checkpoint 1: before any per-feature work
		if p.isCancelled(batchID) {
			break
		}

		name := resolveName(feature, naming, fileName, i)

		// Checkpoint 2: after name resolution
		if p.isCancelled(batchID) {
			break
		}

		points, err := feature.Geometry.LineCoordinates()
		if err != nil || len(points) == 0 {
			summaryMu.Lock()
			summary.Failed = append(summary.Failed, FeatureFailure{Name: name, Error: "feature has no usable coordinates"})
			summaryMu.Unlock()
			continue
		}

		// Boundary filtering happens on the raw uploaded path, before any
		// geometry is generated, so every coordinate is checked.
		if p.boundary != nil {
			if err := p.boundary.ContainsAll(points); err != nil {
				summaryMu.Lock()
				summary.Discarded++
				summaryMu.Unlock()
				continue
			}
		}

		// Checkpoint 3: before registering the uploaded route
		if p.isCancelled(batchID) {
			break
		}

		uploaded := route.UploadedRoute{
			ID:             uuid.NewString(),
			BatchID:        batchID,
			Name:           name,
			SourceGeometry: feature.Geometry,
			ColorTag:       colorTag,
			UploadedAt:     time.Now(),
		}
		p.store.AddUploadedRoute(uploaded)

		// Checkpoint 4: after registration, before dispatching generation.
		// The cancelled check, key record, and registry registration form
		// one critical section: a concurrent Cancel either sees the task
		// key in its sweep or stops this dispatch, never neither.
		taskKey := "upload:" + uploaded.ID
		p.mu.Lock()
		if state.cancelled {
			p.mu.Unlock()
			break
		}
		state.taskKeys = append(state.taskKeys, taskKey)
		taskCtx, epoch := p.registry.Begin(ctx, taskKey)
		p.mu.Unlock()

		// Generation is fire-and-forget relative to the loop; features
		// generate in parallel and the wait group is the join barrier.
		wg.Add(1)
		go func(uploaded route.UploadedRoute, points []geo.Point, taskCtx context.Context, epoch uint64) {
			defer wg.Done()
			p.generateRoute(taskCtx, taskKey, epoch, uploaded, points, summary, &summaryMu)
		}(uploaded, points, taskCtx, epoch)
	}

	wg.Wait()

	if p.isCancelled(batchID) {
		summary.Cancelled = true
		// A dismissed batch reports no per-feature failures; in-flight
		// results are ignored, not errors.
		summary.Failed = nil
		// Roll back tasks that finished before the cancel landed, so no
		// route or geometry outlives its parent upload.
		for _, u := range p.store.UploadedRoutesByBatch(batchID) {
			p.store.DeleteComputedRoad(u.ID, route.RoadSnapped)
			p.store.DeleteMarkers(u.ID)
			p.store.DeleteRoute(u.ID)
		}
		p.store.RemoveBatch(batchID)
		if p.notifier != nil {
			p.notifier.BatchDismissed(batchID)
		}
		return summary, nil
	}

	summary.AllDiscarded = summary.Accepted == 0 && summary.Discarded > 0 && len(summary.Failed) == 0
	if summary.AllDiscarded {
		log.Printf("Batch %s: all %d features discarded by boundary", batchID, summary.Discarded)
	}
	sort.Slice(summary.Failed, func(i, j int) bool {
		return summary.Failed[i].Name < summary.Failed[j].Name
	})
	if p.notifier != nil {
		p.notifier.BatchFinished(*summary)
	}
	return summary, nil
}

// Cancel aborts an in-progress batch: no new features start, every
// outstanding generation request is cancelled, and the batch's uploaded
// routes are removed.
func (p *Processor) Cancel(batchID string) bool {
	p.mu.Lock()
	state, ok := p.batches[batchID]
	if !ok {
		p.mu.Unlock()
		return false
	}
	state.cancelled = true
	keys := make([]string, len(state.taskKeys))
	copy(keys, state.taskKeys)
	p.mu.Unlock()

	for _, key := range keys {
		p.registry.Cancel(key)
	}
	return true
}

func (p *Processor) isCancelled(batchID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.batches[batchID]
	return ok && state.cancelled
}

// generateRoute computes the optimized road for one uploaded feature:
// origin is the first uploaded coordinate, destination the last, with no
// intermediate stops. Failures are recorded, never propagated; cancellation
// is recorded nowhere.
func (p *Processor) generateRoute(ctx context.Context, taskKey string, epoch uint64, uploaded route.UploadedRoute, points []geo.Point, summary *BatchSummary, summaryMu *sync.Mutex) {
	fail := func(message string) {
		p.store.RemoveUploadedRoute(uploaded.ID)
		summaryMu.Lock()
		summary.Failed = append(summary.Failed, FeatureFailure{
			FeatureID: uploaded.ID,
			Name:      uploaded.Name,
			Error:     message,
		})
		summaryMu.Unlock()
	}

	data, err := p.computer.ComputeRoute(ctx, points[0], points[len(points)-1], nil)
	if err != nil {
		p.registry.Finish(taskKey, epoch)
		if ctx.Err() != nil {
			return
		}
		fail(err.Error())
		return
	}

	generated, err := p.geoUtils.DecodePolyline(data.Polyline)
	if err != nil {
		p.registry.Finish(taskKey, epoch)
		fail(fmt.Sprintf("failed to decode generated polyline: %v", err))
		return
	}

	road := route.ComputedRoad{
		RouteID:         uploaded.ID,
		Kind:            route.RoadSnapped,
		EncodedPolyline: data.Polyline,
		Points:          generated,
		DistanceMeters:  data.DistanceMeters,
		DurationSeconds: data.DurationSeconds,
		ComputedAt:      time.Now(),
	}

	committed := p.registry.Complete(taskKey, epoch, func() {
		p.store.SetComputedRoad(road)
		p.store.SetMarkers(route.RouteMarkers{
			RouteID: uploaded.ID,
			Start:   points[0],
			End:     points[len(points)-1],
		})

		saved := route.Route{
			ID:               uploaded.ID,
			Name:             uploaded.Name,
			Origin:           points[0],
			Destination:      points[len(points)-1],
			EncodedPolyline:  data.Polyline,
			Tag:              uploaded.ColorTag,
			OriginalGeometry: &uploaded.SourceGeometry,
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}
		if length, err := p.geoUtils.PathLength(generated); err == nil {
			saved.LengthMeters = length
		}
		if match, err := p.matchPercentage(generated, points); err == nil {
			saved.MatchPercentage = &match
		}
		p.store.SaveRoute(saved)
	})
	if !committed {
		return
	}

	summaryMu.Lock()
	summary.Accepted++
	summaryMu.Unlock()
}

// matchPercentage scores how much of the generated road lies within the
// match corridor of the uploaded source geometry.
func (p *Processor) matchPercentage(generated, source []geo.Point) (float64, error) {
	return p.geoUtils.PolylineOverlapPercentage(
		geo.Polyline{Points: generated},
		geo.Polyline{Points: source},
		matchThresholdMeters,
	)
}

func validateFeatures(features []geojson.Feature) error {
	if len(features) > MaxFeatures {
		return &TooManyFeaturesError{Count: len(features)}
	}

	seen := make(map[string]bool)
	var unsupported []string
	for _, f := range features {
		if !f.Geometry.IsLineGeometry() && !seen[f.Geometry.Type] {
			seen[f.Geometry.Type] = true
			unsupported = append(unsupported, f.Geometry.Type)
		}
	}
	if len(unsupported) > 0 {
		sort.Strings(unsupported)
		return &UnsupportedGeometryError{Types: unsupported}
	}
	return nil
}

// resolveName computes the display name for feature i under the batch's
// naming strategy. Every strategy falls back to "<file> - Feature <n>".
func resolveName(feature geojson.Feature, naming NamingConfig, fileName string, i int) string {
	fallback := fmt.Sprintf("%s - Feature %d", fileName, i+1)

	switch naming.Type {
	case NamingPrefix:
		if naming.Prefix != "" {
			return fmt.Sprintf("%s %d", naming.Prefix, i+1)
		}
	case NamingProperty:
		if naming.Property != "" {
			if value, ok := feature.StringProperty(naming.Property); ok {
				return value
			}
		}
	case NamingFeatureName:
		if value, ok := feature.StringProperty("name"); ok {
			return value
		}
	}
	return fallback
}
