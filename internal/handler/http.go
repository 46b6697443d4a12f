// Package handler exposes the editing, generation, upload and history
// operations over HTTP. Handlers are the only mutation surface; nothing
// touches the stores directly.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/routedesk/server/internal/boundary"
	"github.com/routedesk/server/internal/clients/ingest"
	"github.com/routedesk/server/internal/clients/routing"
	"github.com/routedesk/server/internal/editing"
	"github.com/routedesk/server/internal/generation"
	"github.com/routedesk/server/internal/history"
	"github.com/routedesk/server/internal/lib/geo"
	"github.com/routedesk/server/internal/route"
	"github.com/routedesk/server/internal/upload"
)

// maxUploadBytes bounds uploaded geometry files
const maxUploadBytes = 32 << 20

type HTTPHandler struct {
	store       *route.Store
	editing     *editing.Manager
	coordinator *generation.Coordinator
	processor   *upload.Processor
	ingest      *ingest.Client
	history     *history.Manager
	projectID   int
}

func NewHTTPHandler(store *route.Store, editingMgr *editing.Manager, coordinator *generation.Coordinator, processor *upload.Processor, ingestClient *ingest.Client, historyMgr *history.Manager, projectID int) *HTTPHandler {
	return &HTTPHandler{
		store:       store,
		editing:     editingMgr,
		coordinator: coordinator,
		processor:   processor,
		ingest:      ingestClient,
		history:     historyMgr,
		projectID:   projectID,
	}
}

// Register mounts every route on the mux
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/routes", h.ListRoutes)
	mux.HandleFunc("GET /v1/routes/{id}", h.GetRoute)
	mux.HandleFunc("DELETE /v1/routes/{id}", h.DeleteRoute)
	mux.HandleFunc("GET /v1/routes/{id}/export", h.ExportRoute)

	mux.HandleFunc("POST /v1/routes/{id}/edit/begin", h.BeginEditing)
	mux.HandleFunc("POST /v1/routes/{id}/edit/mutate", h.MutateDraft)
	mux.HandleFunc("POST /v1/routes/{id}/edit/save", h.SaveEditing)
	mux.HandleFunc("POST /v1/routes/{id}/edit/discard", h.DiscardEditing)
	mux.HandleFunc("GET /v1/routes/{id}/edit", h.EditingStatus)

	mux.HandleFunc("POST /v1/routes/{id}/regenerate", h.Regenerate)
	mux.HandleFunc("POST /v1/routes/{id}/regenerate/cancel", h.CancelRegenerate)

	mux.HandleFunc("POST /v1/uploads", h.Upload)
	mux.HandleFunc("POST /v1/uploads/preview", h.PreviewUpload)
	mux.HandleFunc("POST /v1/uploads/{batchID}/cancel", h.CancelUpload)

	mux.HandleFunc("GET /v1/history", h.HistoryStatus)
	mux.HandleFunc("POST /v1/history/undo", h.Undo)
	mux.HandleFunc("POST /v1/history/redo", h.Redo)
}

func (h *HTTPHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes := h.store.ListRoutes()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"routes": routes,
		"count":  len(routes),
	})
}

func (h *HTTPHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stored, ok := h.store.Route(id)
	if !ok {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}
	respondJSON(w, http.StatusOK, stored)
}

func (h *HTTPHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.store.SoftDeleteRoute(id) {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}
	h.editing.EndEditing(id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ExportRoute serializes a route in the persisted save shape: committed
// markers plus the latest snapped geometry.
func (h *HTTPHandler) ExportRoute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stored, ok := h.store.Route(id)
	if !ok {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}
	markers, ok := h.store.Markers(id)
	if !ok {
		markers = route.RouteMarkers{RouteID: id, Start: stored.Origin, End: stored.Destination, Waypoints: stored.Waypoints}
	}
	snapped, _ := h.store.ComputedRoad(id, route.RoadSnapped)
	respondJSON(w, http.StatusOK, route.BuildSaveRequest(stored, markers, snapped))
}

func (h *HTTPHandler) BeginEditing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.editing.BeginEditing(id) {
		respondError(w, http.StatusNotFound, "no committed markers exist for route")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"editing":             true,
		"has_unsaved_changes": h.editing.HasUnsavedChanges(id),
	})
}

type mutateRequest struct {
	Op         string     `json:"op"`
	Position   *geo.Point `json:"position,omitempty"`
	WaypointID string     `json:"waypoint_id,omitempty"`
	Order      *int       `json:"order,omitempty"`
}

func (h *HTTPHandler) MutateDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	patch, err := patchFromRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.editing.MutateDraft(id, patch)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"result":              result,
		"has_unsaved_changes": h.editing.HasUnsavedChanges(id),
	})
}

func patchFromRequest(req mutateRequest) (editing.Patch, error) {
	needPosition := func() (geo.Point, error) {
		if req.Position == nil {
			return geo.Point{}, errors.New("op requires a position")
		}
		return *req.Position, nil
	}
	needWaypoint := func() (string, error) {
		if req.WaypointID == "" {
			return "", errors.New("op requires a waypoint_id")
		}
		return req.WaypointID, nil
	}

	switch req.Op {
	case "move_start":
		p, err := needPosition()
		if err != nil {
			return nil, err
		}
		return editing.MoveStart{Position: p}, nil
	case "move_end":
		p, err := needPosition()
		if err != nil {
			return nil, err
		}
		return editing.MoveEnd{Position: p}, nil
	case "swap_endpoints":
		return editing.SwapEndpoints{}, nil
	case "add_waypoint":
		p, err := needPosition()
		if err != nil {
			return nil, err
		}
		return editing.AddWaypoint{Position: p, Order: req.Order}, nil
	case "remove_waypoint":
		id, err := needWaypoint()
		if err != nil {
			return nil, err
		}
		return editing.RemoveWaypoint{WaypointID: id}, nil
	case "move_waypoint":
		id, err := needWaypoint()
		if err != nil {
			return nil, err
		}
		p, err := needPosition()
		if err != nil {
			return nil, err
		}
		return editing.MoveWaypoint{WaypointID: id, Position: p}, nil
	case "reorder_waypoint":
		id, err := needWaypoint()
		if err != nil {
			return nil, err
		}
		if req.Order == nil {
			return nil, errors.New("reorder_waypoint requires an order")
		}
		return editing.ReorderWaypoint{WaypointID: id, NewOrder: *req.Order}, nil
	case "move_waypoint_up":
		id, err := needWaypoint()
		if err != nil {
			return nil, err
		}
		return editing.MoveWaypointUp{WaypointID: id}, nil
	case "move_waypoint_down":
		id, err := needWaypoint()
		if err != nil {
			return nil, err
		}
		return editing.MoveWaypointDown{WaypointID: id}, nil
	default:
		return nil, errors.New("unknown op: " + req.Op)
	}
}

type saveRequest struct {
	Name string `json:"name,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

// SaveEditing promotes the draft and any preview geometry to committed state
// and persists the route record in its save shape.
func (h *HTTPHandler) SaveEditing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req saveRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	markers, ok := h.editing.Save(id)
	if !ok {
		respondError(w, http.StatusConflict, "no edit session is open for route")
		return
	}

	stored, exists := h.store.Route(id)
	if !exists {
		stored = route.Route{ID: id, CreatedAt: time.Now(), ProjectID: h.projectID}
	}
	if req.Name != "" {
		stored.Name = req.Name
	}
	if req.Tag != "" {
		stored.Tag = req.Tag
	}
	stored.Origin = markers.Start
	stored.Destination = markers.End
	stored.Waypoints = markers.OrderedWaypoints()
	stored.UpdatedAt = time.Now()

	snapped, hasRoad := h.store.ComputedRoad(id, route.RoadSnapped)
	if hasRoad {
		stored.EncodedPolyline = snapped.EncodedPolyline
	}
	h.store.SaveRoute(stored)

	respondJSON(w, http.StatusOK, route.BuildSaveRequest(stored, markers, snapped))
}

func (h *HTTPHandler) DiscardEditing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.editing.Discard(id) {
		respondError(w, http.StatusConflict, "no edit session is open for route")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"editing":             true,
		"has_unsaved_changes": false,
	})
}

func (h *HTTPHandler) EditingStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	markers, hasMarkers := h.editing.CurrentMarkers(id)
	status := map[string]interface{}{
		"editing":             h.editing.IsEditing(id),
		"has_unsaved_changes": h.editing.HasUnsavedChanges(id),
	}
	if hasMarkers {
		status["markers"] = markers
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *HTTPHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	road, err := h.coordinator.Regenerate(r.Context(), id)
	if err != nil {
		switch {
		case generation.IsCancellation(err):
			// Superseded or cancelled work is not an error
			respondJSON(w, http.StatusOK, map[string]string{"status": "superseded"})
		case errors.Is(err, generation.ErrNoMarkers), errors.Is(err, generation.ErrMissingEndpoints):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, boundary.ErrOutsideBoundary):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, routing.ErrNoRouteFound):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, road)
}

func (h *HTTPHandler) CancelRegenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cancelled := h.coordinator.Cancel(id)
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// Upload accepts a multipart geometry file, has the ingestion service parse
// it, and drives batch route generation. The response is the end-of-batch
// summary.
func (h *HTTPHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	naming := upload.NamingConfig{Type: upload.NamingFeatureName}
	switch r.FormValue("naming_type") {
	case "prefix":
		naming = upload.NamingConfig{Type: upload.NamingPrefix, Prefix: r.FormValue("naming_value")}
	case "property":
		naming = upload.NamingConfig{Type: upload.NamingProperty, Property: r.FormValue("naming_value")}
	}
	colorTag := r.FormValue("color_tag")

	processed, err := h.ingest.ProcessFile(r.Context(), header.Filename, file)
	if err != nil {
		respondError(w, http.StatusBadGateway, "file processing failed: "+err.Error())
		return
	}

	summary, err := h.processor.Process(r.Context(), processed.FileName, processed.Features, naming, colorTag)
	if err != nil {
		var unsupported *upload.UnsupportedGeometryError
		var tooMany *upload.TooManyFeaturesError
		if errors.As(err, &unsupported) || errors.As(err, &tooMany) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// PreviewUpload returns file metadata only, so a naming strategy can be
// chosen before committing to the full batch.
func (h *HTTPHandler) PreviewUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	preview, err := h.ingest.PreviewFile(r.Context(), header.Filename, file)
	if err != nil {
		respondError(w, http.StatusBadGateway, "file preview failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, preview)
}

func (h *HTTPHandler) CancelUpload(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("batchID")
	if !h.processor.Cancel(batchID) {
		respondError(w, http.StatusNotFound, "no batch in progress with that id")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (h *HTTPHandler) HistoryStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"depth":    h.history.Depth(),
		"can_undo": h.history.CanUndo(),
		"can_redo": h.history.CanRedo(),
	})
}

func (h *HTTPHandler) Undo(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.history.Undo()
	if !ok {
		respondError(w, http.StatusConflict, "nothing to undo")
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (h *HTTPHandler) Redo(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.history.Redo()
	if !ok {
		respondError(w, http.StatusConflict, "nothing to redo")
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
