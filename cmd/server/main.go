package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/dpup/prefab"

	"github.com/routedesk/server/internal/boundary"
	"github.com/routedesk/server/internal/cache"
	"github.com/routedesk/server/internal/clients/ingest"
	"github.com/routedesk/server/internal/clients/routing"
	"github.com/routedesk/server/internal/config"
	"github.com/routedesk/server/internal/editing"
	"github.com/routedesk/server/internal/generation"
	"github.com/routedesk/server/internal/handler"
	"github.com/routedesk/server/internal/history"
	"github.com/routedesk/server/internal/route"
	"github.com/routedesk/server/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Jurisdiction boundary is optional; without it every generated
	// geometry is accepted.
	var jurisdiction *boundary.Boundary
	if cfg.BoundaryFile != "" {
		jurisdiction, err = boundary.FromFile(cfg.BoundaryFile)
		if err != nil {
			log.Fatalf("Failed to load boundary file %s: %v", cfg.BoundaryFile, err)
		}
		log.Printf("Boundary validation enabled from %s", cfg.BoundaryFile)
	}

	// External API clients. Route computations are memoized briefly so an
	// unchanged marker set does not refetch.
	routingClient := routing.NewClient(cfg.RoutingAPIKey, cfg.RoutingBaseURL)
	if cfg.RoutingCacheTTL > 0 {
		computeCache := cache.New()
		computeCache.StartPeriodicCleanup(context.Background(), 5*time.Minute)
		routingClient = routingClient.WithComputeCache(computeCache, cfg.RoutingCacheTTL)
	}
	ingestClient := ingest.NewClient(cfg.IngestBaseURL)

	// Core state and coordination
	store := route.NewStore()
	editingMgr := editing.NewManager(store)
	registry := generation.NewCancelRegistry()
	coordinator := generation.NewCoordinator(store, editingMgr, routingClient, jurisdiction, registry)
	processor := upload.NewProcessor(store, routingClient, jurisdiction, registry, nil)
	historyMgr := history.NewManager(func(snapshot history.Projection) {
		log.Printf("History restored: %d draft points, selection mode %q", len(snapshot.DraftPoints), snapshot.SelectionMode)
	})

	mux := http.NewServeMux()
	h := handler.NewHTTPHandler(store, editingMgr, coordinator, processor, ingestClient, historyMgr, cfg.DefaultProjectID)
	h.Register(mux)

	log.Printf("Route editing server starting")
	log.Printf("Routing backend: %s", cfg.RoutingBaseURL)
	log.Printf("Ingestion backend: %s", cfg.IngestBaseURL)

	// Server port and TLS come from prefab.yaml / PF__ env vars
	server := prefab.New(
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandlerFunc("/v1/", mux.ServeHTTP),
	)

	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>routedesk</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">routedesk</span>

Vehicle route registration and editing server.

<span class="header">API Endpoints:</span>

Routes:
  <a href="/v1/routes">GET /v1/routes</a>                    - List registered routes
  GET /v1/routes/{id}              - Get one route
  GET /v1/routes/{id}/export       - Route in its save shape
  DELETE /v1/routes/{id}           - Soft-delete a route

Editing:
  POST /v1/routes/{id}/edit/begin
  POST /v1/routes/{id}/edit/mutate
  POST /v1/routes/{id}/edit/save
  POST /v1/routes/{id}/edit/discard

Generation:
  POST /v1/routes/{id}/regenerate
  POST /v1/routes/{id}/regenerate/cancel

Uploads:
  POST /v1/uploads
  POST /v1/uploads/{batchID}/cancel

History:
  <a href="/v1/history">GET /v1/history</a>
  POST /v1/history/undo
  POST /v1/history/redo
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
