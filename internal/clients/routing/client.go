package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/routedesk/server/internal/cache"
	"github.com/routedesk/server/internal/lib/geo"
)

// ErrNoRouteFound indicates the routing service could not produce a road
// between the requested markers.
var ErrNoRouteFound = errors.New("no route found between the given points")

// HTTPDoer abstracts the HTTP client for testing
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the Routes API v2
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	cache      *cache.Cache
	cacheTTL   time.Duration
}

// RouteData represents the processed route information from the Routes API
type RouteData struct {
	DurationSeconds int32
	DistanceMeters  int32
	Polyline        string
}

// ComputationError is returned for non-2xx responses from the routing
// service. Retryable is set for transient failures (rate limiting, auth
// token refresh, server errors).
type ComputationError struct {
	StatusCode int
	Message    string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("route computation failed (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the caller may reasonably retry the request.
func (e *ComputationError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// NewClient creates a new Routes API client
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithHTTPDoer creates a client with a custom HTTP doer, used in tests
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: doer,
	}
}

// WithComputeCache memoizes successful computations for ttl. Traffic-aware
// results go stale quickly, so keep the TTL short.
func (c *Client) WithComputeCache(computeCache *cache.Cache, ttl time.Duration) *Client {
	c.cache = computeCache
	c.cacheTTL = ttl
	return c
}

// ComputeRoute performs coordinate-based route computation through the
// origin, any intermediate waypoints in order, and the destination.
func (c *Client) ComputeRoute(ctx context.Context, origin, destination geo.Point, intermediates []geo.Point) (*RouteData, error) {
	cacheKey := computeCacheKey(origin, destination, intermediates)
	if c.cache != nil {
		var cached RouteData
		if found, err := c.cache.Get(cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	requestBody := map[string]interface{}{
		"origin":            locationPayload(origin),
		"destination":       locationPayload(destination),
		"travelMode":        "DRIVE",
		"routingPreference": "TRAFFIC_AWARE",
	}
	if len(intermediates) > 0 {
		waypoints := make([]map[string]interface{}, 0, len(intermediates))
		for _, p := range intermediates {
			waypoints = append(waypoints, locationPayload(p))
		}
		requestBody["intermediates"] = waypoints
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/directions/v2:computeRoutes", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Field mask is REQUIRED or the API rejects the request
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", "routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ComputationError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	var response routesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Routes) == 0 {
		return nil, ErrNoRouteFound
	}

	data, err := processRouteResponse(response.Routes[0])
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		_ = c.cache.Set(cacheKey, data, c.cacheTTL, "routing")
	}
	return data, nil
}

// computeCacheKey identifies a computation by its full marker sequence
func computeCacheKey(origin, destination geo.Point, intermediates []geo.Point) string {
	key := fmt.Sprintf("route:%.6f,%.6f", origin.Latitude, origin.Longitude)
	for _, p := range intermediates {
		key += fmt.Sprintf(";%.6f,%.6f", p.Latitude, p.Longitude)
	}
	return key + fmt.Sprintf(";%.6f,%.6f", destination.Latitude, destination.Longitude)
}

func locationPayload(p geo.Point) map[string]interface{} {
	return map[string]interface{}{
		"location": map[string]interface{}{
			"latLng": map[string]interface{}{
				"latitude":  p.Latitude,
				"longitude": p.Longitude,
			},
		},
	}
}

func processRouteResponse(r apiRoute) (*RouteData, error) {
	// A route entry with an empty polyline is as useless as no route at all
	if r.Polyline.EncodedPolyline == "" {
		return nil, ErrNoRouteFound
	}

	durationSeconds, err := parseDuration(r.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration: %w", err)
	}

	return &RouteData{
		DurationSeconds: durationSeconds,
		DistanceMeters:  r.DistanceMeters,
		Polyline:        r.Polyline.EncodedPolyline,
	}, nil
}

// parseDuration parses the API duration format like "450s" to seconds
func parseDuration(durationStr string) (int32, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if len(durationStr) > 1 && durationStr[len(durationStr)-1] == 's' {
		durationStr = durationStr[:len(durationStr)-1]
	}

	var seconds int32
	_, err := fmt.Sscanf(durationStr, "%d", &seconds)
	return seconds, err
}

type routesResponse struct {
	Routes []apiRoute `json:"routes"`
}

type apiRoute struct {
	Duration       string      `json:"duration"`
	DistanceMeters int32       `json:"distanceMeters"`
	Polyline       apiPolyline `json:"polyline"`
}

type apiPolyline struct {
	EncodedPolyline string `json:"encodedPolyline"`
}
