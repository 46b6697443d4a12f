package routing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/server/internal/cache"
	"github.com/routedesk/server/internal/lib/geo"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	return args.Get(0).(*http.Response), args.Error(1)
}

// Helper function to create mock HTTP response
func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

const routeFixture = `{
	"routes": [
		{
			"duration": "9857s",
			"distanceMeters": 280226,
			"polyline": {"encodedPolyline": "ipkcF~pesO_@~@"}
		}
	]
}`

func TestComputeRoute_Success(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, routeFixture), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.example.com", mockHTTP)

	origin := geo.Point{Latitude: 47.6062, Longitude: -122.3321}
	destination := geo.Point{Latitude: 45.5152, Longitude: -122.6784}

	routeData, err := client.ComputeRoute(context.Background(), origin, destination, nil)

	require.NoError(t, err)
	require.NotNil(t, routeData)
	assert.Equal(t, int32(9857), routeData.DurationSeconds)
	assert.Equal(t, int32(280226), routeData.DistanceMeters)
	assert.Equal(t, "ipkcF~pesO_@~@", routeData.Polyline)

	mockHTTP.AssertExpectations(t)
}

func TestComputeRoute_RequestHeadersAndIntermediates(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}

	var captured *http.Request
	var capturedBody []byte
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Run(func(args mock.Arguments) {
		captured = args.Get(0).(*http.Request)
		capturedBody, _ = io.ReadAll(captured.Body)
	}).Return(createMockResponse(200, routeFixture), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.example.com", mockHTTP)

	origin := geo.Point{Latitude: 47.6062, Longitude: -122.3321}
	destination := geo.Point{Latitude: 45.5152, Longitude: -122.6784}
	via := []geo.Point{
		{Latitude: 46.5, Longitude: -122.5},
		{Latitude: 46.0, Longitude: -122.6},
	}

	_, err := client.ComputeRoute(context.Background(), origin, destination, via)
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "test-api-key", captured.Header.Get("X-Goog-Api-Key"))
	assert.NotEmpty(t, captured.Header.Get("X-Goog-FieldMask"), "field mask header is mandatory")
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(capturedBody, &body))
	assert.Equal(t, "TRAFFIC_AWARE", body["routingPreference"])

	intermediates, ok := body["intermediates"].([]interface{})
	require.True(t, ok, "intermediates should be present when waypoints exist")
	assert.Len(t, intermediates, 2)

	mockHTTP.AssertExpectations(t)
}

func TestComputeRoute_NoRoutes(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"routes": []}`), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.example.com", mockHTTP)

	routeData, err := client.ComputeRoute(context.Background(),
		geo.Point{Latitude: 47.6}, geo.Point{Latitude: 45.5}, nil)

	assert.Nil(t, routeData)
	assert.ErrorIs(t, err, ErrNoRouteFound)

	mockHTTP.AssertExpectations(t)
}

func TestComputeRoute_EmptyPolylineIsNoRoute(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"routes": [{"duration": "10s", "distanceMeters": 5, "polyline": {"encodedPolyline": ""}}]}`), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.example.com", mockHTTP)

	_, err := client.ComputeRoute(context.Background(),
		geo.Point{Latitude: 47.6}, geo.Point{Latitude: 45.5}, nil)

	assert.ErrorIs(t, err, ErrNoRouteFound)
}

func TestComputeRoute_ErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", 429, true},
		{"auth expired", 401, true},
		{"server error", 503, true},
		{"bad request", 400, false},
		{"forbidden", 403, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockHTTP := &MockHTTPDoer{}
			mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
				createMockResponse(tc.status, `{"error": {"message": "boom"}}`), nil)

			client := NewClientWithHTTPDoer("test-api-key", "https://routes.example.com", mockHTTP)

			_, err := client.ComputeRoute(context.Background(),
				geo.Point{Latitude: 47.6}, geo.Point{Latitude: 45.5}, nil)

			var compErr *ComputationError
			require.ErrorAs(t, err, &compErr)
			assert.Equal(t, tc.status, compErr.StatusCode)
			assert.Equal(t, tc.retryable, compErr.Retryable())
		})
	}
}

func TestComputeRoute_NetworkError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		(*http.Response)(nil), errors.New("connection refused"))

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.example.com", mockHTTP)

	_, err := client.ComputeRoute(context.Background(),
		geo.Point{Latitude: 47.6}, geo.Point{Latitude: 45.5}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute request")
}

func TestComputeRoute_CacheHitSkipsBackend(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, routeFixture), nil).Once()

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.example.com", mockHTTP).
		WithComputeCache(cache.New(), time.Minute)

	origin := geo.Point{Latitude: 47.6062, Longitude: -122.3321}
	destination := geo.Point{Latitude: 45.5152, Longitude: -122.6784}

	first, err := client.ComputeRoute(context.Background(), origin, destination, nil)
	require.NoError(t, err)

	second, err := client.ComputeRoute(context.Background(), origin, destination, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A different marker set misses the cache, but the mock only allows one
	// request, so verify the key distinguishes waypoints without calling.
	assert.NotEqual(t,
		computeCacheKey(origin, destination, nil),
		computeCacheKey(origin, destination, []geo.Point{{Latitude: 46, Longitude: -122}}))

	mockHTTP.AssertExpectations(t)
}
