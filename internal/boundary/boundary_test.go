package boundary

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/server/internal/lib/geo"
)

// square returns a 10x10 degree test polygon around the origin
func square(t *testing.T) *Boundary {
	t.Helper()
	b, err := FromGeoJSON([]byte(`{
		"type": "Polygon",
		"coordinates": [[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]]]
	}`))
	require.NoError(t, err)
	return b
}

func TestBoundary_ContainsPoint(t *testing.T) {
	b := square(t)

	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 5, Longitude: 5}))
	assert.False(t, b.ContainsPoint(geo.Point{Latitude: 15, Longitude: 5}))
	assert.False(t, b.ContainsPoint(geo.Point{Latitude: -1, Longitude: -1}))

	// Boundary edges count as inside
	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 0, Longitude: 5}))
	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 10, Longitude: 10}))
}

func TestBoundary_HoleExcluded(t *testing.T) {
	b, err := FromGeoJSON([]byte(`{
		"type": "Polygon",
		"coordinates": [
			[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]],
			[[4, 4], [6, 4], [6, 6], [4, 6], [4, 4]]
		]
	}`))
	require.NoError(t, err)

	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 2, Longitude: 2}))
	assert.False(t, b.ContainsPoint(geo.Point{Latitude: 5, Longitude: 5}), "hole interior is outside")
	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 4, Longitude: 5}), "hole edge still counts as inside")
}

func TestBoundary_FromFeatureCollection(t *testing.T) {
	b, err := FromGeoJSON([]byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {"name": "district"}, "geometry": {
				"type": "Polygon",
				"coordinates": [[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]]]
			}}
		]
	}`))
	require.NoError(t, err)
	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 5, Longitude: 5}))

	_, err = FromGeoJSON([]byte(`{"type": "FeatureCollection", "features": []}`))
	assert.Error(t, err, "collection without polygons is not a usable boundary")

	_, err = FromGeoJSON([]byte(`{"type": "LineString", "coordinates": []}`))
	assert.Error(t, err)
}

func TestBoundary_ValidateGeometryRejectsEmpty(t *testing.T) {
	b := square(t)
	assert.ErrorIs(t, b.ValidateGeometry(nil), ErrEmptyGeometry)
	assert.ErrorIs(t, b.ContainsAll(nil), ErrEmptyGeometry)
}

func TestBoundary_SamplingBudget(t *testing.T) {
	b := square(t)

	// 10,000 points fully inside validate with a bounded number of tests
	points := make([]geo.Point, 10000)
	for i := range points {
		points[i] = geo.Point{
			Latitude:  1 + 8*float64(i)/float64(len(points)),
			Longitude: 5,
		}
	}

	indices := SampleIndices(len(points))
	assert.LessOrEqual(t, len(indices), 52, "sampling must stay within the test budget")
	assert.Equal(t, 0, indices[0], "first coordinate is always tested")
	assert.Equal(t, len(points)-1, indices[len(indices)-1], "last coordinate is always tested")

	require.NoError(t, b.ValidateGeometry(points))

	// A single excursion at the midpoint lands on a sampled index
	// (10000/50 = 200 stride, 5000 is a multiple) and must be caught.
	excursion := make([]geo.Point, len(points))
	copy(excursion, points)
	excursion[5000] = geo.Point{Latitude: 50, Longitude: 50}

	sampled := false
	for _, idx := range indices {
		if idx == 5000 {
			sampled = true
		}
	}
	require.True(t, sampled, "midpoint must be on the sample grid for this fixture")
	assert.ErrorIs(t, b.ValidateGeometry(excursion), ErrOutsideBoundary)
}

func TestBoundary_SampleIndicesShortSequences(t *testing.T) {
	assert.Nil(t, SampleIndices(0))
	assert.Equal(t, []int{0}, SampleIndices(1))
	assert.Equal(t, []int{0, 1}, SampleIndices(2))

	// Short sequences fall back to testing every coordinate
	assert.Equal(t, []int{0, 1, 2, 3, 4}, SampleIndices(5))
}

func TestBoundary_ContainsAllIsExhaustive(t *testing.T) {
	b := square(t)

	points := make([]geo.Point, 301)
	for i := range points {
		points[i] = geo.Point{Latitude: 5, Longitude: 5}
	}
	// Excursion at an index the strided sampler would skip (step 6 for 301)
	points[7] = geo.Point{Latitude: 50, Longitude: 50}

	assert.ErrorIs(t, b.ContainsAll(points), ErrOutsideBoundary)
}

func TestBoundary_MultiPolygon(t *testing.T) {
	b, err := FromGeoJSON([]byte(fmt.Sprintf(`{
		"type": "MultiPolygon",
		"coordinates": [%s, %s]
	}`,
		`[[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]]]`,
		`[[[20, 20], [30, 20], [30, 30], [20, 30], [20, 20]]]`,
	)))
	require.NoError(t, err)

	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 5, Longitude: 5}))
	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 25, Longitude: 25}))
	assert.False(t, b.ContainsPoint(geo.Point{Latitude: 15, Longitude: 15}))
}
