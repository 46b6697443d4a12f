package boundary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/server/internal/lib/geo"
)

const squareKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Placemark>
      <name>Jurisdiction</name>
      <Polygon>
        <outerBoundaryIs>
          <LinearRing>
            <coordinates>
              0,0,0 10,0,0 10,10,0 0,10,0 0,0,0
            </coordinates>
          </LinearRing>
        </outerBoundaryIs>
        <innerBoundaryIs>
          <LinearRing>
            <coordinates>4,4 6,4 6,6 4,6 4,4</coordinates>
          </LinearRing>
        </innerBoundaryIs>
      </Polygon>
    </Placemark>
  </Document>
</kml>`

func TestFromKML(t *testing.T) {
	b, err := FromKML([]byte(squareKML))
	require.NoError(t, err)

	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 2, Longitude: 2}))
	assert.False(t, b.ContainsPoint(geo.Point{Latitude: 5, Longitude: 5}), "hole is excluded")
	assert.False(t, b.ContainsPoint(geo.Point{Latitude: 20, Longitude: 20}))
}

func TestFromKMLRejectsMalformed(t *testing.T) {
	_, err := FromKML([]byte(`<kml><Polygon><outerBoundaryIs><LinearRing><coordinates>junk</coordinates></LinearRing></outerBoundaryIs></Polygon></kml>`))
	require.Error(t, err)

	_, err = FromKML([]byte(`<kml><Document></Document></kml>`))
	require.Error(t, err, "no polygons is not a boundary")
}

func TestFromFileDispatchesByExtension(t *testing.T) {
	dir := t.TempDir()

	kmlPath := filepath.Join(dir, "boundary.kml")
	require.NoError(t, os.WriteFile(kmlPath, []byte(squareKML), 0o644))

	b, err := FromFile(kmlPath)
	require.NoError(t, err)
	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 1, Longitude: 1}))

	jsonPath := filepath.Join(dir, "boundary.geojson")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"type": "Polygon",
		"coordinates": [[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]]]
	}`), 0o644))

	b, err = FromFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, b.ContainsPoint(geo.Point{Latitude: 1, Longitude: 1}))
}
