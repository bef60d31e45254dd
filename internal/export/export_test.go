package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/citykit/dmur-cli/internal/model"
)

func squarePolygon() *geom.Polygon {
	// Counterclockwise unit-ish square near Testville.
	return geom.NewPolygonFlat(geom.XY, []float64{
		-75.00, 40.00,
		-74.99, 40.00,
		-74.99, 40.01,
		-75.00, 40.01,
		-75.00, 40.00,
	}, []int{10})
}

func TestBoundaryGeoJSON(t *testing.T) {
	raw, err := BoundaryGeoJSON(squarePolygon(), map[string]any{
		"city":     "Testville",
		"area_km2": 1.23,
	})
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.Type)
	assert.Equal(t, "Testville", fc.Features[0].Properties["city"])
	assert.InDelta(t, 1.23, fc.Features[0].Properties["area_km2"].(float64), 1e-9)
}

func TestWriteGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boundary.geojson")
	require.NoError(t, WriteGeoJSON(path, squarePolygon(), nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"FeatureCollection"`)
	assert.Contains(t, string(raw), `"Polygon"`)
}

func TestWriteShapefile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boundary.shp")
	require.NoError(t, WriteShapefile(path, squarePolygon(), "Testville", 1.23))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.Next())
	_, shape := r.Shape()
	poly, ok := shape.(*shp.Polygon)
	require.True(t, ok)

	assert.EqualValues(t, 1, poly.NumParts)
	assert.EqualValues(t, 5, poly.NumPoints, "ring stays closed")
	assert.InDelta(t, -75.00, poly.Box.MinX, 1e-9)
	assert.InDelta(t, 40.01, poly.Box.MaxY, 1e-9)
	assert.False(t, r.Next(), "single record")
}

func TestWriteShapefile_MultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(squarePolygon()))
	second := geom.NewPolygonFlat(geom.XY, []float64{
		-74.90, 40.00,
		-74.89, 40.00,
		-74.89, 40.01,
		-74.90, 40.01,
		-74.90, 40.00,
	}, []int{10})
	require.NoError(t, mp.Push(second))

	path := filepath.Join(t.TempDir(), "multi.shp")
	require.NoError(t, WriteShapefile(path, mp, "Testville", 2.46))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.Next())
	_, shape := r.Shape()
	poly := shape.(*shp.Polygon)
	assert.EqualValues(t, 2, poly.NumParts)
}

func TestWriteShapefile_UnsupportedGeometry(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{-75, 40})
	err := WriteShapefile(filepath.Join(t.TempDir(), "pt.shp"), pt, "X", 0)
	require.Error(t, err)
	assert.True(t, model.IsGeometryError(err))
}
