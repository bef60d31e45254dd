package boundary

import (
	"testing"

	"github.com/fogleman/delaunay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citykit/dmur-cli/internal/model"
)

// gridPoints lays out a side x side square lattice of businesses.
func gridPoints(side int, spacing float64) []model.BusinessPoint {
	pts := make([]model.BusinessPoint, 0, side*side)
	id := int64(1)
	for r := 0; r < side; r++ {
		for c := 0; c < side; c++ {
			pts = append(pts, model.BusinessPoint{
				ID:  id,
				Lat: 40.0 + float64(r)*spacing,
				Lon: -75.0 + float64(c)*spacing,
			})
			id++
		}
	}
	return pts
}

func TestBuild_TooFewDistinctPoints(t *testing.T) {
	pts := []model.BusinessPoint{
		{ID: 1, Lat: 40, Lon: -75},
		{ID: 2, Lat: 40.001, Lon: -75},
		{ID: 3, Lat: 40, Lon: -75}, // duplicate of 1
	}
	_, err := Build(pts, Options{})
	require.Error(t, err)
	assert.True(t, model.IsGeometryError(err))
}

func TestBuild_AlphaShapeOnGrid(t *testing.T) {
	b, err := Build(gridPoints(5, 0.001), Options{Buffer: -1})
	require.NoError(t, err)

	assert.Equal(t, SourceAlphaShape, b.Source)
	assert.False(t, b.Degenerate)
	// A 5x5 lattice at 0.001 spacing encloses a 0.004 x 0.004 square.
	assert.InDelta(t, 0.004*0.004, b.AreaDeg2(), 1e-9)

	assert.True(t, b.Contains(40.002, -74.998), "lattice center")
	assert.False(t, b.Contains(41.0, -74.0), "distant point")
	assert.False(t, b.Contains(40.002, -75.1), "same latitude, outside")
}

func TestBuild_BufferGrowsArea(t *testing.T) {
	bare, err := Build(gridPoints(5, 0.001), Options{Buffer: -1})
	require.NoError(t, err)
	buffered, err := Build(gridPoints(5, 0.001), Options{})
	require.NoError(t, err)

	assert.Greater(t, buffered.AreaDeg2(), bare.AreaDeg2())
	// Points on the lattice edge sit strictly inside the buffered boundary.
	assert.True(t, buffered.Contains(40.0, -75.0))
	assert.True(t, buffered.Contains(40.004, -74.996))
}

func TestBuild_TinyAlphaFallsBackToHull(t *testing.T) {
	// An alpha below the lattice spacing rejects every triangle.
	b, err := Build(gridPoints(4, 0.001), Options{Alpha: 1e-6, Buffer: -1})
	require.NoError(t, err)
	assert.Equal(t, SourceConvexHull, b.Source)
	assert.False(t, b.Degenerate)
	assert.InDelta(t, 0.003*0.003, b.AreaDeg2(), 1e-9)
}

func TestBuild_CollinearIsDegenerate(t *testing.T) {
	pts := make([]model.BusinessPoint, 5)
	for i := range pts {
		pts[i] = model.BusinessPoint{ID: int64(i + 1), Lat: 40.0, Lon: -75.0 + float64(i)*0.001}
	}
	b, err := Build(pts, Options{})
	require.NoError(t, err)

	assert.True(t, b.Degenerate)
	assert.Equal(t, SourceConvexHull, b.Source)
	assert.Less(t, b.AreaDeg2(), 1e-9, "sliver area stays effectively zero")
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := Build(gridPoints(5, 0.001), Options{})
	require.NoError(t, err)
	b, err := Build(gridPoints(5, 0.001), Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Geom.FlatCoords(), b.Geom.FlatCoords())
}

func TestConvexHull(t *testing.T) {
	// Sorted by (X, Y) as uniqueCoords produces: a square plus its center.
	pts := []delaunay.Point{
		{X: 0, Y: 0}, {X: 0, Y: 1},
		{X: 0.5, Y: 0.5},
		{X: 1, Y: 0}, {X: 1, Y: 1},
	}
	hull := convexHull(pts)
	require.Len(t, hull, 4, "interior point excluded")

	// Counterclockwise orientation.
	var area float64
	for i := range hull {
		j := (i + 1) % len(hull)
		area += hull[i].X*hull[j].Y - hull[j].X*hull[i].Y
	}
	assert.Greater(t, area, 0.0)
}

func TestConvexHull_Collinear(t *testing.T) {
	pts := []delaunay.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}
	assert.Less(t, len(convexHull(pts)), 3)
}

func TestAreaKm2_Scale(t *testing.T) {
	b, err := Build(gridPoints(5, 0.001), Options{Buffer: -1})
	require.NoError(t, err)
	// 0.004 deg squared at latitude 40: about 0.15 km2.
	km2 := b.AreaKm2()
	assert.Greater(t, km2, 0.1)
	assert.Less(t, km2, 0.2)
}
