package density

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citykit/dmur-cli/internal/model"
)

// clusteredPoints puts a tight knot of points in one corner of a wider
// scatter so the density surface has an unambiguous peak.
func clusteredPoints() []model.BusinessPoint {
	var pts []model.BusinessPoint
	id := int64(1)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			pts = append(pts, model.BusinessPoint{
				ID:  id,
				Lat: 40.000 + float64(i)*0.001,
				Lon: -75.000 + float64(j)*0.001,
			})
			id++
		}
	}
	// Sparse outliers stretching the range.
	pts = append(pts,
		model.BusinessPoint{ID: id, Lat: 40.05, Lon: -74.95},
		model.BusinessPoint{ID: id + 1, Lat: 40.04, Lon: -74.96},
	)
	return pts
}

func TestEstimate_TooFewPoints(t *testing.T) {
	_, err := Estimate(context.Background(), []model.BusinessPoint{
		{ID: 1, Lat: 40, Lon: -75},
		{ID: 2, Lat: 40.1, Lon: -75.1},
	}, Options{})
	require.Error(t, err)
	assert.True(t, model.IsDataError(err))
}

func TestEstimate_DegenerateRange(t *testing.T) {
	_, err := Estimate(context.Background(), []model.BusinessPoint{
		{ID: 1, Lat: 40, Lon: -75.0},
		{ID: 2, Lat: 40, Lon: -75.1},
		{ID: 3, Lat: 40, Lon: -75.2},
	}, Options{})
	require.Error(t, err)
	assert.True(t, model.IsDataError(err))
}

func TestEstimate_PeakAtCluster(t *testing.T) {
	grid, err := Estimate(context.Background(), clusteredPoints(), Options{})
	require.NoError(t, err)
	require.Positive(t, grid.Rows)
	require.Positive(t, grid.Cols)

	clusterRow, clusterCol := grid.CellOf(40.002, -74.998)
	farRow, farCol := grid.CellOf(40.045, -74.955)
	assert.Greater(t, grid.Values[clusterRow][clusterCol], grid.Values[farRow][farCol],
		"density near the knot must exceed density near outliers")
}

func TestEstimate_NonNegative(t *testing.T) {
	grid, err := Estimate(context.Background(), clusteredPoints(), Options{})
	require.NoError(t, err)
	for _, row := range grid.Values {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	a, err := Estimate(context.Background(), clusteredPoints(), Options{})
	require.NoError(t, err)
	b, err := Estimate(context.Background(), clusteredPoints(), Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)
}

func TestGrid_Percentile(t *testing.T) {
	g := &Grid{
		Values: [][]float64{{1, 2}, {3, 4}},
		Rows:   2, Cols: 2,
	}
	assert.Equal(t, 4.0, g.Percentile(100))
	assert.Equal(t, 1.0, g.Percentile(1))
	assert.Equal(t, 2.0, g.Percentile(50))
}

func TestGrid_CellOf_Clamped(t *testing.T) {
	g := &Grid{
		Range:    model.CoordinateRange{MinLat: 40, MaxLat: 40.1, MinLon: -75, MaxLon: -74.9},
		CellSize: 0.01,
		Rows:     11, Cols: 11,
	}
	g.Values = make([][]float64, g.Rows)

	row, col := g.CellOf(39.0, -76.0)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	row, col = g.CellOf(41.0, -74.0)
	assert.Equal(t, g.Rows-1, row)
	assert.Equal(t, g.Cols-1, col)
}

func TestDefaultBandwidth(t *testing.T) {
	r := model.CoordinateRange{MinLat: 0, MaxLat: 0.2, MinLon: 0, MaxLon: 0.1}
	assert.InDelta(t, 0.001, DefaultBandwidth(r), 1e-12)
}
