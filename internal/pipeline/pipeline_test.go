package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citykit/dmur-cli/internal/boundary"
	"github.com/citykit/dmur-cli/internal/density"
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/spatial"
)

// cityDataset builds a dense 36-point core surrounded by scattered
// periphery businesses, with one closed outlier to exercise filtering.
func cityDataset() *model.BusinessDataset {
	var pts []model.BusinessPoint
	id := int64(1)
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			pts = append(pts, model.BusinessPoint{
				ID:       id,
				Lat:      40.000 + float64(r)*0.0005,
				Lon:      -75.000 + float64(c)*0.0005,
				Category: model.CategoryShop,
				Status:   model.StatusActive,
			})
			id++
		}
	}
	periphery := []struct{ lat, lon float64 }{
		{40.02, -75.02}, {40.02, -74.98}, {39.98, -75.02}, {39.98, -74.98},
		{40.03, -75.00}, {39.97, -75.00}, {40.00, -75.03}, {40.00, -74.97},
	}
	for _, p := range periphery {
		pts = append(pts, model.BusinessPoint{
			ID: id, Lat: p.lat, Lon: p.lon,
			Category: model.CategoryAmenity, Status: model.StatusActive,
		})
		id++
	}
	pts = append(pts, model.BusinessPoint{
		ID: id, Lat: 40.01, Lon: -75.01,
		Category: model.CategoryShop, Status: model.StatusDisused,
	})
	return &model.BusinessDataset{City: "Testville", Businesses: pts}
}

func TestAnalyze_EmptyDataset(t *testing.T) {
	_, err := Analyze(context.Background(), &model.BusinessDataset{City: "Nowhere"}, Options{})
	require.Error(t, err)
	assert.True(t, model.IsDataError(err))
}

func TestAnalyze_AutoFocus(t *testing.T) {
	ds := cityDataset()
	a, err := Analyze(context.Background(), ds, Options{
		AutoFocus:          true,
		OnSelectionFailure: FailModeError,
		Filter:             spatial.Filter{ActiveOnly: true},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, a.RunID)
	assert.Equal(t, "Testville", a.City)
	assert.Equal(t, len(ds.Businesses)-1, a.TotalBusinesses, "closed business filtered out")
	require.NotNil(t, a.Winner)
	assert.GreaterOrEqual(t, a.Winner.PointCount, 20)
	assert.Less(t, a.CoreBusinesses, a.TotalBusinesses, "core excludes the periphery")
	require.NotNil(t, a.Boundary)
	assert.Greater(t, a.AreaKm2, 0.0)

	// The dense core sits inside the boundary, the periphery outside.
	assert.True(t, a.Boundary.Contains(40.001, -74.999))
	assert.False(t, a.Boundary.Contains(40.03, -75.00))
}

func TestAnalyze_WholeArea(t *testing.T) {
	ds := cityDataset()
	a, err := Analyze(context.Background(), ds, Options{AutoFocus: false})
	require.NoError(t, err)

	assert.Nil(t, a.Winner)
	assert.Equal(t, a.TotalBusinesses, a.CoreBusinesses)
	assert.True(t, a.Boundary.Contains(40.03, -75.00), "periphery bounded too")
}

func TestAnalyze_SelectionFailureModes(t *testing.T) {
	// Fifteen spread-out points can never produce a qualifying core.
	var pts []model.BusinessPoint
	for i := 0; i < 15; i++ {
		pts = append(pts, model.BusinessPoint{
			ID:  int64(i + 1),
			Lat: 40.0 + float64(i%4)*0.01,
			Lon: -75.0 + float64(i/4)*0.01,
		})
	}
	ds := &model.BusinessDataset{City: "Sparse", Businesses: pts}

	_, err := Analyze(context.Background(), ds, Options{
		AutoFocus:          true,
		OnSelectionFailure: FailModeError,
	})
	require.Error(t, err)
	assert.True(t, model.IsSelectionError(err))

	a, err := Analyze(context.Background(), ds, Options{
		AutoFocus:          true,
		OnSelectionFailure: FailModeWholeArea,
	})
	require.NoError(t, err)
	assert.Nil(t, a.Winner)
	assert.Equal(t, 15, a.CoreBusinesses)
	require.NotNil(t, a.Boundary)
}

func TestAnalyze_FilterRemovesEverything(t *testing.T) {
	ds := &model.BusinessDataset{
		City: "Ghosttown",
		Businesses: []model.BusinessPoint{
			{ID: 1, Lat: 40, Lon: -75, Status: model.StatusDisused},
			{ID: 2, Lat: 40.01, Lon: -75.01, Status: model.StatusDisused},
		},
	}
	_, err := Analyze(context.Background(), ds, Options{Filter: spatial.Filter{ActiveOnly: true}})
	require.Error(t, err)
	assert.True(t, model.IsDataError(err))
}

func TestAnalyze_DegenerateBoundary(t *testing.T) {
	// Collinear businesses produce a sliver boundary, not an error.
	var pts []model.BusinessPoint
	for i := 0; i < 5; i++ {
		pts = append(pts, model.BusinessPoint{ID: int64(i + 1), Lat: 40.0, Lon: -75.0 + float64(i)*0.001})
	}
	a, err := Analyze(context.Background(), &model.BusinessDataset{City: "Linear", Businesses: pts}, Options{})
	require.NoError(t, err)
	assert.True(t, a.Boundary.Degenerate)
	assert.Less(t, a.AreaKm2, 1e-6)
}

func TestAnalyze_CustomBoundaryOptions(t *testing.T) {
	ds := cityDataset()
	small, err := Analyze(context.Background(), ds, Options{Boundary: boundary.Options{Buffer: -1}})
	require.NoError(t, err)
	big, err := Analyze(context.Background(), ds, Options{})
	require.NoError(t, err)
	assert.Greater(t, big.AreaKm2, small.AreaKm2)
}

func TestHighDensityPoints(t *testing.T) {
	grid := &density.Grid{
		Values: [][]float64{
			{5, 5, 0},
			{5, 5, 0},
			{0, 0, 0.5},
		},
		Range:    model.CoordinateRange{MinLat: 40.00, MaxLat: 40.03, MinLon: -75.00, MaxLon: -74.97},
		CellSize: 0.01,
		Rows:     3,
		Cols:     3,
	}
	pts := []model.BusinessPoint{
		{ID: 1, Lat: 40.005, Lon: -74.995},
		{ID: 2, Lat: 40.015, Lon: -74.985},
		{ID: 3, Lat: 40.025, Lon: -74.975},
	}

	// The straggler in the low-density corner cell is dropped before
	// boundary building.
	kept := highDensityPoints(pts, grid, 5)
	require.Len(t, kept, 2)
	assert.Equal(t, int64(1), kept[0].ID)
	assert.Equal(t, int64(2), kept[1].ID)

	assert.Len(t, highDensityPoints(pts, nil, 5), 3, "no grid leaves the set untouched")
	assert.Len(t, highDensityPoints(pts, grid, 0), 3, "every positive cell qualifies at a zero threshold")
}
