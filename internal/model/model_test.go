package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinateRange_Extents(t *testing.T) {
	r := CoordinateRange{MinLat: 40.0, MaxLat: 40.1, MinLon: -75.2, MaxLon: -75.0}

	assert.InDelta(t, 0.1, r.LatExtent(), 1e-12)
	assert.InDelta(t, 0.2, r.LonExtent(), 1e-12)
	assert.InDelta(t, 0.2, r.MaxExtent(), 1e-12)
	assert.InDelta(t, 0.02, r.Area(), 1e-12)
	assert.False(t, r.Degenerate())
}

func TestCoordinateRange_Contains(t *testing.T) {
	r := CoordinateRange{MinLat: 40.0, MaxLat: 40.1, MinLon: -75.2, MaxLon: -75.0}

	assert.True(t, r.Contains(40.05, -75.1))
	assert.True(t, r.Contains(40.0, -75.2), "boundary is inclusive")
	assert.False(t, r.Contains(40.2, -75.1))
	assert.False(t, r.Contains(40.05, -74.9))
}

func TestCoordinateRange_Degenerate(t *testing.T) {
	line := CoordinateRange{MinLat: 40.0, MaxLat: 40.0, MinLon: -75.2, MaxLon: -75.0}
	assert.True(t, line.Degenerate())

	point := CoordinateRange{MinLat: 40.0, MaxLat: 40.0, MinLon: -75.0, MaxLon: -75.0}
	assert.True(t, point.Degenerate())
}

func TestCoreCandidate_DensityRatio(t *testing.T) {
	c := CoreCandidate{
		PointCount: 50,
		Range:      CoordinateRange{MinLat: 0, MaxLat: 0.1, MinLon: 0, MaxLon: 0.1},
	}
	assert.InDelta(t, 5000.0, c.DensityRatio(), 1e-6)

	zero := CoreCandidate{PointCount: 10}
	assert.True(t, math.IsInf(zero.DensityRatio(), 1))
}

func TestDefaultWeights_SumToOne(t *testing.T) {
	w := DefaultWeights()
	require.InDelta(t, 1.0, w.Sum(), 1e-12)
	assert.Equal(t, 0.4, w.MXI)
	assert.Equal(t, 0.3, w.Balance)
	assert.Equal(t, 0.2, w.Density)
	assert.Equal(t, 0.1, w.Diversity)
}

func TestBusinessPoint_Commercial(t *testing.T) {
	assert.True(t, BusinessPoint{Category: CategoryShop}.Commercial())
	assert.True(t, BusinessPoint{Category: CategoryOffice}.Commercial())
	assert.False(t, BusinessPoint{Category: CategoryOther}.Commercial())
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.42, Clamp01(0.42))
}
