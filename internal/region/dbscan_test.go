package region

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/spatial"
)

// blob lays out an n-point grid of businesses around (lat, lon) with the
// given spacing.
func blob(startID int64, lat, lon, spacing float64, n int) []model.BusinessPoint {
	var pts []model.BusinessPoint
	side := 1
	for side*side < n {
		side++
	}
	for i := 0; i < n; i++ {
		pts = append(pts, model.BusinessPoint{
			ID:  startID + int64(i),
			Lat: lat + float64(i/side)*spacing,
			Lon: lon + float64(i%side)*spacing,
		})
	}
	return pts
}

func TestClusterDBSCAN_TwoBlobs(t *testing.T) {
	pts := append(blob(1, 40.0, -75.0, 0.001, 16), blob(100, 40.5, -74.5, 0.001, 16)...)
	pts = append(pts, model.BusinessPoint{ID: 999, Lat: 40.25, Lon: -74.75}) // isolated

	idx := spatial.NewIndex(pts)
	clusters := ClusterDBSCAN(idx, 0.005, 10)

	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0].Points, 16)
	assert.Len(t, clusters[1].Points, 16)
}

func TestClusterDBSCAN_AllNoise(t *testing.T) {
	pts := blob(1, 40.0, -75.0, 0.1, 9) // spacing far beyond eps
	idx := spatial.NewIndex(pts)

	clusters := ClusterDBSCAN(idx, 0.001, 3)
	assert.Empty(t, clusters)
}

func TestClusterDBSCAN_Deterministic(t *testing.T) {
	pts := append(blob(1, 40.0, -75.0, 0.001, 25), blob(100, 40.02, -74.98, 0.001, 12)...)

	idx := spatial.NewIndex(pts)
	first := ClusterDBSCAN(idx, 0.004, 5)

	shuffled := append([]model.BusinessPoint(nil), pts...)
	rand.New(rand.NewSource(3)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	second := ClusterDBSCAN(spatial.NewIndex(shuffled), 0.004, 5)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Points, second[i].Points, "cluster %d differs", i)
		assert.Equal(t, first[i].Range, second[i].Range)
	}
}

func TestClusterDBSCAN_RangeCoversPoints(t *testing.T) {
	pts := blob(1, 40.0, -75.0, 0.001, 16)
	clusters := ClusterDBSCAN(spatial.NewIndex(pts), 0.005, 5)

	require.Len(t, clusters, 1)
	for _, p := range clusters[0].Points {
		assert.True(t, clusters[0].Range.Contains(p.Lat, p.Lon))
	}
}
