// Package density computes a Gaussian kernel density estimate of business
// concentration over a regular grid spanning the input coordinate range.
package density

import (
	"context"
	"math"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/citykit/dmur-cli/internal/model"
)

// DefaultCellSize is the grid cell size in degrees when no resolution is
// configured. At city scale this yields a few hundred cells per axis.
const DefaultCellSize = 0.002

// DefaultMinPoints is the floor below which density estimation is undefined.
const DefaultMinPoints = 3

// bandwidthFraction is the default bandwidth as a fraction of the larger
// range extent.
const bandwidthFraction = 0.005

// Options configures density estimation.
type Options struct {
	// Bandwidth is the Gaussian kernel bandwidth in degrees.
	// Zero selects the default of 0.5% of the larger range extent.
	Bandwidth float64
	// CellSize is the grid cell size in degrees. Zero selects DefaultCellSize.
	CellSize float64
	// MinPoints is the minimum input size. Zero selects DefaultMinPoints.
	MinPoints int
}

// Grid is a kernel density estimate over a regular lattice. Values are
// unnormalized; only relative ordering and percentile thresholds are used
// downstream. The grid spans exactly the input coordinate range.
type Grid struct {
	Values   [][]float64 // [row][col], row 0 at MinLat
	Range    model.CoordinateRange
	CellSize float64
	Rows     int
	Cols     int
}

// CellCenter returns the geographic center of cell (row, col).
func (g *Grid) CellCenter(row, col int) (lat, lon float64) {
	lat = g.Range.MinLat + (float64(row)+0.5)*g.CellSize
	lon = g.Range.MinLon + (float64(col)+0.5)*g.CellSize
	return lat, lon
}

// CellOf returns the cell containing (lat, lon), clamped to the grid.
func (g *Grid) CellOf(lat, lon float64) (row, col int) {
	row = int(math.Floor((lat - g.Range.MinLat) / g.CellSize))
	col = int(math.Floor((lon - g.Range.MinLon) / g.CellSize))
	if row < 0 {
		row = 0
	}
	if row >= g.Rows {
		row = g.Rows - 1
	}
	if col < 0 {
		col = 0
	}
	if col >= g.Cols {
		col = g.Cols - 1
	}
	return row, col
}

// Percentile returns the p-th percentile (0-100) of all grid values using
// nearest-rank on the sorted value list.
func (g *Grid) Percentile(p float64) float64 {
	flat := make([]float64, 0, g.Rows*g.Cols)
	for _, row := range g.Values {
		flat = append(flat, row...)
	}
	sort.Float64s(flat)
	if len(flat) == 0 {
		return 0
	}
	rank := int(math.Ceil(p/100*float64(len(flat)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(flat) {
		rank = len(flat) - 1
	}
	return flat[rank]
}

// DefaultBandwidth returns 0.5% of the larger extent of r.
func DefaultBandwidth(r model.CoordinateRange) float64 {
	return bandwidthFraction * r.MaxExtent()
}

// Estimate computes the density grid for the given points. Fewer than the
// minimum number of points is a DataError. Grid rows are evaluated in
// parallel; cell values depend only on the immutable point slice.
func Estimate(ctx context.Context, points []model.BusinessPoint, opts Options) (*Grid, error) {
	minPoints := opts.MinPoints
	if minPoints <= 0 {
		minPoints = DefaultMinPoints
	}
	if len(points) < minPoints {
		return nil, model.DataErrorf("density: estimate",
			"%d points below minimum of %d", len(points), minPoints)
	}

	idx := spatialBounds(points)
	if idx.Degenerate() {
		return nil, model.DataErrorf("density: estimate",
			"degenerate coordinate range: lat extent %.6f, lon extent %.6f",
			idx.LatExtent(), idx.LonExtent())
	}

	cellSize := opts.CellSize
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	bandwidth := opts.Bandwidth
	if bandwidth <= 0 {
		bandwidth = DefaultBandwidth(idx)
	}

	rows := int(math.Ceil(idx.LatExtent()/cellSize)) + 1
	cols := int(math.Ceil(idx.LonExtent()/cellSize)) + 1

	grid := &Grid{
		Values:   make([][]float64, rows),
		Range:    idx,
		CellSize: cellSize,
		Rows:     rows,
		Cols:     cols,
	}
	for r := range grid.Values {
		grid.Values[r] = make([]float64, cols)
	}

	// Beyond ~4 bandwidths the Gaussian contribution is negligible; skip it.
	cutoff := 4 * bandwidth
	inv2h2 := 1 / (2 * bandwidth * bandwidth)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for r := 0; r < rows; r++ {
		row := r
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			for c := 0; c < cols; c++ {
				lat, lon := grid.CellCenter(row, c)
				var sum float64
				for _, p := range points {
					dlat := p.Lat - lat
					dlon := p.Lon - lon
					if dlat > cutoff || dlat < -cutoff || dlon > cutoff || dlon < -cutoff {
						continue
					}
					d2 := dlat*dlat + dlon*dlon
					sum += math.Exp(-d2 * inv2h2)
				}
				grid.Values[row][c] = sum
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Debug("density grid computed",
		zap.Int("rows", rows),
		zap.Int("cols", cols),
		zap.Float64("bandwidth", bandwidth),
		zap.Float64("cell_size", cellSize),
		zap.Int("points", len(points)),
	)
	return grid, nil
}

func spatialBounds(pts []model.BusinessPoint) model.CoordinateRange {
	r := model.CoordinateRange{
		MinLat: pts[0].Lat, MaxLat: pts[0].Lat,
		MinLon: pts[0].Lon, MaxLon: pts[0].Lon,
	}
	for _, p := range pts[1:] {
		r.MinLat = math.Min(r.MinLat, p.Lat)
		r.MaxLat = math.Max(r.MaxLat, p.Lat)
		r.MinLon = math.Min(r.MinLon, p.Lon)
		r.MaxLon = math.Max(r.MaxLon, p.Lon)
	}
	return r
}
