// Package spatial provides an in-memory index over business points with
// status/category filtering, bounding-range computation, and planar
// Euclidean nearest-neighbor queries. Distances are degree-space Euclidean,
// which is acceptable at city scale; no geodesic correction is applied.
package spatial

import (
	"math"
	"sort"

	"github.com/citykit/dmur-cli/internal/model"
)

// indexCells controls bucket granularity: the point extent is divided into
// roughly this many cells per axis.
const indexCells = 64

// Filter selects a subset of indexed points.
type Filter struct {
	ActiveOnly     bool
	CommercialOnly bool
	Statuses       []model.Status   // empty = any
	Categories     []model.Category // empty = any
}

func (f Filter) match(p model.BusinessPoint) bool {
	if f.ActiveOnly && p.Status != model.StatusActive {
		return false
	}
	if f.CommercialOnly && !p.Commercial() {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if p.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Categories) > 0 {
		ok := false
		for _, c := range f.Categories {
			if p.Category == c {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

type cellKey struct{ row, col int }

// Index holds business points bucketed into a uniform cell grid.
// Construction sorts points by (lat, lon, id), so downstream iteration order
// is independent of input order.
type Index struct {
	points   []model.BusinessPoint
	rng      model.CoordinateRange
	cellSize float64
	cells    map[cellKey][]int
}

// NewIndex builds an index over a copy of the given points.
func NewIndex(points []model.BusinessPoint) *Index {
	pts := make([]model.BusinessPoint, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Lat != pts[j].Lat {
			return pts[i].Lat < pts[j].Lat
		}
		if pts[i].Lon != pts[j].Lon {
			return pts[i].Lon < pts[j].Lon
		}
		return pts[i].ID < pts[j].ID
	})

	ix := &Index{points: pts}
	if len(pts) == 0 {
		return ix
	}

	ix.rng = boundsOf(pts)
	ix.cellSize = ix.rng.MaxExtent() / indexCells
	if ix.cellSize <= 0 {
		ix.cellSize = 1e-6 // all points coincident
	}
	ix.cells = make(map[cellKey][]int)
	for i, p := range pts {
		k := ix.cellOf(p.Lat, p.Lon)
		ix.cells[k] = append(ix.cells[k], i)
	}
	return ix
}

func boundsOf(pts []model.BusinessPoint) model.CoordinateRange {
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

func (ix *Index) cellOf(lat, lon float64) cellKey {
	return cellKey{
		row: int(math.Floor((lat - ix.rng.MinLat) / ix.cellSize)),
		col: int(math.Floor((lon - ix.rng.MinLon) / ix.cellSize)),
	}
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return len(ix.points) }

// Points returns the indexed points in deterministic order. Callers must
// not mutate the returned slice.
func (ix *Index) Points() []model.BusinessPoint { return ix.points }

// Point returns the point at index i.
func (ix *Index) Point(i int) model.BusinessPoint { return ix.points[i] }

// Filter returns a new index over the points matching f.
func (ix *Index) Filter(f Filter) *Index {
	var kept []model.BusinessPoint
	for _, p := range ix.points {
		if f.match(p) {
			kept = append(kept, p)
		}
	}
	return NewIndex(kept)
}

// Range returns the bounding coordinate range of the indexed points.
// An empty index or a zero-extent range is a DataError.
func (ix *Index) Range() (model.CoordinateRange, error) {
	if len(ix.points) == 0 {
		return model.CoordinateRange{}, model.DataErrorf("spatial: range", "empty point set")
	}
	if ix.rng.Degenerate() {
		return model.CoordinateRange{}, model.DataErrorf("spatial: range",
			"degenerate range: lat extent %.6f, lon extent %.6f",
			ix.rng.LatExtent(), ix.rng.LonExtent())
	}
	return ix.rng, nil
}

// Distance returns the planar Euclidean distance in degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := lat1 - lat2
	dlon := lon1 - lon2
	return math.Sqrt(dlat*dlat + dlon*dlon)
}

// NearestDistance returns the Euclidean distance from (lat, lon) to the
// closest indexed point. Querying an empty index is a DataError.
func (ix *Index) NearestDistance(lat, lon float64) (float64, error) {
	if len(ix.points) == 0 {
		return 0, model.DataErrorf("spatial: nearest", "empty point set")
	}

	center := ix.cellOf(lat, lon)
	best := math.Inf(1)

	// Expand ring by ring; once a candidate is found, keep scanning until
	// the ring's minimum possible distance exceeds the best found.
	maxRing := indexCells + 2
	for ring := 0; ring <= maxRing; ring++ {
		if !math.IsInf(best, 1) && float64(ring-1)*ix.cellSize > best {
			break
		}
		for row := center.row - ring; row <= center.row+ring; row++ {
			for col := center.col - ring; col <= center.col+ring; col++ {
				// Only the ring perimeter; inner cells were scanned earlier.
				if ring > 0 && row != center.row-ring && row != center.row+ring &&
					col != center.col-ring && col != center.col+ring {
					continue
				}
				idxs, ok := ix.cells[cellKey{row, col}]
				if !ok {
					continue
				}
				for _, i := range idxs {
					p := ix.points[i]
					if d := Distance(lat, lon, p.Lat, p.Lon); d < best {
						best = d
					}
				}
			}
		}
	}

	if math.IsInf(best, 1) {
		// Query point far outside the grid: fall back to a full scan.
		for _, p := range ix.points {
			if d := Distance(lat, lon, p.Lat, p.Lon); d < best {
				best = d
			}
		}
	}
	return best, nil
}

// Neighbors returns the indices of all points within eps of point i,
// excluding i itself, in ascending index order.
func (ix *Index) Neighbors(i int, eps float64) []int {
	p := ix.points[i]
	span := int(math.Ceil(eps/ix.cellSize)) + 1
	center := ix.cellOf(p.Lat, p.Lon)

	var out []int
	for row := center.row - span; row <= center.row+span; row++ {
		for col := center.col - span; col <= center.col+span; col++ {
			for _, j := range ix.cells[cellKey{row, col}] {
				if j == i {
					continue
				}
				q := ix.points[j]
				if Distance(p.Lat, p.Lon, q.Lat, q.Lon) <= eps {
					out = append(out, j)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}
