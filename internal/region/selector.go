// Package region identifies one compact, high-density downtown core from
// three independent evidence sources: density-based clusters, histogram
// count peaks, and KDE percentile peaks. All discovery is deterministic;
// there is no randomized initialization anywhere.
package region

import (
	"context"
	"math"
	"sort"

	"github.com/katalvlaran/lvlath/gridgraph"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/citykit/dmur-cli/internal/density"
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/spatial"
)

// Options configures core candidate discovery and selection.
type Options struct {
	// Eps is the DBSCAN neighborhood radius in degrees.
	// Zero selects 1% of the larger range extent.
	Eps float64
	// MinClusterSize is the DBSCAN minimum cluster size (default 10).
	MinClusterSize int
	// MinCorePoints is the floor a candidate must meet (default 20).
	MinCorePoints int
	// MaxAreaFraction caps a candidate's share of the study area (default 0.30).
	MaxAreaFraction float64
	// Percentile is the KDE qualifying threshold (default 90).
	Percentile float64
	// FallbackPercentile is retried when the percentile region is too small
	// (default 70).
	FallbackPercentile float64
	// HistogramBins is the coarse bucket count per axis (default 20).
	HistogramBins int
}

func (o Options) withDefaults() Options {
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = 10
	}
	if o.MinCorePoints <= 0 {
		o.MinCorePoints = 20
	}
	if o.MaxAreaFraction <= 0 {
		o.MaxAreaFraction = 0.30
	}
	if o.Percentile <= 0 {
		o.Percentile = 90
	}
	if o.FallbackPercentile <= 0 {
		o.FallbackPercentile = 70
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = 20
	}
	return o
}

// Selection is the outcome of core discovery: the winner, the full
// candidate audit trail, and the density threshold in effect when the
// winner was chosen.
type Selection struct {
	Winner     model.CoreCandidate
	Candidates []model.CoreCandidate
	// DensityThreshold is the grid value at the qualifying KDE percentile,
	// zero when no density grid was available. Boundary building keeps only
	// winner members whose grid cell meets it.
	DensityThreshold float64
}

// Select discovers core candidates and picks the winner: among candidates
// with point_count >= MinCorePoints and area_fraction <= MaxAreaFraction,
// the one maximizing point_count / bounding_area, ties broken by smallest
// bounding area, residual ties by a fixed source order. Returns a
// SelectionError when every candidate is rejected.
func Select(ctx context.Context, idx *spatial.Index, grid *density.Grid, opts Options) (Selection, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.String("component", "region"))

	total, err := idx.Range()
	if err != nil {
		return Selection{}, err
	}
	if ctx.Err() != nil {
		return Selection{}, ctx.Err()
	}

	eps := opts.Eps
	if eps <= 0 {
		eps = 0.01 * total.MaxExtent()
	}

	var candidates []model.CoreCandidate

	// Evidence source 1: DBSCAN clusters.
	clusters := ClusterDBSCAN(idx, eps, opts.MinClusterSize)
	for _, c := range clusters {
		candidates = append(candidates, makeCandidate(model.SourceCluster, c.Points, total))
	}
	log.Debug("cluster discovery", zap.Int("clusters", len(clusters)), zap.Float64("eps", eps))

	// Evidence source 2: histogram count peak.
	if cand, ok := histogramPeak(idx, total, opts.HistogramBins); ok {
		candidates = append(candidates, cand)
	}

	// Evidence source 3: KDE percentile peak, with the 90th -> 70th
	// percentile fallback chain. The percentile that qualifies (or the
	// fallback, when neither does) sets the threshold boundary building
	// filters by.
	qualifying := opts.FallbackPercentile
	for _, pct := range []float64{opts.Percentile, opts.FallbackPercentile} {
		cand, ok := kdePeak(idx, grid, total, pct)
		if !ok {
			continue
		}
		if cand.PointCount >= opts.MinCorePoints {
			candidates = append(candidates, cand)
			qualifying = pct
			break
		}
		log.Debug("kde peak too small, retrying at lower percentile",
			zap.Float64("percentile", pct),
			zap.Int("points", cand.PointCount),
		)
	}
	var densityThreshold float64
	if grid != nil {
		densityThreshold = grid.Percentile(qualifying)
	}

	// Reduce by the total-order comparator over qualifying candidates.
	qualified := candidates[:0:0]
	for _, c := range candidates {
		if c.PointCount >= opts.MinCorePoints && c.AreaFraction <= opts.MaxAreaFraction {
			qualified = append(qualified, c)
		}
	}
	if len(qualified) == 0 {
		return Selection{Candidates: candidates}, model.SelectionErrorf(len(candidates),
			"no candidate with >= %d points and area fraction <= %.2f (%d examined)",
			opts.MinCorePoints, opts.MaxAreaFraction, len(candidates))
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		return candidateLess(qualified[i], qualified[j])
	})
	winner := qualified[0]
	log.Info("core candidate selected",
		zap.String("source", string(winner.Source)),
		zap.Int("points", winner.PointCount),
		zap.Float64("area_fraction", winner.AreaFraction),
	)
	return Selection{
		Winner:           winner,
		Candidates:       candidates,
		DensityThreshold: densityThreshold,
	}, nil
}

// sourceOrder fixes the residual tie-break so selection never depends on
// discovery order.
var sourceOrder = map[model.CandidateSource]int{
	model.SourceCluster:       0,
	model.SourceHistogramPeak: 1,
	model.SourceKDEPeak:       2,
}

func candidateLess(a, b model.CoreCandidate) bool {
	ra, rb := a.DensityRatio(), b.DensityRatio()
	if ra != rb {
		return ra > rb
	}
	if aa, ab := a.Range.Area(), b.Range.Area(); aa != ab {
		return aa < ab
	}
	if sourceOrder[a.Source] != sourceOrder[b.Source] {
		return sourceOrder[a.Source] < sourceOrder[b.Source]
	}
	// Same source, same ratio, same area: order by position.
	if a.Range.MinLat != b.Range.MinLat {
		return a.Range.MinLat < b.Range.MinLat
	}
	return a.Range.MinLon < b.Range.MinLon
}

func makeCandidate(src model.CandidateSource, pts []model.BusinessPoint, total model.CoordinateRange) model.CoreCandidate {
	rng := pointBounds(pts)
	frac := 0.0
	if ta := total.Area(); ta > 0 {
		frac = rng.Area() / ta
	}
	return model.CoreCandidate{
		Source:       src,
		Points:       pts,
		Range:        rng,
		PointCount:   len(pts),
		AreaFraction: frac,
	}
}

// histogramPeak buckets point counts over a coarse grid and returns the
// highest-count contiguous region above threshold (cells with count >=
// mean + one standard deviation of the non-empty cells).
func histogramPeak(idx *spatial.Index, total model.CoordinateRange, bins int) (model.CoreCandidate, bool) {
	cellLat := total.LatExtent() / float64(bins)
	cellLon := total.LonExtent() / float64(bins)
	if cellLat <= 0 || cellLon <= 0 {
		return model.CoreCandidate{}, false
	}

	counts := make([][]int, bins)
	for r := range counts {
		counts[r] = make([]int, bins)
	}
	cellIdx := func(p model.BusinessPoint) (int, int) {
		r := int((p.Lat - total.MinLat) / cellLat)
		c := int((p.Lon - total.MinLon) / cellLon)
		if r >= bins {
			r = bins - 1
		}
		if c >= bins {
			c = bins - 1
		}
		return r, c
	}
	for _, p := range idx.Points() {
		r, c := cellIdx(p)
		counts[r][c]++
	}

	// Threshold: mean + 1 sigma over non-empty cells.
	var sum, sum2, n float64
	for _, row := range counts {
		for _, v := range row {
			if v == 0 {
				continue
			}
			f := float64(v)
			sum += f
			sum2 += f * f
			n++
		}
	}
	if n == 0 {
		return model.CoreCandidate{}, false
	}
	mean := sum / n
	sigma := math.Sqrt(sum2/n - mean*mean)
	threshold := mean + sigma

	binary := make([][]int, bins)
	for r := range binary {
		binary[r] = make([]int, bins)
		for c := range binary[r] {
			if float64(counts[r][c]) >= threshold {
				binary[r][c] = 1
			}
		}
	}

	comp, ok := largestComponent(binary, func(r, c int) float64 { return float64(counts[r][c]) })
	if !ok {
		return model.CoreCandidate{}, false
	}

	var pts []model.BusinessPoint
	for _, p := range idx.Points() {
		r, c := cellIdx(p)
		if comp[[2]int{r, c}] {
			pts = append(pts, p)
		}
	}
	if len(pts) == 0 {
		return model.CoreCandidate{}, false
	}
	return makeCandidate(model.SourceHistogramPeak, pts, total), true
}

// kdePeak binarizes the density grid at the given percentile and returns
// the highest-density connected region as a candidate.
func kdePeak(idx *spatial.Index, grid *density.Grid, total model.CoordinateRange, percentile float64) (model.CoreCandidate, bool) {
	if grid == nil {
		return model.CoreCandidate{}, false
	}
	threshold := grid.Percentile(percentile)

	binary := make([][]int, grid.Rows)
	for r := range binary {
		binary[r] = make([]int, grid.Cols)
		for c := range binary[r] {
			if grid.Values[r][c] >= threshold && grid.Values[r][c] > 0 {
				binary[r][c] = 1
			}
		}
	}

	comp, ok := largestComponent(binary, func(r, c int) float64 { return grid.Values[r][c] })
	if !ok {
		return model.CoreCandidate{}, false
	}

	var pts []model.BusinessPoint
	for _, p := range idx.Points() {
		r, c := grid.CellOf(p.Lat, p.Lon)
		if comp[[2]int{r, c}] {
			pts = append(pts, p)
		}
	}
	if len(pts) == 0 {
		return model.CoreCandidate{}, false
	}
	return makeCandidate(model.SourceKDEPeak, pts, total), true
}

// largestComponent finds 8-connected components of nonzero cells and
// returns the cell set of the component with the highest weight sum, peak
// weight breaking ties. Returns false when no cell is set.
func largestComponent(binary [][]int, weight func(r, c int) float64) (map[[2]int]bool, bool) {
	gg, err := gridgraph.NewGridGraph(binary, gridgraph.GridOptions{
		LandThreshold: 1,
		Conn:          gridgraph.Conn8,
	})
	if err != nil {
		// Empty or non-rectangular grids never reach here; guard anyway.
		zap.L().Debug("grid component analysis failed", zap.Error(eris.Wrap(err, "region: grid graph")))
		return nil, false
	}

	comps := gg.ConnectedComponents()
	if len(comps) == 0 {
		return nil, false
	}

	var best []gridgraph.Cell
	bestSum, bestPeak := math.Inf(-1), math.Inf(-1)
	for _, group := range comps {
		for _, comp := range group {
			var sum, peak float64
			for _, cell := range comp {
				w := weight(cell.Y, cell.X)
				sum += w
				if w > peak {
					peak = w
				}
			}
			if sum > bestSum || (sum == bestSum && peak > bestPeak) {
				best, bestSum, bestPeak = comp, sum, peak
			}
		}
	}
	if best == nil {
		return nil, false
	}

	cells := make(map[[2]int]bool, len(best))
	for _, cell := range best {
		cells[[2]int{cell.Y, cell.X}] = true
	}
	return cells, true
}
