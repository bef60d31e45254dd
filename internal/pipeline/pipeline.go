// Package pipeline runs the end-to-end boundary analysis: filter the
// business dataset, estimate the density field, select the downtown core,
// and build its polygon.
package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citykit/dmur-cli/internal/boundary"
	"github.com/citykit/dmur-cli/internal/density"
	"github.com/citykit/dmur-cli/internal/metrics"
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/region"
	"github.com/citykit/dmur-cli/internal/spatial"
)

// FailureMode decides what happens when no core candidate qualifies.
type FailureMode string

const (
	// FailModeError propagates the SelectionError to the caller.
	FailModeError FailureMode = "fail"
	// FailModeWholeArea falls back to bounding the whole filtered dataset.
	FailModeWholeArea FailureMode = "whole_area"
)

// Options configures one analysis run.
type Options struct {
	// AutoFocus enables core selection. When false the boundary wraps the
	// whole filtered dataset.
	AutoFocus bool
	// OnSelectionFailure applies only when AutoFocus is on.
	OnSelectionFailure FailureMode
	// Filter restricts the dataset before analysis. The zero value keeps
	// every point; callers normally want active commercial points.
	Filter    spatial.Filter
	Density   density.Options
	Selection region.Options
	Boundary  boundary.Options
}

// Analysis is the outcome of one pipeline run.
type Analysis struct {
	RunID           string
	City            string
	Boundary        *boundary.Boundary
	Winner          *model.CoreCandidate
	Candidates      []model.CoreCandidate
	TotalBusinesses int
	CoreBusinesses  int
	AreaKm2         float64
	// CoreDensityPerKm2 is CoreBusinesses over AreaKm2, zero when the
	// boundary is degenerate.
	CoreDensityPerKm2 float64
	Duration          time.Duration
}

// Analyze runs the pipeline over a fetched dataset.
func Analyze(ctx context.Context, dataset *model.BusinessDataset, opts Options) (*Analysis, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID), zap.String("city", dataset.City))

	a, err := analyze(ctx, log, dataset, opts)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	a.RunID = runID
	a.City = dataset.City
	a.Duration = time.Since(start)
	metrics.AnalysesTotal.WithLabelValues("complete").Inc()
	log.Info("analysis complete",
		zap.Int("total_businesses", a.TotalBusinesses),
		zap.Int("core_businesses", a.CoreBusinesses),
		zap.Float64("area_km2", a.AreaKm2),
		zap.Float64("core_density_per_km2", a.CoreDensityPerKm2),
		zap.Duration("duration", a.Duration),
	)
	return a, nil
}

func analyze(ctx context.Context, log *zap.Logger, dataset *model.BusinessDataset, opts Options) (*Analysis, error) {
	if len(dataset.Businesses) == 0 {
		return nil, model.DataErrorf("analyze", "dataset for %q has no businesses", dataset.City)
	}

	idx := spatial.NewIndex(dataset.Businesses).Filter(opts.Filter)
	if idx.Len() == 0 {
		return nil, model.DataErrorf("analyze", "no businesses remain after filtering %d points", len(dataset.Businesses))
	}
	if idx.Len() < 3 {
		return nil, model.DataErrorf("analyze", "%d businesses is too few to bound an area", idx.Len())
	}
	log.Debug("dataset filtered",
		zap.Int("kept", idx.Len()),
		zap.Int("total", len(dataset.Businesses)),
		zap.Any("categories", categoryCounts(idx.Points())),
	)
	warnImplausibleSpread(log, idx.Points())

	a := &Analysis{TotalBusinesses: idx.Len()}
	corePoints := idx.Points()

	if opts.AutoFocus {
		sel, grid, err := selectCore(ctx, idx, opts)
		a.Candidates = sel.Candidates
		switch {
		case err == nil:
			a.Winner = &sel.Winner
			corePoints = highDensityPoints(sel.Winner.Points, grid, sel.DensityThreshold)
		case model.IsSelectionError(err) && opts.OnSelectionFailure == FailModeWholeArea:
			log.Warn("core selection failed, bounding whole area", zap.Error(err))
		default:
			return nil, err
		}
	}
	a.CoreBusinesses = len(corePoints)

	boundaryStart := time.Now()
	bnd, err := boundary.Build(corePoints, opts.Boundary)
	if err != nil {
		return nil, err
	}
	metrics.AnalysisDuration.WithLabelValues("boundary").Observe(time.Since(boundaryStart).Seconds())
	if bnd.Degenerate {
		log.Warn("boundary is degenerate, area is not meaningful")
	}

	a.Boundary = bnd
	a.AreaKm2 = bnd.AreaKm2()
	if !bnd.Degenerate && a.AreaKm2 > 0 {
		a.CoreDensityPerKm2 = float64(a.CoreBusinesses) / a.AreaKm2
	}
	return a, nil
}

func categoryCounts(pts []model.BusinessPoint) map[model.Category]int {
	counts := make(map[model.Category]int)
	for _, p := range pts {
		counts[p.Category]++
	}
	return counts
}

// warnImplausibleSpread flags datasets whose extent suggests a bad fetch: a
// spread over a degree usually means mixed cities, under a thousandth of a
// degree a single block.
func warnImplausibleSpread(log *zap.Logger, pts []model.BusinessPoint) {
	rng := pointBounds(pts)
	switch extent := rng.MaxExtent(); {
	case extent > 1:
		log.Warn("dataset spans more than one degree, boundary may be meaningless",
			zap.Float64("extent_deg", extent))
	case extent < 0.001:
		log.Warn("dataset spans less than a thousandth of a degree",
			zap.Float64("extent_deg", extent))
	}
}

func pointBounds(pts []model.BusinessPoint) model.CoordinateRange {
	rng := model.CoordinateRange{
		MinLat: pts[0].Lat, MaxLat: pts[0].Lat,
		MinLon: pts[0].Lon, MaxLon: pts[0].Lon,
	}
	for _, p := range pts[1:] {
		rng.MinLat = math.Min(rng.MinLat, p.Lat)
		rng.MaxLat = math.Max(rng.MaxLat, p.Lat)
		rng.MinLon = math.Min(rng.MinLon, p.Lon)
		rng.MaxLon = math.Max(rng.MaxLon, p.Lon)
	}
	return rng
}

// selectCore estimates the density field and picks the winning candidate.
// A dataset too small or too concentrated for density estimation is not
// fatal; selection proceeds on cluster and histogram evidence alone.
func selectCore(ctx context.Context, idx *spatial.Index, opts Options) (region.Selection, *density.Grid, error) {
	densityStart := time.Now()
	grid, err := density.Estimate(ctx, idx.Points(), opts.Density)
	if err != nil {
		if !model.IsDataError(err) {
			return region.Selection{}, nil, err
		}
		zap.L().Debug("density estimation skipped", zap.Error(err))
		grid = nil
	}
	metrics.AnalysisDuration.WithLabelValues("density").Observe(time.Since(densityStart).Seconds())

	selectStart := time.Now()
	sel, err := region.Select(ctx, idx, grid, opts.Selection)
	metrics.AnalysisDuration.WithLabelValues("selection").Observe(time.Since(selectStart).Seconds())
	return sel, grid, err
}

// highDensityPoints keeps winner members whose density cell meets the
// qualifying threshold, so low-density stragglers on a cluster's rim do
// not stretch the alpha shape.
func highDensityPoints(pts []model.BusinessPoint, grid *density.Grid, threshold float64) []model.BusinessPoint {
	if grid == nil {
		return pts
	}
	kept := pts[:0:0]
	for _, p := range pts {
		r, c := grid.CellOf(p.Lat, p.Lon)
		if v := grid.Values[r][c]; v >= threshold && v > 0 {
			kept = append(kept, p)
		}
	}
	return kept
}
