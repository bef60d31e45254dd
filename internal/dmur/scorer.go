// Package dmur computes the Downtown Mixed-Use Readiness score, a weighted
// composite of four sub-scores over residential listings and the business
// boundary: mixed-use proximity (MXI), residential-to-commercial balance,
// housing density, and bedroom-mix diversity. Every sub-score lies in
// [0, 1], so any weighting that sums to one keeps the composite in [0, 1].
package dmur

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/citykit/dmur-cli/internal/boundary"
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/spatial"
)

const (
	// DefaultMaxDistance is the listing-to-business distance, in degrees,
	// at which proximity credit reaches zero.
	DefaultMaxDistance = 0.005
	// DefaultOptimalRatio is the residential-units-per-business ratio that
	// scores a perfect balance.
	DefaultOptimalRatio = 25.0
	// DefaultDensityBenchmark is the units-per-km2 density that scores 1.0.
	DefaultDensityBenchmark = 1000.0

	weightTolerance = 1e-6
)

// bedroomBuckets orders the bedroom-mix histogram categories.
var bedroomBuckets = []string{"0", "1", "2", "3", "4+"}

// Config tunes the scorer. Zero values select the documented defaults.
type Config struct {
	Weights          model.ComponentWeights
	MaxDistance      float64
	OptimalRatio     float64
	DensityBenchmark float64
}

// Scorer computes DMUR results. Construct with NewScorer; the zero value
// is not usable.
type Scorer struct {
	cfg Config
}

// NewScorer validates the configuration. Weights must be non-negative and
// sum to 1 within a small tolerance; violations return a ConfigError.
func NewScorer(cfg Config) (*Scorer, error) {
	if cfg.Weights == (model.ComponentWeights{}) {
		cfg.Weights = model.DefaultWeights()
	}
	w := cfg.Weights
	for name, v := range map[string]float64{
		"mxi_weight":       w.MXI,
		"balance_weight":   w.Balance,
		"density_weight":   w.Density,
		"diversity_weight": w.Diversity,
	} {
		if v < 0 {
			return nil, model.ConfigErrorf(name, "must be non-negative, got %v", v)
		}
	}
	if diff := math.Abs(w.Sum() - 1); diff > weightTolerance {
		return nil, model.ConfigErrorf("weights", "must sum to 1, got %v", w.Sum())
	}
	if cfg.MaxDistance == 0 {
		cfg.MaxDistance = DefaultMaxDistance
	}
	if cfg.MaxDistance < 0 {
		return nil, model.ConfigErrorf("max_distance", "must be positive, got %v", cfg.MaxDistance)
	}
	if cfg.OptimalRatio == 0 {
		cfg.OptimalRatio = DefaultOptimalRatio
	}
	if cfg.OptimalRatio < 0 {
		return nil, model.ConfigErrorf("optimal_ratio", "must be positive, got %v", cfg.OptimalRatio)
	}
	if cfg.DensityBenchmark == 0 {
		cfg.DensityBenchmark = DefaultDensityBenchmark
	}
	if cfg.DensityBenchmark < 0 {
		return nil, model.ConfigErrorf("density_benchmark", "must be positive, got %v", cfg.DensityBenchmark)
	}
	return &Scorer{cfg: cfg}, nil
}

// Score computes the full DMUR result. The business index should already be
// filtered to active commercial points. Only listings inside the boundary
// are scored; MXI measures their proximity against the city-wide business
// index. An empty listing set or a boundary with no listings inside yields
// a DataError rather than a zero score.
func (s *Scorer) Score(ctx context.Context, listings []model.ListingRecord, businesses *spatial.Index, bnd *boundary.Boundary) (*model.DMURResult, error) {
	inside := listings[:0:0]
	for _, l := range listings {
		if bnd.Contains(l.Lat, l.Lon) {
			inside = append(inside, l)
		}
	}
	if len(listings) > 0 && len(inside) == 0 {
		return nil, model.DataErrorf("score", "none of %d listings fall inside the boundary", len(listings))
	}

	mxi, avgDist, err := s.MXI(ctx, inside, businesses)
	if err != nil {
		return nil, err
	}
	businessesInside := 0
	for _, p := range businesses.Points() {
		if bnd.Contains(p.Lat, p.Lon) {
			businessesInside++
		}
	}

	balance, ratio, err := s.Balance(len(inside), businessesInside)
	if err != nil {
		return nil, err
	}

	areaKm2 := areaAtListings(bnd, inside)
	density, unitsPerKm2 := s.Density(len(inside), areaKm2)
	diversity, bedrooms := s.Diversity(inside)

	w := s.cfg.Weights
	composite := w.MXI*mxi + w.Balance*balance + w.Density*density + w.Diversity*diversity

	res := &model.DMURResult{
		MXI:       mxi,
		Balance:   balance,
		Density:   density,
		Diversity: diversity,
		Composite: model.Clamp01(composite),
		Weights:   w,
		Metrics: model.DMURMetrics{
			ListingsInside:   len(inside),
			BusinessesInside: businessesInside,
			AvgDistanceDeg:   avgDist,
			ResidentialRatio: ratio,
			AreaKm2:          areaKm2,
			UnitsPerKm2:      unitsPerKm2,
			BedroomCounts:    bedrooms,
		},
	}
	zap.L().Info("dmur scored",
		zap.Float64("composite", res.Composite),
		zap.Float64("mxi", mxi),
		zap.Float64("balance", balance),
		zap.Float64("density", density),
		zap.Float64("diversity", diversity),
		zap.Int("listings_inside", len(inside)),
		zap.Int("businesses_inside", businessesInside),
	)
	return res, nil
}

// MXI scores how close the given residences sit to commercial activity
// anywhere in the study area: 1 - avg_nearest_distance / max_distance,
// clamped to [0, 1]. Nearest-neighbor lookups fan out across CPUs.
func (s *Scorer) MXI(ctx context.Context, listings []model.ListingRecord, businesses *spatial.Index) (float64, float64, error) {
	if len(listings) == 0 {
		return 0, 0, model.DataErrorf("mxi", "no listings to score")
	}
	if businesses.Len() == 0 {
		return 0, 0, model.DataErrorf("mxi", "no businesses to measure against")
	}

	shards := runtime.GOMAXPROCS(0)
	if shards > len(listings) {
		shards = len(listings)
	}
	sums := make([]float64, shards)
	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(listings) + shards - 1) / shards
	for si := 0; si < shards; si++ {
		lo := si * chunk
		hi := lo + chunk
		if hi > len(listings) {
			hi = len(listings)
		}
		g.Go(func() error {
			var sum float64
			for _, l := range listings[lo:hi] {
				if err := ctx.Err(); err != nil {
					return err
				}
				d, err := businesses.NearestDistance(l.Lat, l.Lon)
				if err != nil {
					return err
				}
				sum += d
			}
			sums[si] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	var total float64
	for _, s := range sums {
		total += s
	}
	avg := total / float64(len(listings))
	return model.Clamp01(1 - avg/s.cfg.MaxDistance), avg, nil
}

// Balance scores the residential-to-commercial ratio inside the boundary
// on a symmetric log scale centered on the optimal ratio. Zero commercial
// businesses inside the boundary is a DataError, not a zero score.
func (s *Scorer) Balance(listingsInside, businessesInside int) (float64, float64, error) {
	if businessesInside == 0 {
		return 0, 0, model.DataErrorf("balance", "no commercial businesses inside boundary")
	}
	ratio := float64(listingsInside) / float64(businessesInside)
	if ratio == 0 {
		return 0, 0, nil
	}
	score := 1 - math.Abs(math.Log10(ratio/s.cfg.OptimalRatio))
	return math.Max(0, score), ratio, nil
}

// Density scores housing supply as units per km2 against the benchmark,
// capped at 1.
func (s *Scorer) Density(listingsInside int, areaKm2 float64) (float64, float64) {
	if areaKm2 <= 0 {
		return 0, 0
	}
	unitsPerKm2 := float64(listingsInside) / areaKm2
	return math.Min(1, unitsPerKm2/s.cfg.DensityBenchmark), unitsPerKm2
}

// Diversity scores the bedroom mix as normalized Shannon entropy over the
// buckets 0, 1, 2, 3, and 4+. A single-bucket mix scores 0 and a uniform
// mix scores 1.
func (s *Scorer) Diversity(listings []model.ListingRecord) (float64, map[string]int) {
	counts := make(map[string]int, len(bedroomBuckets))
	for _, l := range listings {
		counts[bedroomBucket(l.Bedrooms)]++
	}
	if len(listings) == 0 {
		return 0, counts
	}

	n := float64(len(listings))
	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log(p)
	}
	return model.Clamp01(entropy / math.Log(float64(len(bedroomBuckets)))), counts
}

func bedroomBucket(n int) string {
	if n >= 4 {
		return "4+"
	}
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%d", n)
}

// areaAtListings converts the boundary area to km2 using the mean latitude
// of the in-boundary listings, falling back to the boundary's own center
// when none are inside.
func areaAtListings(bnd *boundary.Boundary, inside []model.ListingRecord) float64 {
	if len(inside) == 0 {
		return bnd.AreaKm2()
	}
	var sum float64
	for _, l := range inside {
		sum += l.Lat
	}
	meanLat := sum / float64(len(inside))
	return bnd.AreaDeg2() * 111.0 * 111.0 * math.Cos(meanLat*math.Pi/180)
}
