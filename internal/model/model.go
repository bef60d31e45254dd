// Package model defines the shared data types for downtown boundary
// detection and DMUR scoring, plus the error taxonomy used across the
// analysis pipeline.
package model

import (
	"math"
	"time"
)

// Category is the business category derived from OSM-style tag vocabularies.
type Category string

const (
	CategoryShop       Category = "shop"
	CategoryAmenity    Category = "amenity"
	CategoryOffice     Category = "office"
	CategoryTourism    Category = "tourism"
	CategoryCraft      Category = "craft"
	CategoryHealthcare Category = "healthcare"
	CategoryOther      Category = "other"
)

// CommercialCategories lists the categories counted as commercial activity.
var CommercialCategories = map[Category]bool{
	CategoryShop:       true,
	CategoryAmenity:    true,
	CategoryOffice:     true,
	CategoryTourism:    true,
	CategoryCraft:      true,
	CategoryHealthcare: true,
}

// Status is the operational status of a business feature.
type Status string

const (
	StatusActive     Status = "active"
	StatusDisused    Status = "disused"
	StatusAbandoned  Status = "abandoned"
	StatusDemolished Status = "demolished"
	StatusVacant     Status = "vacant"
)

// BusinessPoint is a single business location. Immutable once ingested.
type BusinessPoint struct {
	ID       int64    `json:"id"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Name     string   `json:"name,omitempty"`
	Category Category `json:"category"`
	Subtype  string   `json:"subtype,omitempty"`
	Status   Status   `json:"status"`
}

// Commercial reports whether the point belongs to a commercial category.
func (p BusinessPoint) Commercial() bool {
	return CommercialCategories[p.Category]
}

// BusinessDataset is the on-disk shape produced by the fetch command.
type BusinessDataset struct {
	City       string          `json:"city"`
	State      string          `json:"state,omitempty"`
	Country    string          `json:"country,omitempty"`
	BBox       []float64       `json:"bbox,omitempty"` // min_lat, min_lon, max_lat, max_lon
	Timestamp  time.Time       `json:"timestamp"`
	Total      int             `json:"total_businesses"`
	Businesses []BusinessPoint `json:"businesses"`
}

// ListingType distinguishes rental from sale listings.
type ListingType string

const (
	ListingRental ListingType = "rental"
	ListingSale   ListingType = "sale"
)

// ListingRecord is a residential listing. Read-only to the core.
type ListingRecord struct {
	Lat      float64     `json:"lat"`
	Lon      float64     `json:"lon"`
	Bedrooms int         `json:"bedrooms"`
	AreaSqm  float64     `json:"area_sqm"`
	Price    float64     `json:"price"`
	Type     ListingType `json:"listing_type,omitempty"`
}

// CoordinateRange is a geographic bounding box over a point set.
// Invariant: max >= min on both axes.
type CoordinateRange struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// LatExtent returns the latitude span in degrees.
func (r CoordinateRange) LatExtent() float64 { return r.MaxLat - r.MinLat }

// LonExtent returns the longitude span in degrees.
func (r CoordinateRange) LonExtent() float64 { return r.MaxLon - r.MinLon }

// MaxExtent returns the larger of the two axis spans.
func (r CoordinateRange) MaxExtent() float64 {
	return math.Max(r.LatExtent(), r.LonExtent())
}

// Area returns the bounding area in square degrees.
func (r CoordinateRange) Area() float64 {
	return r.LatExtent() * r.LonExtent()
}

// Contains reports whether the point lies inside the range (inclusive).
func (r CoordinateRange) Contains(lat, lon float64) bool {
	return lat >= r.MinLat && lat <= r.MaxLat && lon >= r.MinLon && lon <= r.MaxLon
}

// Degenerate reports whether either axis has zero extent.
func (r CoordinateRange) Degenerate() bool {
	return r.LatExtent() <= 0 || r.LonExtent() <= 0
}

// NoiseLabel marks points left unclustered by density-based grouping.
const NoiseLabel = -1

// Cluster is a labeled subset of business points from density-based grouping.
type Cluster struct {
	Label  int             `json:"label"`
	Points []BusinessPoint `json:"-"`
	Range  CoordinateRange `json:"range"`
}

// CandidateSource identifies which evidence source produced a core candidate.
type CandidateSource string

const (
	SourceCluster       CandidateSource = "cluster"
	SourceHistogramPeak CandidateSource = "histogram_peak"
	SourceKDEPeak       CandidateSource = "kde_peak"
)

// CoreCandidate is one downtown-core hypothesis produced during selection.
type CoreCandidate struct {
	Source       CandidateSource `json:"source"`
	Points       []BusinessPoint `json:"-"`
	Range        CoordinateRange `json:"range"`
	PointCount   int             `json:"point_count"`
	AreaFraction float64         `json:"area_fraction_of_total"`
}

// DensityRatio returns point_count / bounding_area, the selection criterion.
// A zero-area bounding range yields +Inf so that a perfectly tight candidate
// still orders ahead of spread-out ones; the area-fraction constraint is
// checked separately.
func (c CoreCandidate) DensityRatio() float64 {
	a := c.Range.Area()
	if a <= 0 {
		return math.Inf(1)
	}
	return float64(c.PointCount) / a
}

// ComponentWeights are the DMUR sub-score weights. Must sum to 1.0.
type ComponentWeights struct {
	MXI       float64 `json:"mxi_weight"`
	Balance   float64 `json:"balance_weight"`
	Density   float64 `json:"density_weight"`
	Diversity float64 `json:"diversity_weight"`
}

// DefaultWeights returns the documented default weighting.
func DefaultWeights() ComponentWeights {
	return ComponentWeights{MXI: 0.4, Balance: 0.3, Density: 0.2, Diversity: 0.1}
}

// Sum returns the total of the four weights.
func (w ComponentWeights) Sum() float64 {
	return w.MXI + w.Balance + w.Density + w.Diversity
}

// DMURMetrics carries the raw quantities behind the sub-scores, for auditing.
type DMURMetrics struct {
	ListingsInside   int            `json:"listings_inside"`
	BusinessesInside int            `json:"businesses_inside"`
	AvgDistanceDeg   float64        `json:"avg_distance_to_business_deg"`
	ResidentialRatio float64        `json:"residential_to_business_ratio"`
	AreaKm2          float64        `json:"boundary_area_km2"`
	UnitsPerKm2      float64        `json:"units_per_km2"`
	BedroomCounts    map[string]int `json:"bedroom_distribution"`
}

// DMURResult is the composite scoring output. All scores lie in [0, 1].
type DMURResult struct {
	MXI       float64          `json:"mxi"`
	Balance   float64          `json:"balance"`
	Density   float64          `json:"density"`
	Diversity float64          `json:"diversity"`
	Composite float64          `json:"composite"`
	Weights   ComponentWeights `json:"component_weights"`
	Metrics   DMURMetrics      `json:"metrics"`
}

// RunStatus tracks the lifecycle of a persisted analysis run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// AnalysisRun is the durable record of one boundary/scoring invocation.
type AnalysisRun struct {
	ID              string      `json:"id"`
	City            string      `json:"city"`
	Status          RunStatus   `json:"status"`
	BoundaryGeoJSON []byte      `json:"boundary_geojson,omitempty"`
	Result          *DMURResult `json:"result,omitempty"`
	TotalBusinesses int         `json:"total_businesses"`
	CoreBusinesses  int         `json:"core_businesses"`
	AreaKm2         float64     `json:"area_km2"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Clamp01 clamps v to the unit interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
