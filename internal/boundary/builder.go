// Package boundary turns a core point set into a closed polygon. The
// preferred construction is an alpha shape over the Delaunay triangulation;
// when edge filtering leaves nothing usable it falls back to the convex
// hull. Coordinates are planar degrees with X as longitude and Y as
// latitude.
package boundary

import (
	"math"
	"sort"

	"github.com/fogleman/delaunay"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/citykit/dmur-cli/internal/model"
)

const (
	// DefaultAlpha is the maximum triangle edge length, in degrees, kept in
	// the alpha shape.
	DefaultAlpha = 0.02
	// DefaultBuffer is the outward offset, in degrees, applied to the final
	// boundary so edge businesses fall inside it.
	DefaultBuffer = 0.003
)

// Source records which construction produced the boundary.
type Source string

const (
	SourceAlphaShape Source = "alpha_shape"
	SourceConvexHull Source = "convex_hull"
)

// Options configures boundary construction.
type Options struct {
	// Alpha is the edge-length cutoff in degrees. Zero means DefaultAlpha.
	Alpha float64
	// Buffer is the outward offset in degrees. Zero means DefaultBuffer;
	// negative disables buffering.
	Buffer float64
}

// Boundary is a closed region with point membership and area queries.
type Boundary struct {
	// Geom is a *geom.Polygon or *geom.MultiPolygon.
	Geom geom.T
	// Source is the construction that produced Geom.
	Source Source
	// Degenerate marks near-zero-area boundaries built from collinear or
	// duplicate input. Callers should surface the flag rather than treat
	// the area as meaningful.
	Degenerate bool
}

// Build constructs the boundary for the given points. It needs at least
// three distinct coordinates and returns a GeometryError otherwise.
func Build(points []model.BusinessPoint, opts Options) (*Boundary, error) {
	if opts.Alpha == 0 {
		opts.Alpha = DefaultAlpha
	}
	if opts.Buffer == 0 {
		opts.Buffer = DefaultBuffer
	}

	coords := uniqueCoords(points)
	if len(coords) < 3 {
		return nil, model.GeometryErrorf("build", "need at least 3 distinct points, have %d", len(coords))
	}

	b, err := alphaShape(coords, opts.Alpha)
	if err != nil {
		zap.L().Debug("alpha shape unavailable, using convex hull", zap.Error(err))
		b = hullBoundary(coords)
	}
	if b == nil {
		b = hullBoundary(coords)
	}

	if opts.Buffer > 0 && !b.Degenerate {
		b.Geom = bufferGeom(b.Geom, opts.Buffer)
	}

	zap.L().Debug("boundary built",
		zap.String("source", string(b.Source)),
		zap.Bool("degenerate", b.Degenerate),
		zap.Float64("area_km2", b.AreaKm2()),
	)
	return b, nil
}

// Contains reports whether the coordinate lies inside the boundary. A point
// inside a hole is outside.
func (b *Boundary) Contains(lat, lon float64) bool {
	pt := geom.Coord{lon, lat}
	switch g := b.Geom.(type) {
	case *geom.Polygon:
		return polygonContains(g, pt)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if polygonContains(g.Polygon(i), pt) {
				return true
			}
		}
	}
	return false
}

// AreaDeg2 is the boundary area in square degrees.
func (b *Boundary) AreaDeg2() float64 {
	switch g := b.Geom.(type) {
	case *geom.Polygon:
		return math.Abs(g.Area())
	case *geom.MultiPolygon:
		return math.Abs(g.Area())
	}
	return 0
}

// AreaKm2 approximates the boundary area in square kilometers, scaling
// longitude by the cosine of the boundary's central latitude.
func (b *Boundary) AreaKm2() float64 {
	bounds := b.Geom.Bounds()
	midLat := (bounds.Min(1) + bounds.Max(1)) / 2
	return b.AreaDeg2() * 111.0 * 111.0 * math.Cos(midLat*math.Pi/180)
}

func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(geom.XY, pt, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(geom.XY, pt, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

func uniqueCoords(points []model.BusinessPoint) []delaunay.Point {
	seen := make(map[[2]float64]bool, len(points))
	out := make([]delaunay.Point, 0, len(points))
	for _, p := range points {
		k := [2]float64{p.Lon, p.Lat}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, delaunay.Point{X: p.Lon, Y: p.Lat})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// alphaShape triangulates the points, drops triangles with any edge longer
// than alpha, and assembles the survivors into polygons. A nil boundary
// with nil error means nothing survived the filter and the caller should
// fall back to the hull.
func alphaShape(coords []delaunay.Point, alpha float64) (*Boundary, error) {
	tri, err := delaunay.Triangulate(coords)
	if err != nil {
		return nil, model.GeometryErrorf("triangulate", "%v", err)
	}

	var kept [][3]int
	for t := 0; t+2 < len(tri.Triangles); t += 3 {
		a, b, c := tri.Triangles[t], tri.Triangles[t+1], tri.Triangles[t+2]
		if maxEdge(coords[a], coords[b], coords[c]) <= alpha {
			kept = append(kept, [3]int{a, b, c})
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	polys := assemblePolygons(coords, kept)
	if len(polys) == 0 {
		return nil, nil
	}

	var g geom.T
	if len(polys) == 1 {
		g = polys[0]
	} else {
		// Order parts by area, largest first, for stable output.
		sort.Slice(polys, func(i, j int) bool {
			return math.Abs(polys[i].Area()) > math.Abs(polys[j].Area())
		})
		mp := geom.NewMultiPolygon(geom.XY)
		for _, p := range polys {
			if err := mp.Push(p); err != nil {
				return nil, model.GeometryErrorf("assemble", "%v", err)
			}
		}
		g = mp
	}
	return &Boundary{Geom: g, Source: SourceAlphaShape}, nil
}

func maxEdge(a, b, c delaunay.Point) float64 {
	return math.Max(dist(a, b), math.Max(dist(b, c), dist(a, c)))
}

func dist(a, b delaunay.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

type edgeKey [2]int

func newEdgeKey(a, b int) edgeKey {
	if a < b {
		return edgeKey{a, b}
	}
	return edgeKey{b, a}
}

// assemblePolygons unions the kept triangles. Triangles sharing an edge
// belong to one polygon; within each polygon the edges used by exactly one
// triangle form the boundary rings. The largest ring is the exterior, the
// rest are holes.
func assemblePolygons(coords []delaunay.Point, kept [][3]int) []*geom.Polygon {
	edgeTris := make(map[edgeKey][]int)
	for ti, t := range kept {
		for e := 0; e < 3; e++ {
			k := newEdgeKey(t[e], t[(e+1)%3])
			edgeTris[k] = append(edgeTris[k], ti)
		}
	}

	// Flood fill triangles into components across shared edges.
	comp := make([]int, len(kept))
	for i := range comp {
		comp[i] = -1
	}
	ncomp := 0
	for start := range kept {
		if comp[start] >= 0 {
			continue
		}
		queue := []int{start}
		comp[start] = ncomp
		for len(queue) > 0 {
			ti := queue[0]
			queue = queue[1:]
			t := kept[ti]
			for e := 0; e < 3; e++ {
				for _, other := range edgeTris[newEdgeKey(t[e], t[(e+1)%3])] {
					if comp[other] < 0 {
						comp[other] = ncomp
						queue = append(queue, other)
					}
				}
			}
		}
		ncomp++
	}

	var polys []*geom.Polygon
	for ci := 0; ci < ncomp; ci++ {
		var boundaryEdges []edgeKey
		for k, tris := range edgeTris {
			if len(tris) == 1 && comp[tris[0]] == ci {
				boundaryEdges = append(boundaryEdges, k)
			}
		}
		rings := chainRings(boundaryEdges)
		if len(rings) == 0 {
			continue
		}
		polys = append(polys, ringsToPolygon(coords, rings))
	}
	return polys
}

// chainRings links undirected edges into closed vertex loops.
func chainRings(edges []edgeKey) [][]int {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})

	adj := make(map[int][]int)
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		adj[e[1]] = append(adj[e[1]], e[0])
	}
	used := make(map[edgeKey]bool, len(edges))

	var rings [][]int
	for _, start := range sortedKeys(adj) {
		for {
			next := -1
			for _, n := range adj[start] {
				if !used[newEdgeKey(start, n)] {
					next = n
					break
				}
			}
			if next < 0 {
				break
			}
			ring := []int{start}
			cur, prev := next, start
			used[newEdgeKey(prev, cur)] = true
			for cur != start {
				ring = append(ring, cur)
				found := -1
				for _, n := range adj[cur] {
					if n != prev && !used[newEdgeKey(cur, n)] {
						found = n
						break
					}
				}
				if found < 0 {
					break
				}
				used[newEdgeKey(cur, found)] = true
				prev, cur = cur, found
			}
			if cur == start && len(ring) >= 3 {
				rings = append(rings, ring)
			}
		}
	}
	return rings
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func ringsToPolygon(coords []delaunay.Point, rings [][]int) *geom.Polygon {
	type ringArea struct {
		ring []int
		area float64
	}
	ras := make([]ringArea, len(rings))
	for i, r := range rings {
		ras[i] = ringArea{ring: r, area: math.Abs(shoelace(coords, r))}
	}
	sort.Slice(ras, func(i, j int) bool { return ras[i].area > ras[j].area })

	var flat []float64
	var ends []int
	for i, ra := range ras {
		ring := ra.ring
		// Exterior counterclockwise, holes clockwise.
		ccw := shoelace(coords, ring) > 0
		if (i == 0) != ccw {
			reverseInts(ring)
		}
		for _, v := range ring {
			flat = append(flat, coords[v].X, coords[v].Y)
		}
		flat = append(flat, coords[ring[0]].X, coords[ring[0]].Y)
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

func shoelace(coords []delaunay.Point, ring []int) float64 {
	var sum float64
	for i, v := range ring {
		w := ring[(i+1)%len(ring)]
		sum += coords[v].X*coords[w].Y - coords[w].X*coords[v].Y
	}
	return sum / 2
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
