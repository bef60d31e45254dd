package boundary

import (
	"math"

	"github.com/fogleman/delaunay"
	"github.com/twpayne/go-geom"
)

// degenerateHalfWidth is the perpendicular half-width of the sliver polygon
// built around collinear input, small enough that the reported area stays
// effectively zero.
const degenerateHalfWidth = 1e-9

// hullBoundary wraps the points in their convex hull. Collinear input,
// which has no two-dimensional hull, yields a sliver polygon with the
// Degenerate flag set.
func hullBoundary(coords []delaunay.Point) *Boundary {
	hull := convexHull(coords)
	if len(hull) < 3 {
		return sliverBoundary(coords)
	}

	flat := make([]float64, 0, (len(hull)+1)*2)
	for _, p := range hull {
		flat = append(flat, p.X, p.Y)
	}
	flat = append(flat, hull[0].X, hull[0].Y)
	return &Boundary{
		Geom:   geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}),
		Source: SourceConvexHull,
	}
}

// convexHull is the monotone chain construction. The input must be sorted
// by (X, Y), which uniqueCoords guarantees. The result is counterclockwise
// without the closing point; collinear input collapses to fewer than three
// vertices.
func convexHull(pts []delaunay.Point) []delaunay.Point {
	n := len(pts)
	if n < 3 {
		return append([]delaunay.Point(nil), pts...)
	}

	hull := make([]delaunay.Point, 0, 2*n)
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func cross(o, a, b delaunay.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// sliverBoundary builds a near-zero-area rectangle around the extreme pair
// of a collinear point set.
func sliverBoundary(coords []delaunay.Point) *Boundary {
	a, b := coords[0], coords[0]
	for _, p := range coords {
		if p.X < a.X || (p.X == a.X && p.Y < a.Y) {
			a = p
		}
		if p.X > b.X || (p.X == b.X && p.Y > b.Y) {
			b = p
		}
	}

	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	var nx, ny float64
	if length > 0 {
		nx, ny = -dy/length*degenerateHalfWidth, dx/length*degenerateHalfWidth
	} else {
		nx, ny = 0, degenerateHalfWidth
	}

	flat := []float64{
		a.X - nx, a.Y - ny,
		b.X - nx, b.Y - ny,
		b.X + nx, b.Y + ny,
		a.X + nx, a.Y + ny,
		a.X - nx, a.Y - ny,
	}
	return &Boundary{
		Geom:       geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}),
		Source:     SourceConvexHull,
		Degenerate: true,
	}
}
