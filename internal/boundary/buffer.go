package boundary

import (
	"math"

	"github.com/twpayne/go-geom"
)

// miterLimit caps the join spike at sharp vertices, in multiples of the
// offset distance. Joins past the limit are beveled instead.
const miterLimit = 4.0

// bufferGeom offsets every ring by d along its right-hand normal. With
// exteriors counterclockwise and holes clockwise this grows the polygon
// outward and shrinks its holes, matching a one-way outward buffer. Holes
// that collapse under the offset are dropped.
func bufferGeom(g geom.T, d float64) geom.T {
	switch g := g.(type) {
	case *geom.Polygon:
		return bufferPolygon(g, d)
	case *geom.MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < g.NumPolygons(); i++ {
			// Push only errors on layout mismatch, which cannot happen here.
			_ = mp.Push(bufferPolygon(g.Polygon(i), d))
		}
		return mp
	}
	return g
}

func bufferPolygon(p *geom.Polygon, d float64) *geom.Polygon {
	var flat []float64
	var ends []int
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := ringCoords(p.LinearRing(i).FlatCoords())
		offset := offsetRing(ring, d)
		if len(offset) < 3 {
			continue
		}
		if i > 0 && !sameOrientation(ring, offset) {
			// The hole inverted under the offset, meaning it was narrower
			// than twice the buffer distance. It no longer exists.
			continue
		}
		for _, c := range offset {
			flat = append(flat, c[0], c[1])
		}
		flat = append(flat, offset[0][0], offset[0][1])
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

// ringCoords converts closed flat coordinates to an open coordinate list.
func ringCoords(flat []float64) [][2]float64 {
	n := len(flat) / 2
	if n > 1 && flat[0] == flat[(n-1)*2] && flat[1] == flat[(n-1)*2+1] {
		n--
	}
	out := make([][2]float64, n)
	for i := 0; i < n; i++ {
		out[i] = [2]float64{flat[i*2], flat[i*2+1]}
	}
	return out
}

// offsetRing shifts each edge d to its right and rejoins consecutive edges
// at their intersection. Near-parallel or over-long miters fall back to a
// bevel, which keeps the result finite at spikes.
func offsetRing(ring [][2]float64, d float64) [][2]float64 {
	n := len(ring)
	if n < 3 {
		return nil
	}

	type seg struct{ ax, ay, bx, by, vx, vy float64 }
	segs := make([]seg, 0, n)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		dx, dy := b[0]-a[0], b[1]-a[1]
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := dy/length*d, -dx/length*d
		segs = append(segs, seg{a[0] + nx, a[1] + ny, b[0] + nx, b[1] + ny, a[0], a[1]})
	}
	if len(segs) < 3 {
		return nil
	}

	var out [][2]float64
	for i := range segs {
		prev := segs[(i+len(segs)-1)%len(segs)]
		cur := segs[i]
		ix, iy, ok := intersectLines(prev.ax, prev.ay, prev.bx, prev.by, cur.ax, cur.ay, cur.bx, cur.by)
		vx, vy := cur.vx, cur.vy
		if ok && math.Hypot(ix-vx, iy-vy) <= miterLimit*math.Abs(d) {
			out = append(out, [2]float64{ix, iy})
		} else {
			out = append(out, [2]float64{prev.bx, prev.by}, [2]float64{cur.ax, cur.ay})
		}
	}
	return out
}

// intersectLines returns the intersection of two infinite lines given by
// segments. ok is false for near-parallel lines.
func intersectLines(ax, ay, bx, by, cx, cy, dx, dy float64) (float64, float64, bool) {
	r1x, r1y := bx-ax, by-ay
	r2x, r2y := dx-cx, dy-cy
	denom := r1x*r2y - r1y*r2x
	if math.Abs(denom) < 1e-15 {
		return 0, 0, false
	}
	t := ((cx-ax)*r2y - (cy-ay)*r2x) / denom
	return ax + t*r1x, ay + t*r1y, true
}

func sameOrientation(a, b [][2]float64) bool {
	return math.Signbit(ringArea(a)) == math.Signbit(ringArea(b))
}

func ringArea(ring [][2]float64) float64 {
	var sum float64
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		sum += p[0]*q[1] - q[0]*p[1]
	}
	return sum / 2
}
