package export

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/citykit/dmur-cli/internal/model"
)

// WriteShapefile writes the boundary as a one-record polygon shapefile
// with CITY and AREA_KM2 attributes. Ring orientation follows the
// shapefile convention: exteriors clockwise, holes counterclockwise.
func WriteShapefile(path string, g geom.T, city string, areaKm2 float64) error {
	poly, err := toShpPolygon(g)
	if err != nil {
		return err
	}

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrap(err, "export: create shapefile")
	}
	defer w.Close() //nolint:errcheck

	if err := w.SetFields([]shp.Field{
		shp.StringField("CITY", 64),
		shp.FloatField("AREA_KM2", 16, 6),
	}); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	w.Write(poly)
	if err := w.WriteAttribute(0, 0, city); err != nil {
		return eris.Wrap(err, "export: write city attribute")
	}
	if err := w.WriteAttribute(0, 1, areaKm2); err != nil {
		return eris.Wrap(err, "export: write area attribute")
	}
	return nil
}

func toShpPolygon(g geom.T) (*shp.Polygon, error) {
	var polys []*geom.Polygon
	switch g := g.(type) {
	case *geom.Polygon:
		polys = []*geom.Polygon{g}
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			polys = append(polys, g.Polygon(i))
		}
	default:
		return nil, model.GeometryErrorf("export", "unsupported geometry %T", g)
	}

	out := &shp.Polygon{}
	for _, p := range polys {
		for r := 0; r < p.NumLinearRings(); r++ {
			ring := p.LinearRing(r).FlatCoords()
			pts := ringToShpPoints(ring)
			// go-geom rings are exterior-CCW, hole-CW; shapefiles invert
			// that, so every ring flips.
			reversePoints(pts)
			out.Parts = append(out.Parts, int32(len(out.Points)))
			out.Points = append(out.Points, pts...)
		}
	}
	out.NumParts = int32(len(out.Parts))
	out.NumPoints = int32(len(out.Points))
	out.Box = boxOf(out.Points)
	return out, nil
}

func ringToShpPoints(flat []float64) []shp.Point {
	pts := make([]shp.Point, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		pts = append(pts, shp.Point{X: flat[i], Y: flat[i+1]})
	}
	// Shapefile rings must be explicitly closed.
	if len(pts) > 0 && pts[0] != pts[len(pts)-1] {
		pts = append(pts, pts[0])
	}
	return pts
}

func reversePoints(pts []shp.Point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

func boxOf(pts []shp.Point) shp.Box {
	box := shp.Box{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, p := range pts {
		box.MinX = math.Min(box.MinX, p.X)
		box.MinY = math.Min(box.MinY, p.Y)
		box.MaxX = math.Max(box.MaxX, p.X)
		box.MaxY = math.Max(box.MaxY, p.Y)
	}
	return box
}
