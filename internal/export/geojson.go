// Package export renders analysis boundaries to GeoJSON and ESRI
// shapefile outputs.
package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// BoundaryGeoJSON renders the boundary as a single-feature
// FeatureCollection with the given properties.
func BoundaryGeoJSON(g geom.T, props map[string]any) ([]byte, error) {
	fc := geojson.FeatureCollection{
		Features: []*geojson.Feature{{
			Geometry:   g,
			Properties: props,
		}},
	}
	raw, err := json.MarshalIndent(&fc, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal geojson")
	}
	return raw, nil
}

// WriteGeoJSON writes the boundary FeatureCollection to a file.
func WriteGeoJSON(path string, g geom.T, props map[string]any) error {
	raw, err := BoundaryGeoJSON(g, props)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}
