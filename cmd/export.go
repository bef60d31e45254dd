package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/citykit/dmur-cli/internal/export"
	"github.com/citykit/dmur-cli/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a stored run's boundary",
	Long:  "Writes the boundary of a persisted run as GeoJSON or an ESRI shapefile.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		if len(run.BoundaryGeoJSON) == 0 {
			return model.DataErrorf("export", "run %s has no boundary", run.ID)
		}

		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		switch format {
		case "geojson":
			if out == "" || out == "-" {
				fmt.Println(string(run.BoundaryGeoJSON))
				return nil
			}
			return os.WriteFile(out, run.BoundaryGeoJSON, 0o644)
		case "shp":
			if out == "" || out == "-" {
				return model.ConfigErrorf("out", "shapefile export needs an output path")
			}
			var fc geojson.FeatureCollection
			if err := fc.UnmarshalJSON(run.BoundaryGeoJSON); err != nil {
				return err
			}
			if len(fc.Features) == 0 || fc.Features[0].Geometry == nil {
				return model.DataErrorf("export", "run %s boundary has no features", run.ID)
			}
			return export.WriteShapefile(out, fc.Features[0].Geometry, run.City, run.AreaKm2)
		default:
			return model.ConfigErrorf("format", "must be geojson or shp, got %q", format)
		}
	},
}

func init() {
	exportCmd.Flags().String("format", "geojson", "output format: geojson or shp")
	exportCmd.Flags().String("out", "-", "output path, - for stdout (geojson only)")
	rootCmd.AddCommand(exportCmd)
}
