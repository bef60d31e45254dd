package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/citykit/dmur-cli/internal/export"
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/pipeline"
	"github.com/citykit/dmur-cli/pkg/overpass"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Infer the downtown core boundary",
	Long:  "Runs the boundary pipeline over a fetched dataset (or fetches one directly) and writes the boundary as GeoJSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dataset, err := datasetFromFlags(cmd)
		if err != nil {
			return err
		}

		opts := pipelineOptions()
		if noFocus, _ := cmd.Flags().GetBool("no-auto-focus"); noFocus {
			opts.AutoFocus = false
		}
		if mode, _ := cmd.Flags().GetString("on-selection-failure"); mode != "" {
			opts.OnSelectionFailure = pipeline.FailureMode(mode)
		}

		a, err := pipeline.Analyze(ctx, dataset, opts)
		if err != nil {
			return err
		}

		geo, err := export.BoundaryGeoJSON(a.Boundary.Geom, boundaryProps(a))
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.SaveRun(ctx, &model.AnalysisRun{
			ID:              a.RunID,
			City:            a.City,
			Status:          model.RunStatusComplete,
			BoundaryGeoJSON: geo,
			TotalBusinesses: a.TotalBusinesses,
			CoreBusinesses:  a.CoreBusinesses,
			AreaKm2:         a.AreaKm2,
			CreatedAt:       time.Now().UTC(),
		}); err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" || out == "-" {
			fmt.Println(string(geo))
		} else if err := os.WriteFile(out, geo, 0o644); err != nil {
			return err
		}
		if shpPath, _ := cmd.Flags().GetString("shp"); shpPath != "" {
			if err := export.WriteShapefile(shpPath, a.Boundary.Geom, a.City, a.AreaKm2); err != nil {
				return err
			}
		}

		fmt.Fprintf(os.Stderr, "run %s: %d of %d businesses in core, %.3f km2\n",
			a.RunID, a.CoreBusinesses, a.TotalBusinesses, a.AreaKm2)
		return nil
	},
}

func datasetFromFlags(cmd *cobra.Command) (*model.BusinessDataset, error) {
	if input, _ := cmd.Flags().GetString("input"); input != "" {
		return loadDataset(input)
	}
	city, _ := cmd.Flags().GetString("city")
	if city == "" {
		return nil, model.ConfigErrorf("input", "either --input or --city is required")
	}
	state, _ := cmd.Flags().GetString("state")
	country, _ := cmd.Flags().GetString("country")
	return overpassClient().FetchBusinesses(cmd.Context(), overpass.QuerySpec{
		City:    city,
		State:   state,
		Country: country,
	})
}

func boundaryProps(a *pipeline.Analysis) map[string]any {
	props := map[string]any{
		"run_id":           a.RunID,
		"city":             a.City,
		"source":           string(a.Boundary.Source),
		"degenerate":       a.Boundary.Degenerate,
		"area_km2":         a.AreaKm2,
		"total_businesses": a.TotalBusinesses,
		"core_businesses":  a.CoreBusinesses,
	}
	if a.Winner != nil {
		props["core_source"] = string(a.Winner.Source)
	}
	return props
}

func addDatasetFlags(cmd *cobra.Command) {
	cmd.Flags().String("input", "", "dataset JSON file produced by fetch")
	cmd.Flags().String("city", "", "city to fetch directly instead of --input")
	cmd.Flags().String("state", "", "state or region name for --city")
	cmd.Flags().String("country", "", "country name for --city")
}

func init() {
	addDatasetFlags(analyzeCmd)
	analyzeCmd.Flags().String("out", "-", "boundary GeoJSON output, - for stdout")
	analyzeCmd.Flags().String("shp", "", "also write an ESRI shapefile to this path")
	analyzeCmd.Flags().Bool("no-auto-focus", false, "bound the whole dataset instead of selecting a core")
	analyzeCmd.Flags().String("on-selection-failure", "", "fail or whole_area")
	rootCmd.AddCommand(analyzeCmd)
}
