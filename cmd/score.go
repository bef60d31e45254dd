package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/citykit/dmur-cli/internal/export"
	"github.com/citykit/dmur-cli/internal/listings"
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/pipeline"
	"github.com/citykit/dmur-cli/internal/spatial"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score downtown mixed-use readiness",
	Long:  "Runs the boundary pipeline, then scores the DMUR composite against a residential listings file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dataset, err := datasetFromFlags(cmd)
		if err != nil {
			return err
		}

		listingsPath, _ := cmd.Flags().GetString("listings")
		if listingsPath == "" {
			listingsPath = cfg.Listings.Path
		}
		if listingsPath == "" {
			return model.ConfigErrorf("listings.path", "a listings file is required for scoring")
		}
		recs, err := listings.Load(ctx, listingsPath, listings.Options{SkipInvalid: cfg.Listings.SkipInvalid})
		if err != nil {
			return err
		}

		a, err := pipeline.Analyze(ctx, dataset, pipelineOptions())
		if err != nil {
			return err
		}

		scorer, err := newScorer()
		if err != nil {
			return err
		}
		idx := spatial.NewIndex(dataset.Businesses).Filter(spatial.Filter{
			ActiveOnly:     true,
			CommercialOnly: true,
		})
		result, err := scorer.Score(ctx, recs, idx, a.Boundary)
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
			Result:          result,
			TotalBusinesses: a.TotalBusinesses,
			CoreBusinesses:  a.CoreBusinesses,
			AreaKm2:         a.AreaKm2,
			CreatedAt:       time.Now().UTC(),
		}); err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		return writeEncoded(out, format, result)
	},
}

func init() {
	addDatasetFlags(scoreCmd)
	scoreCmd.Flags().String("listings", "", "listings file (csv, json, or xlsx); defaults to listings.path config")
	scoreCmd.Flags().String("out", "-", "score output, - for stdout")
	scoreCmd.Flags().String("format", "json", "output format, json or yaml")
	rootCmd.AddCommand(scoreCmd)
}
