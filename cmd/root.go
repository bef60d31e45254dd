package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/citykit/dmur-cli/internal/boundary"
	"github.com/citykit/dmur-cli/internal/config"
	"github.com/citykit/dmur-cli/internal/density"
	"github.com/citykit/dmur-cli/internal/dmur"
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/pipeline"
	"github.com/citykit/dmur-cli/internal/region"
	"github.com/citykit/dmur-cli/internal/spatial"
	"github.com/citykit/dmur-cli/internal/store"
	"github.com/citykit/dmur-cli/pkg/overpass"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dmur",
	Short: "Downtown boundary analysis and mixed-use readiness scoring",
	Long:  "Fetches business locations from OpenStreetMap, infers the downtown core boundary, and scores mixed-use readiness against residential listings.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore opens the configured store backend and migrates the schema.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func overpassClient() *overpass.Client {
	return overpass.New(overpass.Config{
		Endpoint:          cfg.Overpass.Endpoint,
		Timeout:           time.Duration(cfg.Overpass.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.Overpass.RequestsPerSecond,
	})
}

// pipelineOptions maps config to pipeline options. Analysis always excludes
// inactive features; commercial-only filtering is configurable.
func pipelineOptions() pipeline.Options {
	return pipeline.Options{
		AutoFocus:          cfg.Analysis.AutoFocus,
		OnSelectionFailure: pipeline.FailureMode(cfg.Analysis.OnSelectionFailure),
		Filter: spatial.Filter{
			ActiveOnly:     true,
			CommercialOnly: cfg.Analysis.CommercialOnly,
		},
		Density: density.Options{
			Bandwidth: cfg.Analysis.Bandwidth,
			CellSize:  cfg.Analysis.CellSize,
			MinPoints: cfg.Analysis.MinPoints,
		},
		Selection: region.Options{
			Eps:                cfg.Analysis.Eps,
			MinClusterSize:     cfg.Analysis.MinClusterSize,
			MinCorePoints:      cfg.Analysis.MinCorePoints,
			MaxAreaFraction:    cfg.Analysis.MaxAreaFraction,
			Percentile:         cfg.Analysis.Percentile,
			FallbackPercentile: cfg.Analysis.FallbackPercentile,
		},
		Boundary: boundary.Options{
			Alpha:  cfg.Analysis.Alpha,
			Buffer: cfg.Analysis.Buffer,
		},
	}
}

func newScorer() (*dmur.Scorer, error) {
	return dmur.NewScorer(dmur.Config{
		Weights:          cfg.DMUR.Weights(),
		MaxDistance:      cfg.DMUR.MaxDistance,
		OptimalRatio:     cfg.DMUR.OptimalRatio,
		DensityBenchmark: cfg.DMUR.DensityBenchmark,
	})
}

func loadDataset(path string) (*model.BusinessDataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read dataset")
	}
	var ds model.BusinessDataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, eris.Wrap(err, "parse dataset")
	}
	return &ds, nil
}

func writeJSON(path string, v any) error {
	return writeEncoded(path, "json", v)
}

func writeEncoded(path, format string, v any) error {
	var (
		raw []byte
		err error
	)
	switch format {
	case "", "json":
		raw, err = json.MarshalIndent(v, "", "  ")
	case "yaml":
		raw, err = yaml.Marshal(v)
	default:
		return model.ConfigErrorf("format", "unsupported output format %q", format)
	}
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	if path == "" || path == "-" {
		fmt.Println(string(raw))
		return nil
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrap(err, "write output")
	}
	return nil
}
