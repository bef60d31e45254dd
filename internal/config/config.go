// Package config loads application configuration from config.yaml and the
// DMUR_ environment prefix, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/citykit/dmur-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	DMUR     DMURConfig     `yaml:"dmur" mapstructure:"dmur"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Listings ListingsConfig `yaml:"listings" mapstructure:"listings"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig configures the boundary pipeline.
type AnalysisConfig struct {
	AutoFocus          bool    `yaml:"auto_focus" mapstructure:"auto_focus"`
	CommercialOnly     bool    `yaml:"commercial_only" mapstructure:"commercial_only"`
	OnSelectionFailure string  `yaml:"on_selection_failure" mapstructure:"on_selection_failure"`
	Eps                float64 `yaml:"eps" mapstructure:"eps"`
	MinPoints          int     `yaml:"min_points" mapstructure:"min_points"`
	MinClusterSize     int     `yaml:"min_cluster_size" mapstructure:"min_cluster_size"`
	MinCorePoints      int     `yaml:"min_core_points" mapstructure:"min_core_points"`
	MaxAreaFraction    float64 `yaml:"max_area_fraction" mapstructure:"max_area_fraction"`
	Percentile         float64 `yaml:"percentile" mapstructure:"percentile"`
	FallbackPercentile float64 `yaml:"fallback_percentile" mapstructure:"fallback_percentile"`
	Bandwidth          float64 `yaml:"bandwidth" mapstructure:"bandwidth"`
	CellSize           float64 `yaml:"cell_size" mapstructure:"cell_size"`
	Alpha              float64 `yaml:"alpha" mapstructure:"alpha"`
	Buffer             float64 `yaml:"buffer" mapstructure:"buffer"`
}

// DMURConfig configures the mixed-use readiness scorer.
type DMURConfig struct {
	MXIWeight        float64 `yaml:"mxi_weight" mapstructure:"mxi_weight"`
	BalanceWeight    float64 `yaml:"balance_weight" mapstructure:"balance_weight"`
	DensityWeight    float64 `yaml:"density_weight" mapstructure:"density_weight"`
	DiversityWeight  float64 `yaml:"diversity_weight" mapstructure:"diversity_weight"`
	MaxDistance      float64 `yaml:"max_distance" mapstructure:"max_distance"`
	OptimalRatio     float64 `yaml:"optimal_ratio" mapstructure:"optimal_ratio"`
	DensityBenchmark float64 `yaml:"density_benchmark" mapstructure:"density_benchmark"`
}

// Weights converts the flat config fields to component weights.
func (c DMURConfig) Weights() model.ComponentWeights {
	return model.ComponentWeights{
		MXI:       c.MXIWeight,
		Balance:   c.BalanceWeight,
		Density:   c.DensityWeight,
		Diversity: c.DiversityWeight,
	}
}

// OverpassConfig configures the OSM fetch client.
type OverpassConfig struct {
	Endpoint          string  `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ListingsConfig configures listing ingestion.
type ListingsConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	SkipInvalid bool   `yaml:"skip_invalid" mapstructure:"skip_invalid"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml (optional) plus DMUR_-prefixed environment
// variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DMUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("analysis.auto_focus", true)
	v.SetDefault("analysis.commercial_only", true)
	v.SetDefault("analysis.on_selection_failure", "fail")
	v.SetDefault("analysis.min_points", 3)
	v.SetDefault("analysis.min_cluster_size", 10)
	v.SetDefault("analysis.min_core_points", 20)
	v.SetDefault("analysis.max_area_fraction", 0.30)
	v.SetDefault("analysis.percentile", 90)
	v.SetDefault("analysis.fallback_percentile", 70)
	v.SetDefault("analysis.cell_size", 0.002)
	v.SetDefault("analysis.alpha", 0.02)
	v.SetDefault("analysis.buffer", 0.003)
	v.SetDefault("dmur.mxi_weight", 0.4)
	v.SetDefault("dmur.balance_weight", 0.3)
	v.SetDefault("dmur.density_weight", 0.2)
	v.SetDefault("dmur.diversity_weight", 0.1)
	v.SetDefault("dmur.max_distance", 0.005)
	v.SetDefault("dmur.optimal_ratio", 25)
	v.SetDefault("dmur.density_benchmark", 1000)
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 180)
	v.SetDefault("overpass.requests_per_second", 0.5)
	v.SetDefault("listings.skip_invalid", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "dmur.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Analysis.OnSelectionFailure {
	case "fail", "whole_area":
	default:
		return model.ConfigErrorf("analysis.on_selection_failure",
			"must be fail or whole_area, got %q", c.Analysis.OnSelectionFailure)
	}
	if c.Analysis.MaxAreaFraction < 0 || c.Analysis.MaxAreaFraction > 1 {
		return model.ConfigErrorf("analysis.max_area_fraction",
			"must lie in [0, 1], got %v", c.Analysis.MaxAreaFraction)
	}
	if p := c.Analysis.Percentile; p < 0 || p > 100 {
		return model.ConfigErrorf("analysis.percentile", "must lie in [0, 100], got %v", p)
	}
	if p := c.Analysis.FallbackPercentile; p < 0 || p > 100 {
		return model.ConfigErrorf("analysis.fallback_percentile", "must lie in [0, 100], got %v", p)
	}
	if c.Analysis.Bandwidth < 0 {
		return model.ConfigErrorf("analysis.bandwidth", "must be positive when set, got %v", c.Analysis.Bandwidth)
	}
	if c.Analysis.CellSize < 0 {
		return model.ConfigErrorf("analysis.cell_size", "must be positive when set, got %v", c.Analysis.CellSize)
	}
	if c.Analysis.Alpha < 0 {
		return model.ConfigErrorf("analysis.alpha", "must be positive when set, got %v", c.Analysis.Alpha)
	}
	if c.Analysis.Buffer < 0 {
		return model.ConfigErrorf("analysis.buffer", "must be positive when set, got %v", c.Analysis.Buffer)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return model.ConfigErrorf("store.driver", "must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return model.ConfigErrorf("store.database_url", "required for the postgres driver")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return model.ConfigErrorf("server.port", "must be a valid port, got %d", c.Server.Port)
	}
	return nil
}

// InitLogger builds the global zap logger from config.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
