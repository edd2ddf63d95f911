package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Model   ModelConfig   `yaml:"model" envconfig:"MODEL"`
	Sheets  SheetsConfig  `yaml:"sheets" envconfig:"SHEETS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"true"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	DatasetFile string `yaml:"dataset_file" envconfig:"DATASET_FILE" default:"data/ethiopia_fi_unified_data.xlsx"`
	OutputDir   string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"data/processed"`
	WebDir      string `yaml:"web_dir" envconfig:"WEB_DIR" default:"web"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// SheetsConfig configures the optional Google Sheets supplementary
// source. When SpreadsheetID is empty the source is disabled.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	ReadRange     string `yaml:"read_range" envconfig:"READ_RANGE" default:"supplementary!A2:Q"`
	APIKey        string `yaml:"api_key" envconfig:"API_KEY"`
}

// ModelConfig names every tunable constant of the enrichment,
// event-impact, and forecast models. Values that lived as scattered
// notebook literals in the source material are documented fields here.
type ModelConfig struct {
	// MergeTolerance is the maximum absolute difference (percentage
	// points) two equal-confidence sources may disagree by before the
	// merge fails rather than tie-breaking.
	MergeTolerance float64 `yaml:"merge_tolerance" envconfig:"MERGE_TOLERANCE" default:"1.0"`

	// MinPreObservations / MinPostObservations are the smallest pre-
	// and post-event sample sizes for a local impact estimate; below
	// either, the estimator borrows evidence from comparable
	// countries' events of the same category.
	MinPreObservations  int `yaml:"min_pre_observations" envconfig:"MIN_PRE_OBSERVATIONS" default:"3"`
	MinPostObservations int `yaml:"min_post_observations" envconfig:"MIN_POST_OBSERVATIONS" default:"2"`

	// NoiseToleranceSigma is the multiple of the pre-event fit's
	// residual standard deviation a post-event deviation must exceed
	// to count as the effect's onset.
	NoiseToleranceSigma float64 `yaml:"noise_tolerance_sigma" envconfig:"NOISE_TOLERANCE_SIGMA" default:"1.5"`

	// BorrowedConfidenceFactor scales down the confidence of borrowed
	// (cross-country) impact estimates.
	BorrowedConfidenceFactor float64 `yaml:"borrowed_confidence_factor" envconfig:"BORROWED_CONFIDENCE_FACTOR" default:"0.6"`

	// Scenario multipliers applied to event-impact magnitudes.
	OptimisticMultiplier  float64 `yaml:"optimistic_multiplier" envconfig:"OPTIMISTIC_MULTIPLIER" default:"1.2"`
	BaseMultiplier        float64 `yaml:"base_multiplier" envconfig:"BASE_MULTIPLIER" default:"1.0"`
	PessimisticMultiplier float64 `yaml:"pessimistic_multiplier" envconfig:"PESSIMISTIC_MULTIPLIER" default:"0.8"`

	// Forecast horizon, inclusive.
	HorizonStart int `yaml:"horizon_start" envconfig:"HORIZON_START" default:"2025"`
	HorizonEnd   int `yaml:"horizon_end" envconfig:"HORIZON_END" default:"2027"`

	// CIZ is the z-multiplier applied to the fit's residual standard
	// deviation for the base confidence band; CIWideningPerStep is
	// added to the half-width for each year past the last observation.
	CIZ               float64 `yaml:"ci_z" envconfig:"CI_Z" default:"1.64"`
	CIWideningPerStep float64 `yaml:"ci_widening_per_step" envconfig:"CI_WIDENING_PER_STEP" default:"0.5"`

	// MinTrendObservations is the smallest series length a baseline
	// trend may be fitted on.
	MinTrendObservations int `yaml:"min_trend_observations" envconfig:"MIN_TREND_OBSERVATIONS" default:"2"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("FINC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration populated with struct-tag defaults
// only, bypassing files. Used by tests and the pure pipeline API.
func Default() *Config {
	var cfg Config
	_ = envconfig.Process("FINC_DEFAULTS_ONLY", &cfg)
	return &cfg
}

func getConfigFilePath() string {
	if path := os.Getenv("FINC_CONFIG"); path != "" {
		return path
	}
	return "finclusion.yml"
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// mergeConfigs overlays the file config with the env config; a file
// value wins only where the environment left the default untouched.
func mergeConfigs(file, env Config) Config {
	out := env
	if file.Server.Port != 0 {
		out.Server.Port = file.Server.Port
	}
	if file.Logging.Level != "" {
		out.Logging.Level = file.Logging.Level
	}
	if file.Logging.FilePath != "" {
		out.Logging.FilePath = file.Logging.FilePath
	}
	if file.Paths.DatasetFile != "" {
		out.Paths.DatasetFile = file.Paths.DatasetFile
	}
	if file.Paths.OutputDir != "" {
		out.Paths.OutputDir = file.Paths.OutputDir
	}
	if file.Sheets.SpreadsheetID != "" {
		out.Sheets = file.Sheets
	}
	if file.Model.HorizonStart != 0 {
		out.Model = file.Model
	}
	return out
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Model.MergeTolerance < 0 {
		return fmt.Errorf("merge tolerance must be non-negative, got %f", c.Model.MergeTolerance)
	}
	if c.Model.HorizonStart > c.Model.HorizonEnd {
		return fmt.Errorf("horizon start %d after horizon end %d", c.Model.HorizonStart, c.Model.HorizonEnd)
	}
	if c.Model.PessimisticMultiplier > c.Model.BaseMultiplier ||
		c.Model.BaseMultiplier > c.Model.OptimisticMultiplier {
		return fmt.Errorf("scenario multipliers must satisfy pessimistic <= base <= optimistic")
	}
	if c.Model.MinTrendObservations < 2 {
		return fmt.Errorf("min trend observations must be at least 2, got %d", c.Model.MinTrendObservations)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// HorizonYears returns the inclusive forecast years.
func (m ModelConfig) HorizonYears() []int {
	if m.HorizonStart > m.HorizonEnd {
		return nil
	}
	years := make([]int, 0, m.HorizonEnd-m.HorizonStart+1)
	for y := m.HorizonStart; y <= m.HorizonEnd; y++ {
		years = append(years, y)
	}
	return years
}
