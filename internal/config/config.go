package config

import (
	"os"
	"strconv"
	"strings"

	"insurisk/internal/errors"

	"github.com/go-playground/validator/v10"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Paths    PathConfig
	Analysis AnalysisConfig
	LogLevel string `validate:"oneof=ERROR WARN INFO DEBUG"`
}

// DatabaseConfig holds database connection settings; an empty URL disables persistence
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required,numeric"`
	GinMode string `validate:"oneof=debug release test"`
}

// PathConfig holds file system paths
type PathConfig struct {
	DataFile  string
	OutputDir string `validate:"required"`
}

// AnalysisConfig holds the pipeline knobs
type AnalysisConfig struct {
	Granularity           string  `validate:"oneof=policy transaction"`
	ParametricPolicy      string  `validate:"oneof=skew-assumption parametric nonparametric measured"`
	SkewThreshold         float64 `validate:"gt=0"`
	Alpha                 float64 `validate:"gt=0,lt=1"`
	WinsorUpper           float64 `validate:"gte=0,lt=0.5"`
	WinsorLower           float64 `validate:"gte=0,lt=0.5"`
	ReferenceYear         int     `validate:"gte=1900,lte=2200"`
	LossRatioCap          float64 `validate:"gt=0"`
	ReportLossRatioCapPct float64 `validate:"gt=0"`
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Paths: PathConfig{
			DataFile:  os.Getenv("DATA_FILE"),
			OutputDir: getEnvOrDefault("OUTPUT_DIR", "outputs"),
		},
		Analysis: loadAnalysisConfig(),
		LogLevel: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", GinMode: "release"},
		Paths:    PathConfig{OutputDir: "outputs"},
		Analysis: DefaultAnalysisConfig(),
		LogLevel: "INFO",
	}
}

// DefaultAnalysisConfig mirrors the conventions of the pricing analysis:
// policy-level aggregation, α=0.05, upper-only 1% winsorization, 2015 data year
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Granularity:           "policy",
		ParametricPolicy:      "skew-assumption",
		SkewThreshold:         1.0,
		Alpha:                 0.05,
		WinsorUpper:           0.01,
		WinsorLower:           0,
		ReferenceYear:         2015,
		LossRatioCap:          5.0,
		ReportLossRatioCapPct: 1000,
	}
}

func loadAnalysisConfig() AnalysisConfig {
	d := DefaultAnalysisConfig()
	return AnalysisConfig{
		Granularity:           getEnvOrDefault("GRANULARITY", d.Granularity),
		ParametricPolicy:      getEnvOrDefault("PARAMETRIC_POLICY", d.ParametricPolicy),
		SkewThreshold:         getEnvFloatOrDefault("SKEW_THRESHOLD", d.SkewThreshold),
		Alpha:                 getEnvFloatOrDefault("ALPHA", d.Alpha),
		WinsorUpper:           getEnvFloatOrDefault("WINSOR_UPPER", d.WinsorUpper),
		WinsorLower:           getEnvFloatOrDefault("WINSOR_LOWER", d.WinsorLower),
		ReferenceYear:         getEnvIntOrDefault("REFERENCE_YEAR", d.ReferenceYear),
		LossRatioCap:          getEnvFloatOrDefault("LOSS_RATIO_CAP", d.LossRatioCap),
		ReportLossRatioCapPct: getEnvFloatOrDefault("REPORT_LOSS_RATIO_CAP_PCT", d.ReportLossRatioCapPct),
	}
}

var validate = validator.New()

// Validate checks struct tags and reports the first failing field
func Validate(config *Config) error {
	if err := validate.Struct(config); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.ConfigInvalid(fe.Namespace() + " failed '" + fe.Tag() + "' check")
		}
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
