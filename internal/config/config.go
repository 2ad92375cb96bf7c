// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig.
package config

import "time"

// Missing feature policies.
const (
	// PolicyStrict rejects a request that lacks a column the model expects.
	PolicyStrict = "strict"
	// PolicyZero substitutes 0.0 for a column the request lacks.
	PolicyZero = "zero"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, mirrors logs into a rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// ModelPath locates the serialized pipeline, relative to the working directory.
	ModelPath string `koanf:"model_path"`

	// MissingFeaturePolicy is PolicyStrict or PolicyZero.
	MissingFeaturePolicy string `koanf:"missing_feature_policy"`

	// CORSAllowedOrigins lists allowed origins; "*" allows any.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// MaxBodyBytes caps the size of a request body.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// MetricsNamespace and MetricsSubsystem prefix every exported metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsEnabled turns recording off when false; /metrics still answers.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshInterval paces the runtime gauge updater.
	MetricsRefreshInterval time.Duration `koanf:"metrics_refresh_interval"`

	// ServiceName and Version are reported by GET /.
	ServiceName string `koanf:"service_name"`
	Version     string `koanf:"version"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":8000",
		ModelPath:              "model.json",
		MissingFeaturePolicy:   PolicyStrict,
		CORSAllowedOrigins:     []string{"*"},
		MaxBodyBytes:           1 << 20,
		MetricsNamespace:       "regpredict",
		MetricsSubsystem:       "api",
		MetricsEnabled:         true,
		MetricsRefreshInterval: 10 * time.Second,
		ServiceName:            "Regression Model Prediction API",
		Version:                "1.0.0",
	}
}
