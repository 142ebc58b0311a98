// Package config loads the mesh telemetry consolidator's configuration
// from environment variables (with an optional local .env file for
// development), using the same viper-backed load/validate shape as the
// rest of the platform.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "meshconsolidator/internal/errors"
)

// Config is the complete application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Zipkin       ZipkinConfig       `mapstructure:"zipkin"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", sc.Port)
	}
	return nil
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// ZipkinConfig contains the tracing-backend client configuration.
type ZipkinConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (zc *ZipkinConfig) Validate() error {
	if zc.URL == "" {
		return fmt.Errorf("ZIPKIN_URL is required")
	}
	return nil
}

// OrchestratorConfig contains the Kubernetes-style orchestrator API client
// configuration.
type OrchestratorConfig struct {
	IsInCluster bool          `mapstructure:"is_in_cluster"`
	Host        string        `mapstructure:"host"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (oc *OrchestratorConfig) Validate() error {
	if !oc.IsInCluster && oc.Host == "" {
		return fmt.Errorf("KUBEAPI_HOST is required when IS_RUNNING_IN_K8S is not \"true\"")
	}
	return nil
}

// Validate validates the whole configuration, aggregating every section's
// own Validate().
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Zipkin.Validate(); err != nil {
		return err
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads configuration from environment variables (optionally seeded
// by a local .env file), applies defaults, and validates the result.
// Missing required variables surface as a ConfigError.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	//nolint:errcheck
	viper.BindEnv("zipkin.url", "ZIPKIN_URL")
	//nolint:errcheck
	viper.BindEnv("orchestrator.is_in_cluster", "IS_RUNNING_IN_K8S")
	//nolint:errcheck
	viper.BindEnv("orchestrator.host", "KUBEAPI_HOST")
	//nolint:errcheck
	viper.BindEnv("server.host", "SERVER_HOST")
	//nolint:errcheck
	viper.BindEnv("server.port", "SERVER_PORT")
	//nolint:errcheck
	viper.BindEnv("logging.level", "LOG_LEVEL")
	//nolint:errcheck
	viper.BindEnv("logging.format", "LOG_FORMAT")

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to unmarshal configuration", err)
	}

	if cfg.Orchestrator.IsInCluster {
		host := viper.GetString("KUBERNETES_SERVICE_HOST")
		port := viper.GetString("KUBERNETES_SERVICE_PORT")
		if host == "" || port == "" {
			return nil, apperrors.NewConfigError(
				"KUBERNETES_SERVICE_HOST and KUBERNETES_SERVICE_PORT are required when IS_RUNNING_IN_K8S is \"true\"",
				nil,
			)
		}
		cfg.Orchestrator.Host = fmt.Sprintf("https://%s:%s", host, port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigError("invalid configuration", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("zipkin.timeout", "15s")

	viper.SetDefault("orchestrator.is_in_cluster", false)
	viper.SetDefault("orchestrator.timeout", "30s")
}
