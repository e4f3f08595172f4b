// Package config loads and validates the service configuration. Values are
// layered: an optional YAML file first, then CHASSIS_-prefixed environment
// variables, where a double underscore maps to a key separator
// (CHASSIS_SERVER__PORT=9000 sets server.port).
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Service    ServiceConfig     `koanf:"service"`
	Server     ServerConfig      `koanf:"server"`
	Logging    LoggingConfig     `koanf:"logging"`
	Storage    StorageConfig     `koanf:"storage"`
	Telemetry  TelemetryConfig   `koanf:"telemetry"`
	Health     HealthConfig      `koanf:"health"`
	RateLimits map[string]string `koanf:"rate_limits"`
}

type ServiceConfig struct {
	Name        string `koanf:"name" validate:"required"`
	Version     string `koanf:"version" validate:"required"`
	Environment string `koanf:"environment" validate:"required"`
	APIPrefix   string `koanf:"api_prefix" validate:"required,startswith=/"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
}

type LoggingConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	// File enables an additional rotating log sink when set.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

type StorageConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite none"`
	DSN    string `koanf:"dsn"`
}

// TelemetryConfig carries the span export credentials. All three of Endpoint,
// PublicKey, and SecretKey are needed for ingest export; with none set the
// trace pipeline runs as a no-op.
type TelemetryConfig struct {
	Endpoint  string `koanf:"endpoint"`
	PublicKey string `koanf:"public_key"`
	SecretKey string `koanf:"secret_key"`
	Stdout    bool   `koanf:"stdout"`
}

type HealthConfig struct {
	ProbeTimeout time.Duration `koanf:"probe_timeout" validate:"min=100ms"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the given YAML file (a missing file is not an
// error), overlays environment variables, applies defaults, and validates the
// result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("CHASSIS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CHASSIS_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Substitute environment variables in telemetry credentials
	cfg.Telemetry.Endpoint = substituteEnvVars(cfg.Telemetry.Endpoint)
	cfg.Telemetry.PublicKey = substituteEnvVars(cfg.Telemetry.PublicKey)
	cfg.Telemetry.SecretKey = substituteEnvVars(cfg.Telemetry.SecretKey)

	if err := validateStruct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"service.name":            "chassis",
		"service.version":         "0.1.0",
		"service.environment":     "development",
		"service.api_prefix":      "/api/v1",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.request_timeout":  "30s",
		"server.shutdown_timeout": "30s",
		"logging.level":           "info",
		"logging.max_size_mb":     50,
		"logging.max_backups":     7,
		"logging.max_age_days":    14,
		"storage.driver":          "sqlite",
		"storage.dsn":             "file:chassis.db",
		"health.probe_timeout":    "2s",
		"rate_limits.root":        "10/minute",
		"rate_limits.health":      "30/minute",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
