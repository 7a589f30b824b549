// Package config loads the effectd configuration.
//
// Sources are layered defaults < YAML file < environment. Environment
// variables carry the EFFECTIVE_ prefix, e.g. EFFECTIVE_LOG_BUFFER_SIZE=64
// sets log.buffer_size.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/multierr"

	"github.com/on-the-ground/effect_ive_tracing/effects/configkeys"
)

const DefaultEnvPrefix = "EFFECTIVE_"

// Exporters accepted by tracing.exporter.
const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log      LogSection      `koanf:"log"`
	Tracing  TracingSection  `koanf:"tracing"`
	Graceful GracefulSection `koanf:"graceful"`
	HTTP     HTTPSection     `koanf:"http"`
	Metrics  MetricsSection  `koanf:"metrics"`
}

type LogSection struct {
	Level      string `koanf:"level"`
	BufferSize int    `koanf:"buffer_size"`
	NumWorkers int    `koanf:"num_workers"`
}

type TracingSection struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Exporter    string `koanf:"exporter"`
}

type GracefulSection struct {
	Timeout time.Duration `koanf:"timeout"`
}

type HTTPSection struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type MetricsSection struct {
	Path string `koanf:"path"`
}

// Defaults are loaded before any other source.
func Defaults() map[string]any {
	return map[string]any{
		configkeys.LogLevel:           "info",
		configkeys.LogBufferSize:      128,
		configkeys.LogNumWorkers:      1,
		configkeys.TracingEnabled:     true,
		configkeys.TracingServiceName: "effectd",
		configkeys.TracingExporter:    ExporterStdout,
		configkeys.GracefulTimeout:    "10s",
		configkeys.HTTPHost:           "127.0.0.1",
		configkeys.HTTPPort:           8080,
		configkeys.MetricsPath:        "/metrics",
	}
}

var levels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs error
	if !levels[c.Log.Level] {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s %q", ErrInvalidConfig, configkeys.LogLevel, c.Log.Level))
	}
	if c.Log.BufferSize < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, configkeys.LogBufferSize))
	}
	if c.Log.NumWorkers < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, configkeys.LogNumWorkers))
	}
	if c.Tracing.Exporter != ExporterStdout && c.Tracing.Exporter != ExporterNone {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s %q", ErrInvalidConfig, configkeys.TracingExporter, c.Tracing.Exporter))
	}
	if c.Graceful.Timeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, configkeys.GracefulTimeout))
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s %d", ErrInvalidConfig, configkeys.HTTPPort, c.HTTP.Port))
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s %q", ErrInvalidConfig, configkeys.MetricsPath, c.Metrics.Path))
	}
	return errs
}

type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

type Option func(*Loader)

func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile adds a YAML file between defaults and environment.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and validates the result.
func (l *Loader) Load() (Config, error) {
	var cfg Config
	if err := l.k.Load(mapProvider(Defaults()), nil); err != nil {
		return cfg, fmt.Errorf("load defaults: %w", err)
	}
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load file %s: %w", l.filePath, err)
		}
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// envKey maps EFFECTIVE_LOG_BUFFER_SIZE to log.buffer_size. Known keys are
// matched as a whole so underscores inside a leaf name survive.
func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	for _, key := range configkeys.All() {
		if strings.ReplaceAll(key, ".", "_") == s {
			return key
		}
	}
	return strings.ReplaceAll(s, "_", ".")
}

// mapProvider is a koanf.Provider over an in-memory map with dotted keys.
type mapProvider map[string]any

var errReadBytesNotSupported = errors.New("config: map provider only supports Read")

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
