package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jonwraymond/cachekit/observe"
	"github.com/jonwraymond/cachekit/observe/exporters"
)

// Kinds lists the cache variants cachectl can build.
var Kinds = []string{"fifo", "lru", "timed", "weak"}

// ErrInvalidConfig indicates a cachectl setting is out of range.
var ErrInvalidConfig = errors.New("cachectl: invalid configuration")

// Config holds every cachectl setting. Values come from flags, CACHECTL_*
// environment variables and an optional cachectl.{yaml,toml} file, in that
// order of precedence.
type Config struct {
	Kind     string        `mapstructure:"kind"`
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
	MaxTTL   time.Duration `mapstructure:"max-ttl"`
	Sliding  bool          `mapstructure:"sliding"`
	Sweep    time.Duration `mapstructure:"sweep"`

	Workers        int           `mapstructure:"workers"`
	Ops            int           `mapstructure:"ops"`
	Keys           int           `mapstructure:"keys"`
	ComputeLatency time.Duration `mapstructure:"compute-latency"`

	LogLevel string `mapstructure:"log-level"`
	Metrics  string `mapstructure:"metrics"`
	Tracing  string `mapstructure:"tracing"`
	Listen   string `mapstructure:"listen"`
	HeapMB   uint64 `mapstructure:"heap-budget-mb"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Kind:           "lru",
		Capacity:       1000,
		TTL:            time.Minute,
		Workers:        8,
		Ops:            100_000,
		Keys:           2000,
		ComputeLatency: time.Millisecond,
		LogLevel:       "info",
		Metrics:        "none",
		Tracing:        "none",
		Listen:         ":8080",
	}
}

// bindFlags registers the configuration flags on fs.
func bindFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("config", "", "config file (default ./cachectl.yaml or ./cachectl.toml)")
	fs.String("kind", d.Kind, "cache variant: "+strings.Join(Kinds, "|"))
	fs.Int("capacity", d.Capacity, "maximum entries, 0 for unbounded")
	fs.Duration("ttl", d.TTL, "default entry TTL, 0 for no expiry")
	fs.Duration("max-ttl", d.MaxTTL, "upper bound on entry TTL, 0 for none")
	fs.Bool("sliding", d.Sliding, "measure expiry from the last read")
	fs.Duration("sweep", d.Sweep, "background sweep interval for the timed cache")
	fs.Int("workers", d.Workers, "concurrent workload goroutines")
	fs.Int("ops", d.Ops, "operations per workload run")
	fs.Int("keys", d.Keys, "distinct keys in the workload")
	fs.Duration("compute-latency", d.ComputeLatency, "simulated supplier latency")
	fs.String("log-level", d.LogLevel, "log level: debug|info|warn|error")
	fs.String("metrics", d.Metrics, "metrics exporter: otlp|prometheus|stdout|none")
	fs.String("tracing", d.Tracing, "tracing exporter: otlp|stdout|none")
	fs.String("listen", d.Listen, "serve listen address")
	fs.Uint64("heap-budget-mb", d.HeapMB, "heap budget for the memory health check, 0 for none")
}

// newViper creates a viper instance bound to fs and the CACHECTL_ environment.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("cachectl")
	v.AddConfigPath(".")
	v.SetEnvPrefix("CACHECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// loadConfig reads the config file, if any, and decodes every setting.
func loadConfig(v *viper.Viper) (Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.Kind = strings.ToLower(strings.TrimSpace(cfg.Kind))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case !slices.Contains(Kinds, c.Kind):
		return fmt.Errorf("%w: kind must be one of %v, got %q", ErrInvalidConfig, Kinds, c.Kind)
	case c.Capacity < 0:
		return fmt.Errorf("%w: capacity must not be negative", ErrInvalidConfig)
	case c.TTL < 0 || c.MaxTTL < 0 || c.Sweep < 0 || c.ComputeLatency < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	case c.Ops < 1:
		return fmt.Errorf("%w: ops must be at least 1", ErrInvalidConfig)
	case c.Keys < 1:
		return fmt.Errorf("%w: keys must be at least 1", ErrInvalidConfig)
	case !slices.Contains(observe.LogLevels, c.LogLevel):
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	case !slices.Contains(exporters.MetricsExporters, c.Metrics):
		return fmt.Errorf("%w: metrics exporter %q", ErrInvalidConfig, c.Metrics)
	case !slices.Contains(exporters.TracingExporters, c.Tracing):
		return fmt.Errorf("%w: tracing exporter %q", ErrInvalidConfig, c.Tracing)
	}
	return nil
}

// observeConfig maps the exporter settings onto an observe.Config.
func (c Config) observeConfig(version string) observe.Config {
	return observe.Config{
		ServiceName: "cachectl",
		Version:     version,
		Global:      true,
		Tracing: observe.TracingConfig{
			Enabled:   enabled(c.Tracing),
			Exporter:  c.Tracing,
			SamplePct: 1,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  enabled(c.Metrics),
			Exporter: c.Metrics,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}
