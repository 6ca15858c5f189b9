// Package config loads the discread configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (DISCREAD_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/discread/internal/bytesize"
)

// Config captures the static configuration of the discread tools and the
// read-ahead subsystem they embed.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Cache configures the direct-mapped sector cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Prefetch configures the sequential read-ahead window
	Prefetch PrefetchConfig `mapstructure:"prefetch" yaml:"prefetch"`

	// Timing tunes the worker's and consumer's poll intervals
	Timing TimingConfig `mapstructure:"timing" yaml:"timing"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" or "json"
	Format string `mapstructure:"format" yaml:"format"`

	// Output is "stdout", "stderr", or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

// CacheConfig configures the sector cache.
type CacheConfig struct {
	// Bits sets the cache to 2^Bits slots. Each slot holds one 16-sector
	// raw block (about 37 KiB), so the default 12 is roughly 128 MiB.
	Bits uint32 `mapstructure:"bits" yaml:"bits"`
}

// PrefetchConfig configures the read-ahead window.
type PrefetchConfig struct {
	// MaxBlocks is the read-ahead budget granted after each request.
	MaxBlocks int `mapstructure:"max_blocks" yaml:"max_blocks"`
}

// TimingConfig tunes the subsystem's wait intervals.
type TimingConfig struct {
	// BusyWait is the worker's wake timeout while prefetch budget remains.
	BusyWait time.Duration `mapstructure:"busy_wait" yaml:"busy_wait"`

	// IdleWait is the worker's wake timeout when fully idle.
	IdleWait time.Duration `mapstructure:"idle_wait" yaml:"idle_wait"`

	// AbsentPoll is the presence re-check delay with no medium inserted.
	AbsentPoll time.Duration `mapstructure:"absent_poll" yaml:"absent_poll"`

	// CompletePoll is the consumer's completion re-check interval.
	CompletePoll time.Duration `mapstructure:"complete_poll" yaml:"complete_poll"`
}

// MetricsConfig configures Prometheus metrics exposure.
type MetricsConfig struct {
	// Enabled turns the metrics registry and HTTP endpoint on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ListenAddress is the host:port the /metrics endpoint binds to.
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`
}

// CacheBytes returns the total payload memory the configured cache uses.
func (c CacheConfig) CacheBytes() bytesize.ByteSize {
	const blockBytes = 16 * 2352
	return bytesize.ByteSize(uint64(blockBytes) << c.Bits)
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath uses the default location
// ($XDG_CONFIG_HOME/discread/config.yaml); a missing file is not an error,
// defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := Default()
		return &cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to path in YAML form.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variable support and the config file
// search path. Example override: DISCREAD_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DISCREAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks combines the decode hooks for custom config types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize so
// config files can say "128Mi" instead of a raw byte count.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
