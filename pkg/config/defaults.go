package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default configuration values. The cache and prefetch numbers match the
// read-ahead subsystem's own defaults; keeping them in one place here makes
// the sample config self-documenting.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stderr"

	DefaultCacheBits      = 12
	DefaultPrefetchBlocks = 16

	DefaultBusyWait     = time.Millisecond
	DefaultIdleWait     = 250 * time.Millisecond
	DefaultAbsentPoll   = 10 * time.Millisecond
	DefaultCompletePoll = 10 * time.Millisecond

	DefaultMetricsListenAddress = "127.0.0.1:9187"
)

// Default returns the complete default configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
		Cache: CacheConfig{
			Bits: DefaultCacheBits,
		},
		Prefetch: PrefetchConfig{
			MaxBlocks: DefaultPrefetchBlocks,
		},
		Timing: TimingConfig{
			BusyWait:     DefaultBusyWait,
			IdleWait:     DefaultIdleWait,
			AbsentPoll:   DefaultAbsentPoll,
			CompletePoll: DefaultCompletePoll,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: DefaultMetricsListenAddress,
		},
	}
}

// ApplyDefaults fills in zero-valued fields after unmarshaling a partial
// config file.
func ApplyDefaults(cfg *Config) {
	def := Default()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = def.Logging.Output
	}
	if cfg.Cache.Bits == 0 {
		cfg.Cache.Bits = def.Cache.Bits
	}
	if cfg.Prefetch.MaxBlocks == 0 {
		cfg.Prefetch.MaxBlocks = def.Prefetch.MaxBlocks
	}
	if cfg.Timing.BusyWait == 0 {
		cfg.Timing.BusyWait = def.Timing.BusyWait
	}
	if cfg.Timing.IdleWait == 0 {
		cfg.Timing.IdleWait = def.Timing.IdleWait
	}
	if cfg.Timing.AbsentPoll == 0 {
		cfg.Timing.AbsentPoll = def.Timing.AbsentPoll
	}
	if cfg.Timing.CompletePoll == 0 {
		cfg.Timing.CompletePoll = def.Timing.CompletePoll
	}
	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = def.Metrics.ListenAddress
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior.
func Validate(cfg *Config) error {
	// Beyond 20 bits a slot array stops being a cheap fixed cost: 2^20
	// slots of 16 raw sectors is already 37 GiB of payload.
	if cfg.Cache.Bits > 20 {
		return fmt.Errorf("cache.bits %d too large (max 20)", cfg.Cache.Bits)
	}
	if cfg.Prefetch.MaxBlocks < 0 {
		return fmt.Errorf("prefetch.max_blocks must not be negative")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"timing.busy_wait", cfg.Timing.BusyWait},
		{"timing.idle_wait", cfg.Timing.IdleWait},
		{"timing.absent_poll", cfg.Timing.AbsentPoll},
		{"timing.complete_poll", cfg.Timing.CompletePoll},
	} {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative", d.name)
		}
	}
	return nil
}

// DefaultConfigDir returns the directory searched for config.yaml:
// $XDG_CONFIG_HOME/discread, falling back to ~/.config/discread.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "discread")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "discread")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}
