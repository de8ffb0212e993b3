// Package config provides configuration management for hwcodec using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultMaxOpenConns    = 5
	defaultMaxIdleConns    = 2
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultProbeWidth      = 1280
	defaultProbeHeight     = 720
	defaultProbeKbps       = 4000
	defaultProbeFramerate  = 30
	defaultProbeGOP        = 60
	defaultSelfTestBudget  = 500 * time.Millisecond
	defaultProbeMaxResults = 8

	defaultDrainAttempts     = 200
	defaultDrainInterval     = time.Millisecond
	defaultConverterAttempts = 100
	defaultConverterInterval = time.Millisecond
	defaultSyncTimeout       = time.Second

	defaultMonitorSchedule = "0 */15 * * * *"
)

// Config holds all configuration for the application.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Probe      ProbeConfig      `mapstructure:"probe"`
	Encode     EncodeConfig     `mapstructure:"encode"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
	Exclusions ExclusionsConfig `mapstructure:"exclusions"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ProbeConfig is the profile used for capability probing.
type ProbeConfig struct {
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	BitrateKbps    int           `mapstructure:"bitrate_kbps"`
	Framerate      int           `mapstructure:"framerate"`
	GOP            int           `mapstructure:"gop"`
	MaxResults     int           `mapstructure:"max_results"`
	SelfTestBudget time.Duration `mapstructure:"self_test_budget"`
	Drivers        []string      `mapstructure:"drivers"` // nv, amf, mfx
	Codecs         []string      `mapstructure:"codecs"`  // h264, hevc
	Format         string        `mapstructure:"format"`  // nv12, rgba, bgra
	// DecodeSampleDir holds 720p.h264 and 720p.h265 used by decode probing.
	// Generated access units are used when empty or missing.
	DecodeSampleDir string `mapstructure:"decode_sample_dir"`
	// CacheTTL is how long a stored probe run is trusted while the GPU
	// signature is unchanged. Supports "12h", "7d", "2w".
	CacheTTL Duration `mapstructure:"cache_ttl"`
}

// EncodeConfig bounds the retry loops inside the backends.
type EncodeConfig struct {
	DrainAttempts     int           `mapstructure:"drain_attempts"`
	DrainInterval     time.Duration `mapstructure:"drain_interval"`
	ConverterAttempts int           `mapstructure:"converter_attempts"`
	ConverterInterval time.Duration `mapstructure:"converter_interval"`
	SyncTimeout       time.Duration `mapstructure:"sync_timeout"`
}

// SessionsConfig limits concurrent sessions.
type SessionsConfig struct {
	MaxPerAdapter int `mapstructure:"max_per_adapter"` // 0 = unlimited
}

// ExclusionsConfig points at the persisted exclusion list.
type ExclusionsConfig struct {
	File string `mapstructure:"file"`
}

// MonitorConfig holds the re-probe schedule.
type MonitorConfig struct {
	Schedule string `mapstructure:"schedule"` // 6-field cron expression
	// Retention prunes stored runs older than this. Zero keeps everything.
	Retention Duration `mapstructure:"retention"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with HWCODEC_ and use underscores for nesting.
// Example: HWCODEC_PROBE_MAX_RESULTS=2.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/hwcodec")
		v.AddConfigPath("$HOME/.hwcodec")
	}

	v.SetEnvPrefix("HWCODEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return Unmarshal(v)
}

// Unmarshal decodes and validates the configuration held by v.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "hwcodec.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("probe.width", defaultProbeWidth)
	v.SetDefault("probe.height", defaultProbeHeight)
	v.SetDefault("probe.bitrate_kbps", defaultProbeKbps)
	v.SetDefault("probe.framerate", defaultProbeFramerate)
	v.SetDefault("probe.gop", defaultProbeGOP)
	v.SetDefault("probe.max_results", defaultProbeMaxResults)
	v.SetDefault("probe.self_test_budget", defaultSelfTestBudget)
	v.SetDefault("probe.drivers", []string{"nv", "amf", "mfx"})
	v.SetDefault("probe.codecs", []string{"h264", "hevc"})
	v.SetDefault("probe.format", "bgra")
	v.SetDefault("probe.decode_sample_dir", "")
	v.SetDefault("probe.cache_ttl", "7d")

	v.SetDefault("encode.drain_attempts", defaultDrainAttempts)
	v.SetDefault("encode.drain_interval", defaultDrainInterval)
	v.SetDefault("encode.converter_attempts", defaultConverterAttempts)
	v.SetDefault("encode.converter_interval", defaultConverterInterval)
	v.SetDefault("encode.sync_timeout", defaultSyncTimeout)

	v.SetDefault("sessions.max_per_adapter", 0)

	v.SetDefault("exclusions.file", "")

	v.SetDefault("monitor.schedule", defaultMonitorSchedule)
	v.SetDefault("monitor.retention", "30d")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Probe.Width <= 0 || c.Probe.Height <= 0 {
		return fmt.Errorf("probe.width and probe.height must be positive")
	}
	if c.Probe.Width%2 != 0 || c.Probe.Height%2 != 0 {
		return fmt.Errorf("probe.width and probe.height must be even")
	}
	if c.Probe.BitrateKbps <= 0 || c.Probe.Framerate <= 0 {
		return fmt.Errorf("probe.bitrate_kbps and probe.framerate must be positive")
	}
	if c.Probe.MaxResults < 1 {
		return fmt.Errorf("probe.max_results must be at least 1")
	}
	for _, d := range c.Probe.Drivers {
		if !slices.Contains([]string{"nv", "amf", "mfx"}, strings.ToLower(d)) {
			return fmt.Errorf("probe.drivers: unknown driver %q", d)
		}
	}
	for _, k := range c.Probe.Codecs {
		if !slices.Contains([]string{"h264", "hevc", "h265"}, strings.ToLower(k)) {
			return fmt.Errorf("probe.codecs: unknown codec %q", k)
		}
	}
	if !slices.Contains([]string{"nv12", "rgba", "bgra"}, strings.ToLower(c.Probe.Format)) {
		return fmt.Errorf("probe.format must be one of: nv12, rgba, bgra")
	}

	if c.Encode.DrainAttempts < 1 || c.Encode.ConverterAttempts < 1 {
		return fmt.Errorf("encode.drain_attempts and encode.converter_attempts must be at least 1")
	}

	if c.Monitor.Schedule == "" {
		return fmt.Errorf("monitor.schedule is required")
	}
	if c.Monitor.Retention < 0 {
		return fmt.Errorf("monitor.retention must not be negative")
	}

	if c.Sessions.MaxPerAdapter < 0 {
		return fmt.Errorf("sessions.max_per_adapter must not be negative")
	}

	return nil
}
