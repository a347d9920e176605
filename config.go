package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds everything the server needs to start, resolved once at
// startup by the external loader and handed to the server as a value.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	CacheCapacity      int           `mapstructure:"cache_capacity"`
	DefaultTTL         time.Duration `mapstructure:"default_ttl"`
	EvictionStrategy   string        `mapstructure:"eviction_strategy"`
	PersistenceEnabled bool          `mapstructure:"persistence_enabled"`

	LogLevel    string `mapstructure:"log_level"`
	LogFilePath string `mapstructure:"log_file_path"`

	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	MetricsPort    int  `mapstructure:"metrics_port"`

	DataDir          string        `mapstructure:"data_dir"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Host:               "127.0.0.1",
		Port:               8857,
		CacheCapacity:      1000,
		EvictionStrategy:   "hybrid",
		PersistenceEnabled: false,
		LogLevel:           "info",
		MetricsEnabled:     false,
		MetricsPort:        9857,
		DataDir:            "./data",
		SnapshotInterval:   5 * time.Minute,
	}
}

// LoadConfig resolves configuration by precedence: environment
// variables win; if CACHE_CAPACITY is absent from the environment,
// fall back to config.json in the working directory. Either way,
// defaults backfill anything neither source set. Command-line flags
// bound in cmd.go, when given explicitly, override both sources. The
// returned *viper.Viper is the live instance LoadConfig read from; keep
// it around to drive WatchHotReload.
func LoadConfig() (*Config, *viper.Viper, error) {
	config := DefaultConfig()

	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	bindDefaults(v, config)

	if !hasEnvCacheCapacity() {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, nil, fmt.Errorf("error reading config file: %w", err)
			}
			// No config.json and no env override: defaults stand.
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.Unmarshal(config); err != nil {
		return nil, nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, v, nil
}

func bindDefaults(v *viper.Viper, config *Config) {
	v.SetDefault("host", config.Host)
	v.SetDefault("port", config.Port)
	v.SetDefault("cache_capacity", config.CacheCapacity)
	v.SetDefault("eviction_strategy", config.EvictionStrategy)
	v.SetDefault("persistence_enabled", config.PersistenceEnabled)
	v.SetDefault("log_level", config.LogLevel)
	v.SetDefault("metrics_enabled", config.MetricsEnabled)
	v.SetDefault("metrics_port", config.MetricsPort)
	v.SetDefault("data_dir", config.DataDir)
	v.SetDefault("snapshot_interval", config.SnapshotInterval)
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("cache_capacity", "CACHE_CAPACITY")
	_ = v.BindEnv("default_ttl", "DEFAULT_TTL")
	_ = v.BindEnv("eviction_strategy", "EVICTION_STRATEGY")
	_ = v.BindEnv("persistence_enabled", "PERSISTENCE_ENABLED")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_file_path", "LOG_FILE_PATH")
	_ = v.BindEnv("metrics_enabled", "METRICS_ENABLED")
	_ = v.BindEnv("host", "HOST")
	_ = v.BindEnv("port", "PORT")
}

func hasEnvCacheCapacity() bool {
	_, ok := os.LookupEnv("CACHE_CAPACITY")
	return ok
}

// Validate rejects a configuration the server cannot safely start
// with. cache_capacity must be positive; log_level must be one of a
// known set.
func (c *Config) Validate() error {
	if c.CacheCapacity < 1 {
		return fmt.Errorf("cache_capacity must be at least 1, got %d", c.CacheCapacity)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}

	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	ok := false
	for _, level := range validLevels {
		if strings.EqualFold(c.LogLevel, level) {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLevels, ", "))
	}

	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("calod config: %s:%d capacity=%d eviction=%s persistence=%t metrics=%t",
		c.Host, c.Port, c.CacheCapacity, c.EvictionStrategy, c.PersistenceEnabled, c.MetricsEnabled)
}

// WatchHotReload re-applies config.json changes for the handful of
// fields safe to change without a restart (log level, metrics toggle).
// Capacity and the bind address are fixed at serve startup.
func WatchHotReload(v *viper.Viper, config *Config) {
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("config: %s changed, reloading log_level/metrics_enabled", e.Name)
		if level := v.GetString("log_level"); level != "" {
			config.LogLevel = level
		}
		config.MetricsEnabled = v.GetBool("metrics_enabled")
	})
	v.WatchConfig()
}
