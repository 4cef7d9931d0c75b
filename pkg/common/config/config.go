package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"poolview/pkg/common/compress"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string        `json:"address" mapstructure:"address"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// APIConfig points at the backend that owns work pools.
type APIConfig struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	RetryCount int           `json:"retry_count" mapstructure:"retry_count"`
	Token      string        `json:"token" mapstructure:"token"`
}

// QueryConfig tunes the shared query cache.
type QueryConfig struct {
	StaleTime         time.Duration `json:"stale_time" mapstructure:"stale_time"`
	GCTime            time.Duration `json:"gc_time" mapstructure:"gc_time"`
	FetchTimeout      time.Duration `json:"fetch_timeout" mapstructure:"fetch_timeout"`
	RevalidateIfStale bool          `json:"revalidate_if_stale" mapstructure:"revalidate_if_stale"`
	// Persist selects the snapshot backend: "", "file" or "sqlite".
	Persist string `json:"persist" mapstructure:"persist"`
	// PersistCompression is the file backend codec: "zstd", "gzip" or "none".
	PersistCompression string `json:"persist_compression" mapstructure:"persist_compression"`
}

type WorkersConfig struct {
	Size int `json:"size" mapstructure:"size"`
}

type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
	Output string `json:"output" mapstructure:"output"`
}

// RuntimeConfig locates the .runtime directory holding snapshots and the database.
type RuntimeConfig struct {
	BasePath string `json:"base_path" mapstructure:"base_path"`
}

type TracingConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// Config represents the application configuration
type Config struct {
	Debug   bool          `json:"debug" mapstructure:"debug"`
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	API     APIConfig     `json:"api" mapstructure:"api"`
	Query   QueryConfig   `json:"query" mapstructure:"query"`
	Workers WorkersConfig `json:"workers" mapstructure:"workers"`
	Log     LogConfig     `json:"log" mapstructure:"log"`
	Runtime RuntimeConfig `json:"runtime" mapstructure:"runtime"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// EnvPrefix is prepended to every environment override, e.g. POOLVIEW_API_BASE_URL.
const EnvPrefix = "POOLVIEW"

var appConfig *Config

// Default returns the built-in configuration used when nothing was loaded.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Address: ":8080", ShutdownTimeout: 5 * time.Second},
		API:    APIConfig{BaseURL: "http://127.0.0.1:4200/api", Timeout: 10 * time.Second},
		Query: QueryConfig{
			GCTime:             5 * time.Minute,
			FetchTimeout:       30 * time.Second,
			PersistCompression: "zstd",
		},
		Workers: WorkersConfig{Size: 8},
		Log:     LogConfig{Level: "info", Format: "console", Output: "stdout"},
		Runtime: RuntimeConfig{BasePath: "."},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func setDefaults() {
	d := Default()
	viper.SetDefault("debug", d.Debug)
	viper.SetDefault("server.address", d.Server.Address)
	viper.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())
	viper.SetDefault("api.base_url", d.API.BaseURL)
	viper.SetDefault("api.timeout", d.API.Timeout.String())
	viper.SetDefault("api.retry_count", d.API.RetryCount)
	viper.SetDefault("api.token", d.API.Token)
	viper.SetDefault("query.stale_time", d.Query.StaleTime.String())
	viper.SetDefault("query.gc_time", d.Query.GCTime.String())
	viper.SetDefault("query.fetch_timeout", d.Query.FetchTimeout.String())
	viper.SetDefault("query.revalidate_if_stale", d.Query.RevalidateIfStale)
	viper.SetDefault("query.persist", d.Query.Persist)
	viper.SetDefault("query.persist_compression", d.Query.PersistCompression)
	viper.SetDefault("workers.size", d.Workers.Size)
	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.format", d.Log.Format)
	viper.SetDefault("log.output", d.Log.Output)
	viper.SetDefault("runtime.base_path", d.Runtime.BasePath)
	viper.SetDefault("tracing.enabled", d.Tracing.Enabled)
	viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// Load loads the configuration from config.json file
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	if configPath != "" {
		viper.AddConfigPath(configPath)
	} else {
		// Default paths to look for config file
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig(configPath)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return unmarshal()
}

func unmarshal() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	appConfig = &config
	return &config, nil
}

// createDefaultConfig writes the defaults (plus any env overrides) to config.json
func createDefaultConfig(dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	configFile := filepath.Join(dir, "config.json")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return nil, fmt.Errorf("error creating default config file: %w", err)
	}
	return unmarshal()
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	switch c.Query.Persist {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("query.persist: unknown backend %q", c.Query.Persist)
	}
	if _, err := compress.ParseType(c.Query.PersistCompression); err != nil {
		return fmt.Errorf("query.persist_compression: %w", err)
	}
	if c.Workers.Size < 1 {
		return fmt.Errorf("workers.size must be positive, got %d", c.Workers.Size)
	}
	if c.API.RetryCount < 0 {
		return fmt.Errorf("api.retry_count must not be negative")
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if appConfig == nil {
		return Default()
	}
	return appConfig
}

// IsDebug returns whether debug mode is enabled
func IsDebug() bool {
	return Get().Debug
}

// Reload reloads the configuration from file
func Reload() error {
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reloading config: %w", err)
	}
	if _, err := unmarshal(); err != nil {
		return fmt.Errorf("error unmarshaling reloaded config: %w", err)
	}
	return nil
}
