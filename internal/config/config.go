package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	FFprobe  FFprobeConfig  `mapstructure:"ffprobe"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	Output     string `mapstructure:"output"` // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type AnalysisConfig struct {
	// Chart geometry used by the viewport downsampler.
	RenderWidth        int     `mapstructure:"render_width"`
	MinPixelsPerPacket float64 `mapstructure:"min_pixels_per_packet"`

	// Minimum gap between observable progress updates.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`

	// Packets consumed between cancellation checks.
	PacketBatchSize int `mapstructure:"packet_batch_size"`

	// Upper bound on simultaneously running analyses.
	MaxConcurrentAnalyses int `mapstructure:"max_concurrent_analyses"`
}

type FFprobeConfig struct {
	BinaryPath   string        `mapstructure:"binary_path"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigFile(configPath)

	// Environment variable override
	viper.SetEnvPrefix("PACKETSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading a file.
func Default() *Config {
	setDefaults()

	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = viper.Unmarshal(&cfg)
	return &cfg
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 5)
	viper.SetDefault("logging.max_age", 30)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 9090)

	// Analysis defaults
	viper.SetDefault("analysis.render_width", 800)
	viper.SetDefault("analysis.min_pixels_per_packet", 0.5)
	viper.SetDefault("analysis.progress_interval", "100ms")
	viper.SetDefault("analysis.packet_batch_size", 64)
	viper.SetDefault("analysis.max_concurrent_analyses", 4)

	// FFprobe defaults
	viper.SetDefault("ffprobe.binary_path", "")
	viper.SetDefault("ffprobe.probe_timeout", "30s")
}
