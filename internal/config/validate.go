package config

import (
	"fmt"
)

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}

	if err := c.FFprobe.Validate(); err != nil {
		return fmt.Errorf("ffprobe config: %w", err)
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Port)
	}

	if s.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("invalid log format: %s", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("log output is required")
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", m.Port)
	}

	if m.Path == "" {
		return fmt.Errorf("metrics path is required")
	}

	return nil
}

func (a *AnalysisConfig) Validate() error {
	if a.RenderWidth <= 0 {
		return fmt.Errorf("render_width must be positive")
	}

	if a.MinPixelsPerPacket <= 0 {
		return fmt.Errorf("min_pixels_per_packet must be positive")
	}

	if a.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval must be positive")
	}

	if a.PacketBatchSize <= 0 {
		return fmt.Errorf("packet_batch_size must be positive")
	}

	if a.MaxConcurrentAnalyses <= 0 {
		return fmt.Errorf("max_concurrent_analyses must be positive")
	}

	return nil
}

func (f *FFprobeConfig) Validate() error {
	if f.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}

	return nil
}
