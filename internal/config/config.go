// Package config loads receiver and sender settings from a YAML file.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/goodieshq/govban/internal/protocol"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration file
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the UDP receiver
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           uint16        `yaml:"port"`
	StreamName     string        `yaml:"stream_name"`     // empty accepts every stream
	AllowedSources []string      `yaml:"allowed_sources"` // empty accepts every source
	MetricsAddress string        `yaml:"metrics_address"` // empty disables the metrics endpoint
	StatsInterval  time.Duration `yaml:"stats_interval"`
	MaxStreams     int           `yaml:"max_streams"`
	StreamTimeout  time.Duration `yaml:"stream_timeout"` // 0 keeps idle streams until evicted
}

// ClientConfig configures the UDP sender
type ClientConfig struct {
	Host            string        `yaml:"host"`
	Port            uint16        `yaml:"port"`
	StreamName      string        `yaml:"stream_name"`
	SampleRate      int           `yaml:"sample_rate"` // Hz
	Channels        uint16        `yaml:"channels"`
	SamplesPerFrame uint16        `yaml:"samples_per_frame"`
	ToneHz          float64       `yaml:"tone_hz"` // 0 sends silence
	Duration        time.Duration `yaml:"duration"`
	Timeout         time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          protocol.DefaultPort,
			StatsInterval: 5 * time.Second,
			MaxStreams:    256,
			StreamTimeout: time.Minute,
		},
		Client: ClientConfig{
			Host:            "127.0.0.1",
			Port:            protocol.DefaultPort,
			StreamName:      "Stream1",
			SampleRate:      48000,
			Channels:        2,
			SamplesPerFrame: 256,
			Duration:        10 * time.Second,
			Timeout:         3 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port == 0 {
		return fmt.Errorf("port cannot be 0")
	}
	if _, err := protocol.NewStreamName(s.StreamName); err != nil {
		return fmt.Errorf("stream_name: %w", err)
	}
	for _, src := range s.AllowedSources {
		if net.ParseIP(src) == nil {
			return fmt.Errorf("allowed_sources: invalid IP address %q", src)
		}
	}
	if s.StatsInterval < 0 {
		return fmt.Errorf("stats_interval cannot be negative, got %s", s.StatsInterval)
	}
	if s.MaxStreams < 1 {
		return fmt.Errorf("max_streams must be at least 1, got %d", s.MaxStreams)
	}
	if s.StreamTimeout < 0 {
		return fmt.Errorf("stream_timeout cannot be negative, got %s", s.StreamTimeout)
	}
	return nil
}

func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == 0 {
		return fmt.Errorf("port cannot be 0")
	}
	if _, err := protocol.NewStreamName(c.StreamName); err != nil {
		return fmt.Errorf("stream_name: %w", err)
	}
	if _, err := protocol.SampleRateFromHz(c.SampleRate); err != nil {
		return fmt.Errorf("sample_rate: %w", err)
	}
	if c.Channels < 1 || c.Channels > 256 {
		return fmt.Errorf("channels must be between 1 and 256, got %d", c.Channels)
	}
	if c.SamplesPerFrame < 1 || c.SamplesPerFrame > 256 {
		return fmt.Errorf("samples_per_frame must be between 1 and 256, got %d", c.SamplesPerFrame)
	}
	// the sender emits S16 samples
	if size := int(c.SamplesPerFrame) * int(c.Channels) * 2; size > protocol.MaxPayloadSize {
		return fmt.Errorf("samples_per_frame x channels gives a %d byte payload, max %d", size, protocol.MaxPayloadSize)
	}
	if c.ToneHz < 0 {
		return fmt.Errorf("tone_hz cannot be negative, got %f", c.ToneHz)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	if _, err := l.ParseLevel(); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts the configured level name into a zerolog level
func (l *LoggingConfig) ParseLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid level %q: %w", l.Level, err)
	}
	return level, nil
}
