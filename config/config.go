package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Hostname   string `toml:"hostname"`
	Port       int    `toml:"port"`
	CorsOrigin string `toml:"cors_origin"`
}

// StorageConfig holds the durable storage settings
type StorageConfig struct {
	Database string `toml:"database"`
}

// BackendConfig holds the simulated backend settings
type BackendConfig struct {
	// LatencyMs is the fixed artificial delay applied to every request
	LatencyMs int `toml:"latency_ms"`
}

// Config represents the top-level configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Backend BackendConfig `toml:"backend"`
}

// Default returns the configuration used when no file or flag overrides
// a value. The 500ms latency is the default simulated round-trip.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Hostname:   "localhost",
			Port:       3000,
			CorsOrigin: "http://localhost:3001",
		},
		Storage: StorageConfig{
			Database: "postboard.db",
		},
		Backend: BackendConfig{
			LatencyMs: 500,
		},
	}
}

// Latency returns the backend delay as a duration.
func (c *Config) Latency() time.Duration {
	return time.Duration(c.Backend.LatencyMs) * time.Millisecond
}

// LoadConfig reads a TOML configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}
