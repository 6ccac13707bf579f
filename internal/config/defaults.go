package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultChannelID identifies the stock cmdlink command protocol.
const DefaultChannelID = "c3f1a7d2-5b8e-4e6a-9d3c-2f7b1e0a6c94"

// Defaults returns a Config populated with sensible defaults.
func Defaults() *Config {
	return &Config{
		Role:           RoleHost,
		ChannelID:      DefaultChannelID,
		Processors:     []string{"seal", "compress"},
		Codec:          "proto",
		Workers:        4,
		QueueSize:      256,
		OpenTimeout:    30 * time.Second,
		RequestTimeout: 10 * time.Second,
		Medium:         MediumWebSocket,
		Listen:         ":0",
		StatsInterval:  0,
	}
}

// DefaultPath returns the default config file path: ~/.cmdlink/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cmdlink", "config.yaml")
	}
	return filepath.Join(home, ".cmdlink", "config.yaml")
}
