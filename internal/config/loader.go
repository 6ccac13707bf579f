package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML file at path onto cfg. A missing file is not
// an error.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the CMDLINK_ prefix. Boolean values
// accept "1", "true", "yes" (case-insensitive). Durations use Go syntax
// ("5s", "1m").

// LoadFromEnv overlays environment variables onto cfg. Only non-empty env
// vars override the existing value.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CMDLINK_ROLE"); v != "" {
		cfg.Role = Role(strings.ToLower(v))
	}
	if v := os.Getenv("CMDLINK_CHANNEL_ID"); v != "" {
		cfg.ChannelID = v
	}
	if v := os.Getenv("CMDLINK_PROCESSORS"); v != "" {
		cfg.Processors = splitList(v)
	}
	if v := os.Getenv("CMDLINK_CODEC"); v != "" {
		cfg.Codec = v
	}
	if v := envInt("CMDLINK_WORKERS"); v > 0 {
		cfg.Workers = v
	}
	if v := envInt("CMDLINK_QUEUE_SIZE"); v > 0 {
		cfg.QueueSize = v
	}
	if envBool("CMDLINK_ORDERED") {
		cfg.Ordered = true
	}

	if v := envDuration("CMDLINK_OPEN_TIMEOUT"); v > 0 {
		cfg.OpenTimeout = v
	}
	if v := envDuration("CMDLINK_REQUEST_TIMEOUT"); v > 0 {
		cfg.RequestTimeout = v
	}

	if v := os.Getenv("CMDLINK_MEDIUM"); v != "" {
		cfg.Medium = strings.ToLower(v)
	}
	if v := os.Getenv("CMDLINK_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("CMDLINK_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("CMDLINK_PIN"); v != "" {
		cfg.PIN = v
	}

	if v := envDuration("CMDLINK_STATS_INTERVAL"); v > 0 {
		cfg.StatsInterval = v
	}
	if envBool("CMDLINK_DEBUG") {
		cfg.Debug = true
	}
}

// BindFlags registers flags that write straight into cfg. Call it after
// LoadFile and LoadFromEnv so that parsed flags win.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ChannelID, "channel-id", cfg.ChannelID, "protocol channel id both sides must share")
	fs.StringSliceVarP(&cfg.Processors, "processors", "p", cfg.Processors, "processors to offer, in order (seal, compress, obfuscate)")
	fs.StringVar(&cfg.Codec, "codec", cfg.Codec, "handshake codec (proto or json)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker goroutines per pool")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "task queue capacity per pool")
	fs.BoolVar(&cfg.Ordered, "ordered", cfg.Ordered, "handle inbound messages on a single worker")
	fs.DurationVar(&cfg.OpenTimeout, "open-timeout", cfg.OpenTimeout, "medium open and handshake timeout")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "per-command response timeout")
	fs.StringVarP(&cfg.Medium, "medium", "m", cfg.Medium, "medium (websocket or webrtc)")
	fs.DurationVar(&cfg.StatsInterval, "stats", cfg.StatsInterval, "traffic report interval, 0 disables")
	fs.BoolVarP(&cfg.Debug, "debug", "d", cfg.Debug, "enable debug logging")
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
