// Package config holds the cmdlink configuration and its sources.
//
// Precedence order (highest wins):
//  1. CLI flags (BindFlags)
//  2. Environment variables (LoadFromEnv)
//  3. YAML config file (LoadFile)
//  4. Defaults (Defaults)
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/cmdlink/internal/handshake"
	"github.com/1ureka/cmdlink/internal/processor"
	"github.com/1ureka/cmdlink/internal/protocol"
)

// Role represents the side this process plays (host or client).
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Medium names.
const (
	MediumWebSocket = "websocket"
	MediumWebRTC    = "webrtc"
)

// Config stores every runtime parameter.
type Config struct {
	Role Role `yaml:"role"`

	// Channel
	ChannelID  string   `yaml:"channel_id"`
	Processors []string `yaml:"processors"`
	Codec      string   `yaml:"codec"`
	Workers    int      `yaml:"workers"`
	QueueSize  int      `yaml:"queue_size"`
	Ordered    bool     `yaml:"ordered"`

	// Timeouts
	OpenTimeout    time.Duration `yaml:"open_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Medium and signaling
	Medium string `yaml:"medium"`
	Listen string `yaml:"listen"` // host: signaling listen address
	URL    string `yaml:"url"`    // client: signaling URL including ?pin=
	PIN    string `yaml:"pin"`    // host: empty generates one

	// Output
	StatsInterval time.Duration `yaml:"stats_interval"`
	Debug         bool          `yaml:"debug"`
}

// ChannelUUID parses ChannelID.
func (c *Config) ChannelUUID() (protocol.ChannelID, error) {
	id, err := uuid.Parse(c.ChannelID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("config: channel_id: %w", err)
	}
	return id, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []error

	switch c.Role {
	case RoleHost, RoleClient:
	default:
		errs = append(errs, fmt.Errorf("config: unknown role %q", c.Role))
	}
	switch c.Medium {
	case MediumWebSocket, MediumWebRTC:
	default:
		errs = append(errs, fmt.Errorf("config: unknown medium %q", c.Medium))
	}
	if _, err := c.ChannelUUID(); err != nil {
		errs = append(errs, err)
	}
	if _, err := handshake.CodecByName(c.Codec); err != nil {
		errs = append(errs, err)
	}
	if _, err := processor.ByName(c.Processors...); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("config: workers must be at least 1"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, errors.New("config: queue_size must be at least 1"))
	}
	if c.OpenTimeout <= 0 || c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("config: timeouts must be positive"))
	}
	if c.Role == RoleClient && c.URL == "" {
		errs = append(errs, errors.New("config: client needs a signaling url"))
	}

	return errors.Join(errs...)
}
