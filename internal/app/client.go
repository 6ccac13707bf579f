package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/cmdlink/internal/channel"
	"github.com/1ureka/cmdlink/internal/config"
	"github.com/1ureka/cmdlink/internal/signaling"
	"github.com/1ureka/cmdlink/internal/util"
)

// Client is an open command session with a host.
type Client struct {
	ch      *channel.Channel
	timeout time.Duration
	stats   *util.Stats
}

// Dial joins the host at cfg.URL, builds the medium the host announced
// and completes the handshake.
func Dial(ctx context.Context, cfg *config.Config) (*Client, error) {
	conn, session, err := signaling.Dial(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}

	m, err := newMedium(ctx, conn, session.Medium, false, cfg)
	if err != nil {
		return nil, err
	}

	stats := util.NewStats()
	ch, err := newChannel(m, cfg, session.ID, stats)
	if err != nil {
		m.Close()
		return nil, err
	}
	if err := ch.Open(ctx, cfg.OpenTimeout); err != nil {
		ch.Close()
		return nil, fmt.Errorf("app: open: %w", err)
	}
	util.LogSuccess("session %s ready over %s, processors %v", session.ID, session.Medium, ch.Processors())

	return &Client{ch: ch, timeout: cfg.RequestTimeout, stats: stats}, nil
}

// Do sends one command under a fresh message id and returns the reply.
func (c *Client) Do(ctx context.Context, cmd string) (string, error) {
	reply, err := c.ch.Transceive(ctx, uuid.New(), []byte(cmd), c.timeout)
	if err != nil {
		return "", err
	}
	return string(reply), nil
}

// Channel exposes the underlying channel.
func (c *Client) Channel() *channel.Channel { return c.ch }

// Stats returns the session counters.
func (c *Client) Stats() *util.Stats { return c.stats }

// Close ends the session.
func (c *Client) Close() error { return c.ch.Close() }

// RunClient dials the host and runs commands in order, writing each reply
// to out. A failed command is reported and the rest still run; the first
// such error is returned.
func RunClient(ctx context.Context, cfg *config.Config, commands []string, out io.Writer) error {
	c, err := Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	util.StartStatsReporter(ctx, c.stats, cfg.StatsInterval)

	var first error
	for _, cmd := range commands {
		reply, err := c.Do(ctx, cmd)
		if err != nil {
			util.LogError("%s: %v", cmd, err)
			if first == nil {
				first = fmt.Errorf("app: %s: %w", cmd, err)
			}
			if ctx.Err() != nil {
				return first
			}
			continue
		}
		fmt.Fprintf(out, "%s\n", reply)
	}
	return first
}
