// Package app contains the top-level orchestration for host and client roles.
package app

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/1ureka/cmdlink/internal/channel"
	"github.com/1ureka/cmdlink/internal/config"
	"github.com/1ureka/cmdlink/internal/handshake"
	"github.com/1ureka/cmdlink/internal/medium"
	"github.com/1ureka/cmdlink/internal/processor"
	"github.com/1ureka/cmdlink/internal/protocol"
	"github.com/1ureka/cmdlink/internal/signaling"
	"github.com/1ureka/cmdlink/internal/util"
)

// newChannel builds a channel over m from cfg, with fresh processor
// instances for this session.
func newChannel(m medium.Medium, cfg *config.Config, session protocol.SessionID, stats *util.Stats) (*channel.Channel, error) {
	channelID, err := cfg.ChannelUUID()
	if err != nil {
		return nil, err
	}
	procs, err := processor.ByName(cfg.Processors...)
	if err != nil {
		return nil, err
	}
	codec, err := handshake.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	return channel.New(m, channel.Options{
		ChannelID:  channelID,
		SessionID:  session,
		Processors: procs,
		Codec:      codec,
		Workers:    cfg.Workers,
		QueueSize:  cfg.QueueSize,
		Ordered:    cfg.Ordered,
		Stats:      stats,
	}), nil
}

// newMedium turns the signaling connection into the session's medium.
// For WebRTC the connection only carries the SDP/ICE exchange.
func newMedium(ctx context.Context, conn *websocket.Conn, kind string, host bool, cfg *config.Config) (medium.Medium, error) {
	switch kind {
	case config.MediumWebSocket:
		return medium.NewWebSocket(conn), nil
	case config.MediumWebRTC:
		if host {
			return signaling.EstablishAsHost(ctx, conn, cfg.OpenTimeout)
		}
		return signaling.EstablishAsClient(ctx, conn, cfg.OpenTimeout)
	default:
		conn.Close()
		return nil, fmt.Errorf("app: unknown medium %q", kind)
	}
}
