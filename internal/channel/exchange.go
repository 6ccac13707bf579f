package channel

import (
	"bytes"
	"context"
	"time"

	"github.com/1ureka/cmdlink/internal/pipeline"
	"github.com/1ureka/cmdlink/internal/protocol"
	"github.com/1ureka/cmdlink/internal/util"
)

// ── Outbound ─────────────────────────────────────────────────────────

// Transmit queues data for delivery under id and returns immediately.
// Pipeline or medium failures after queueing are logged and counted, not
// reported. The only error is ErrChannelClosed.
func (c *Channel) Transmit(id protocol.MessageID, data []byte) error {
	return c.enqueue(protocol.KindData, id, bytes.Clone(data))
}

func (c *Channel) enqueue(kind protocol.Kind, id protocol.MessageID, payload []byte) error {
	if c.isClosed() {
		return ErrChannelClosed
	}
	if !c.tx.submit(func() { c.send(kind, id, payload) }) {
		return ErrChannelClosed
	}
	return nil
}

// send runs on a transmit worker. Handshake frames bypass the pipeline.
func (c *Channel) send(kind protocol.Kind, id protocol.MessageID, payload []byte) {
	if kind == protocol.KindData {
		out, err := c.pipe.Load().Apply(pipeline.Outbound, payload)
		if err != nil {
			c.stats.TransmitError()
			util.LogError("channel: outbound pipeline for %s: %v", id, err)
			return
		}
		payload = out
	}

	frame := protocol.Encode(kind, c.sessionID, id, payload)
	if err := c.medium.Transmit(frame); err != nil {
		c.stats.TransmitError()
		util.LogError("channel: transmit %s %s: %v", kind, id, err)
		return
	}
	c.stats.AddSent(len(frame))
}

// ── Correlation ──────────────────────────────────────────────────────

// WaitForResponse waits for the next data message carrying id. A timeout
// of zero waits until ctx is done or the channel closes. On timeout the
// waiter is removed, so a late arrival is delivered to OnData instead.
func (c *Channel) WaitForResponse(ctx context.Context, id protocol.MessageID, timeout time.Duration) ([]byte, error) {
	w, err := c.pending.register(id)
	if err != nil {
		return nil, err
	}
	return c.wait(ctx, id, w, timeout)
}

// Transceive transmits data under id and waits for the response with the
// same id. The waiter is registered before the request leaves, so a fast
// answer cannot be missed.
func (c *Channel) Transceive(ctx context.Context, id protocol.MessageID, data []byte, timeout time.Duration) ([]byte, error) {
	return c.roundTrip(ctx, protocol.KindData, id, bytes.Clone(data), timeout)
}

func (c *Channel) roundTrip(ctx context.Context, kind protocol.Kind, id protocol.MessageID, payload []byte, timeout time.Duration) ([]byte, error) {
	w, err := c.pending.register(id)
	if err != nil {
		return nil, err
	}
	if err := c.enqueue(kind, id, payload); err != nil {
		c.pending.remove(id, w)
		return nil, err
	}
	return c.wait(ctx, id, w, timeout)
}

func (c *Channel) wait(ctx context.Context, id protocol.MessageID, w *waiter, timeout time.Duration) ([]byte, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	var cause error
	select {
	case data, ok := <-w.ch:
		if !ok {
			return nil, ErrChannelClosed
		}
		return data, nil
	case <-expired:
		cause = &PendingRequestTimeoutError{MessageID: id, After: timeout}
	case <-ctx.Done():
		cause = ctx.Err()
	}

	if c.pending.remove(id, w) {
		if IsTimeout(cause) {
			c.stats.AddTimeout()
		}
		return nil, cause
	}
	// Lost the race against resolve or Close: the outcome is already
	// buffered or the channel is closed.
	data, ok := <-w.ch
	if !ok {
		return nil, ErrChannelClosed
	}
	return data, nil
}

// ── Inbound ──────────────────────────────────────────────────────────

// onReceive runs on the medium's delivery goroutine and never blocks it.
// A frame that finds the receive queue full is dropped and counted.
func (c *Channel) onReceive(frame []byte) {
	c.stats.AddRecv(len(frame))
	if c.rx.offer(func() { c.handle(frame) }) {
		return
	}
	if c.isClosed() {
		util.LogDebug("channel: closed, dropping %d byte frame", len(frame))
		return
	}
	c.stats.DropOverflow()
	util.LogDebug("channel: receive queue full, dropping %d byte frame", len(frame))
}

// handle runs on a receive worker.
func (c *Channel) handle(frame []byte) {
	pkt, err := protocol.Decode(frame)
	if err != nil {
		c.stats.DropMalformed()
		util.LogDebug("channel: %v", err)
		return
	}
	if pkt.SessionID != c.sessionID {
		c.stats.DropSession()
		util.LogDebug("channel: frame for session %s, dropping", pkt.SessionID)
		return
	}
	if err := pkt.Verify(); err != nil {
		c.stats.DropIntegrity()
		util.LogDebug("channel: %v", err)
		return
	}

	switch pkt.Kind {
	case protocol.KindHandshakeRequest:
		c.answer(pkt)
	case protocol.KindHandshakeResponse:
		if !c.pending.resolve(pkt.MessageID, pkt.Payload) {
			util.LogDebug("channel: unsolicited handshake response %s", pkt.MessageID)
		}
	case protocol.KindData:
		if !c.park(pkt) {
			c.receive(pkt)
		}
	default:
		c.stats.DropMalformed()
		util.LogDebug("channel: unknown frame kind %d", pkt.Kind)
	}
}

// receive runs a verified data frame through the inbound pipeline. A
// channel with candidates whose negotiation failed has no pipeline to
// trust, so its data is dropped rather than passed through.
func (c *Channel) receive(pkt *protocol.Packet) {
	if len(c.candidates) > 0 && c.neg.err != nil {
		c.stats.DropPipeline()
		util.LogDebug("channel: negotiation failed, dropping %s", pkt.MessageID)
		return
	}
	data, err := c.pipe.Load().Apply(pipeline.Inbound, pkt.Payload)
	if err != nil {
		c.stats.DropPipeline()
		util.LogDebug("channel: inbound pipeline for %s: %v", pkt.MessageID, err)
		return
	}
	c.deliver(pkt.MessageID, data)
}

func (c *Channel) deliver(id protocol.MessageID, data []byte) {
	if c.isClosed() {
		return
	}
	if c.pending.resolve(id, data) {
		c.stats.AddResolved()
		return
	}
	c.emitData(DataEvent{MessageID: id, Payload: data})
}
