package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/cmdlink/internal/handshake"
	"github.com/1ureka/cmdlink/internal/pipeline"
	"github.com/1ureka/cmdlink/internal/protocol"
	"github.com/1ureka/cmdlink/internal/util"
)

// advertisement caches the encoded local handshake. It is generated once
// so that every request and answer carries identical parameters.
type advertisement struct {
	request  *handshake.Request
	reqBytes []byte
	ansBytes []byte
	err      error
}

// negotiation settles once per channel, from whichever advertisement
// arrives first: the answer to our request or the peer's own request.
//
// Data frames that arrive first on a channel with candidates are parked
// until the outcome is known and then replayed through the pipeline, in
// arrival order, by a single receive task.
type negotiation struct {
	once sync.Once
	done chan struct{}
	err  error

	mu       sync.Mutex
	released bool
	parked   []*protocol.Packet
}

func (n *negotiation) settled() bool {
	select {
	case <-n.done:
		return true
	default:
		return false
	}
}

func (c *Channel) advertise() *advertisement {
	c.advOnce.Do(func() {
		req, err := c.generator.Generate(c.channelID, c.candidates)
		if err != nil {
			c.adv.err = fmt.Errorf("channel: generate handshake: %w", err)
			return
		}
		if c.adv.reqBytes, err = c.codec.EncodeRequest(req); err != nil {
			c.adv.err = fmt.Errorf("channel: encode handshake request: %w", err)
			return
		}
		if c.adv.ansBytes, err = c.codec.EncodeResponse(handshake.Answer(req)); err != nil {
			c.adv.err = fmt.Errorf("channel: encode handshake response: %w", err)
			return
		}
		c.adv.request = req
	})
	return &c.adv
}

// settle negotiates against the peer's advertisement. Only the first call
// has any effect; later calls return the first outcome.
func (c *Channel) settle(remote protocol.ChannelID, peer []pipeline.Negotiation, raw []byte) error {
	first := false
	c.neg.once.Do(func() {
		first = true
		c.neg.err = c.negotiate(remote, peer)
		if c.neg.err == nil {
			c.transition(StateNegotiating, StateReady)
		} else {
			c.transition(StateNegotiating, StateFailed)
		}
		close(c.neg.done)
	})
	if first {
		c.emitHandshake(HandshakeEvent{SessionID: c.sessionID, Response: raw, Err: c.neg.err})
		// settle may run on a receive worker, so the replay must not wait
		// for queue room here.
		go func() {
			if !c.rx.submit(c.release) {
				c.release()
			}
		}()
	}
	return c.neg.err
}

// park holds a data frame that arrived before the parked frames were
// released. It reports false when the frame can be processed now.
func (c *Channel) park(pkt *protocol.Packet) bool {
	if len(c.candidates) == 0 {
		return false
	}
	c.neg.mu.Lock()
	defer c.neg.mu.Unlock()
	if c.neg.released {
		return false
	}
	if len(c.neg.parked) >= c.parkLimit {
		c.stats.DropOverflow()
		util.LogDebug("channel: negotiation pending, dropping early frame %s", pkt.MessageID)
		return true
	}
	c.neg.parked = append(c.neg.parked, pkt)
	return true
}

// release replays the parked frames once negotiation has settled. After
// it runs, data frames bypass the parking lot.
func (c *Channel) release() {
	c.neg.mu.Lock()
	parked := c.neg.parked
	c.neg.parked = nil
	c.neg.released = true
	c.neg.mu.Unlock()

	for _, pkt := range parked {
		c.receive(pkt)
	}
}

func (c *Channel) negotiate(remote protocol.ChannelID, peer []pipeline.Negotiation) error {
	if remote != c.channelID {
		util.LogWarning("channel: peer speaks %s, expected %s", remote, c.channelID)
		return &ProtocolMismatchError{Local: c.channelID, Remote: remote}
	}
	adv := c.advertise()
	if adv.err != nil {
		return adv.err
	}
	agreed := pipeline.Reconcile(adv.request.Processors, peer)
	p, err := pipeline.Build(c.candidates, agreed)
	if err != nil {
		return fmt.Errorf("channel: build pipeline: %w", err)
	}
	c.pipe.Store(p)
	util.LogInfo("channel: session %s ready, processors %v", c.sessionID, p.IDs())
	return nil
}

// finish records the outcome of Open or Accept.
func (c *Channel) finish(err error) error {
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	c.setState(StateReady)
	return nil
}

func (c *Channel) begin(ctx context.Context, timeout time.Duration) error {
	if c.isClosed() {
		return ErrChannelClosed
	}
	if !c.transition(StateCreated, StateOpening) {
		return ErrAlreadyOpened
	}
	if err := c.medium.Open(ctx, timeout); err != nil {
		c.setState(StateFailed)
		return &OpenError{Err: err}
	}
	if c.isClosed() {
		return ErrChannelClosed
	}
	c.setState(StateNegotiating)
	close(c.opened)
	return nil
}

// Open readies the medium, sends the handshake request and waits for the
// peer's answer. On success the negotiated pipeline is active and the
// channel is Ready. If the peer's own request settles negotiation first,
// Open succeeds with that outcome.
func (c *Channel) Open(ctx context.Context, timeout time.Duration) error {
	if err := c.begin(ctx, timeout); err != nil {
		return err
	}
	if c.neg.settled() {
		return c.finish(c.neg.err)
	}

	adv := c.advertise()
	if adv.err != nil {
		return c.finish(adv.err)
	}

	raw, err := c.roundTrip(ctx, protocol.KindHandshakeRequest, uuid.New(), adv.reqBytes, timeout)
	if err != nil {
		if c.neg.settled() {
			return c.finish(c.neg.err)
		}
		if errors.Is(err, ErrChannelClosed) {
			return err
		}
		if IsTimeout(err) {
			err = &HandshakeTimeoutError{After: timeout}
		}
		return c.finish(err)
	}

	resp, err := c.codec.DecodeResponse(raw)
	if err != nil {
		return c.finish(&ProtocolMismatchError{Local: c.channelID, Err: err})
	}
	return c.finish(c.settle(resp.ChannelID, resp.Processors, raw))
}

// Accept readies the medium and waits for the peer's handshake request,
// which is answered automatically.
func (c *Channel) Accept(ctx context.Context, timeout time.Duration) error {
	if err := c.begin(ctx, timeout); err != nil {
		return err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-c.neg.done:
		return c.finish(c.neg.err)
	case <-expired:
		return c.finish(&HandshakeTimeoutError{After: timeout})
	case <-ctx.Done():
		return c.finish(ctx.Err())
	case <-c.closed:
		return ErrChannelClosed
	}
}

// answer replies to a peer's handshake request under the same message id
// and negotiates from it if nothing has settled yet.
func (c *Channel) answer(pkt *protocol.Packet) {
	req, err := c.codec.DecodeRequest(pkt.Payload)
	if err != nil {
		c.stats.DropMalformed()
		util.LogDebug("channel: undecodable handshake request %s: %v", pkt.MessageID, err)
		return
	}

	// Queue the reply before settling so it leaves ahead of data sent
	// once Accept returns. Early data is parked by the peer regardless.
	if adv := c.advertise(); adv.err != nil {
		util.LogError("%v", adv.err)
	} else {
		c.reply(pkt.MessageID, adv.ansBytes)
	}

	if err := c.settle(req.ChannelID, req.Processors, pkt.Payload); err != nil {
		util.LogDebug("channel: handshake from peer did not settle: %v", err)
	}
}

// reply answers a handshake request. A request can arrive before this
// side has opened its medium; the reply then waits for Open or Accept.
func (c *Channel) reply(id protocol.MessageID, answer []byte) {
	send := func() { c.enqueue(protocol.KindHandshakeResponse, id, answer) }
	select {
	case <-c.opened:
		send()
	default:
		go func() {
			select {
			case <-c.opened:
				send()
			case <-c.closed:
			}
		}()
	}
}
