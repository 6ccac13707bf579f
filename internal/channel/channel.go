// Package channel implements the command channel: a request/response and
// fire-and-forget messaging layer over any medium.Medium, with an in-band
// handshake that negotiates a processor pipeline before data flows.
//
// Every outbound message is framed by the protocol package under the
// channel's session id. Inbound frames for other sessions, frames whose
// digest does not verify and frames that fail the inbound pipeline are
// dropped without notification.
package channel

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/1ureka/cmdlink/internal/handshake"
	"github.com/1ureka/cmdlink/internal/medium"
	"github.com/1ureka/cmdlink/internal/pipeline"
	"github.com/1ureka/cmdlink/internal/protocol"
	"github.com/1ureka/cmdlink/internal/util"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

// DataEvent is a data message that no waiter claimed.
type DataEvent struct {
	MessageID protocol.MessageID
	Payload   []byte
}

// HandshakeEvent is emitted once per channel when negotiation settles.
// Response holds the peer's raw advertisement: its handshake response when
// this side opened, its request when the peer opened first. Err is non-nil
// when the peer's channel id did not match or its processors could not be
// built.
type HandshakeEvent struct {
	SessionID protocol.SessionID
	Response  []byte
	Err       error
}

// Options configures a Channel. The zero value is usable.
type Options struct {
	// ChannelID names the protocol variant both ends must agree on.
	ChannelID protocol.ChannelID
	// SessionID tags every frame. A random id is generated when zero.
	SessionID protocol.SessionID
	// Processors are the local candidates in declaration order. Both ends
	// must declare shared processors in the same relative order.
	Processors []pipeline.Processor
	Generator  handshake.Generator
	Codec      handshake.Codec
	// Workers bounds each of the transmit and receive pools.
	Workers int
	// QueueSize bounds each pool's queue and the number of data frames
	// held while negotiation is pending. Frames beyond either bound are
	// dropped and counted as overflow.
	QueueSize int
	// Ordered handles inbound frames on a single worker, preserving the
	// medium's delivery order for events.
	Ordered bool
	Stats   *util.Stats
}

// Channel is one command-channel endpoint bound to a single medium.
type Channel struct {
	medium     medium.Medium
	channelID  protocol.ChannelID
	sessionID  protocol.SessionID
	candidates []pipeline.Processor
	generator  handshake.Generator
	codec      handshake.Codec
	stats      *util.Stats

	stateMu sync.Mutex
	state   State

	advOnce sync.Once
	adv     advertisement

	neg       negotiation
	parkLimit int
	pipe      atomic.Pointer[pipeline.Pipeline]

	pending *pendingTable
	tx      *pool
	rx      *pool

	handlerMu   sync.RWMutex
	onData      func(DataEvent)
	onHandshake func(HandshakeEvent)

	opened    chan struct{} // closed once the medium is open
	closeOnce sync.Once
	closed    chan struct{}
}

// New binds a channel to m and starts its worker pools. The medium is not
// opened until Open or Accept.
func New(m medium.Medium, opts Options) *Channel {
	if opts.SessionID == uuid.Nil {
		opts.SessionID = uuid.New()
	}
	if opts.Generator == nil {
		opts.Generator = handshake.DefaultGenerator{}
	}
	if opts.Codec == nil {
		opts.Codec = handshake.ProtoCodec{}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	rxWorkers := opts.Workers
	if opts.Ordered {
		rxWorkers = 1
	}

	c := &Channel{
		medium:     m,
		channelID:  opts.ChannelID,
		sessionID:  opts.SessionID,
		candidates: append([]pipeline.Processor(nil), opts.Processors...),
		generator:  opts.Generator,
		codec:      opts.Codec,
		stats:      opts.Stats,
		state:      StateCreated,
		neg:        negotiation{done: make(chan struct{})},
		parkLimit:  opts.QueueSize,
		pending:    newPendingTable(),
		tx:         newPool(opts.Workers, opts.QueueSize),
		rx:         newPool(rxWorkers, opts.QueueSize),
		opened:     make(chan struct{}),
		closed:     make(chan struct{}),
	}
	m.OnReceive(c.onReceive)

	go func() {
		select {
		case <-m.Done():
			c.Close()
		case <-c.closed:
		}
	}()
	return c
}

// OnData registers the handler for unclaimed data messages. Handlers run
// on receive workers and may be invoked concurrently unless Ordered is set.
func (c *Channel) OnData(fn func(DataEvent)) {
	c.handlerMu.Lock()
	c.onData = fn
	c.handlerMu.Unlock()
}

// OnHandshake registers the handler for the negotiation outcome.
func (c *Channel) OnHandshake(fn func(HandshakeEvent)) {
	c.handlerMu.Lock()
	c.onHandshake = fn
	c.handlerMu.Unlock()
}

func (c *Channel) emitData(ev DataEvent) {
	c.handlerMu.RLock()
	fn := c.onData
	c.handlerMu.RUnlock()
	if fn == nil {
		util.LogDebug("channel: no data handler, dropping %s", ev.MessageID)
		return
	}
	fn(ev)
}

func (c *Channel) emitHandshake(ev HandshakeEvent) {
	c.handlerMu.RLock()
	fn := c.onHandshake
	c.handlerMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

// ── Introspection ────────────────────────────────────────────────────

// State returns the current lifecycle phase.
func (c *Channel) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// SessionID returns the id stamped on every outbound frame.
func (c *Channel) SessionID() protocol.SessionID { return c.sessionID }

// ChannelID returns the protocol variant this channel speaks.
func (c *Channel) ChannelID() protocol.ChannelID { return c.channelID }

// ProcessorsEnabled reports whether a negotiated pipeline is installed.
func (c *Channel) ProcessorsEnabled() bool { return c.pipe.Load() != nil }

// Processors returns the ids of the active pipeline in forward order.
func (c *Channel) Processors() []string { return c.pipe.Load().IDs() }

// Pending returns the number of outstanding response waiters.
func (c *Channel) Pending() int { return c.pending.len() }

// Stats returns the counters this channel updates, possibly nil.
func (c *Channel) Stats() *util.Stats { return c.stats }

// Done is closed when the channel is closed, either explicitly or because
// its medium shut down.
func (c *Channel) Done() <-chan struct{} { return c.closed }

func (c *Channel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// setState moves to s unless the channel is already closed.
func (c *Channel) setState(s State) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != StateClosed {
		c.state = s
	}
}

// transition moves from one state to another and reports whether it did.
func (c *Channel) transition(from, to State) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	return true
}

// Close stops the workers, fails every outstanding waiter with
// ErrChannelClosed, drops the negotiated pipeline and closes the medium.
// Calling Close again is a no-op.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stateMu.Lock()
		c.state = StateClosed
		c.stateMu.Unlock()

		close(c.closed)
		c.tx.stop()
		c.rx.stop()
		c.pending.closeAll()
		c.pipe.Store(nil)
		err = c.medium.Close()
		util.LogDebug("channel: session %s closed", c.sessionID)
	})
	return err
}
