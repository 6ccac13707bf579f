package medium

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/cmdlink/internal/util"
)

// STUN servers for ICE candidate gathering. No TURN, the medium targets
// direct P2P connectivity.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

const (
	highWaterMark  = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark   = 64 * 1024  // resume sending when bufferedAmount drops below this
	sendBufferSize = 64         // outgoing message channel capacity
)

// DataChannel wraps a single PeerConnection + DataChannel pair. The channel
// is pre-negotiated (ID 0) so both peers create it independently, and
// ordered, since a medium delivers messages in order when it can.
//
// Signaling (offer/answer/candidates) is driven by the caller through the
// exposed methods before Open is awaited.
type DataChannel struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	sender     *sender
	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
	handler func([]byte)
}

// NewDataChannel creates a DataChannel medium backed by a new PeerConnection.
// The medium is alive as long as the DataChannel is open and ctx has not
// been cancelled.
func NewDataChannel(ctx context.Context) (*DataChannel, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	})
	if err != nil {
		return nil, err
	}

	negotiated := true
	id := uint16(0)
	dc, err := pc.CreateDataChannel("cmdlink", &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		pc.Close()
		return nil, err
	}

	mCtx, mCancel := context.WithCancel(ctx)

	m := &DataChannel{
		pc:         pc,
		dc:         dc,
		openSignal: make(chan struct{}),
		ctx:        mCtx,
		cancel:     mCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(m.openSignal) })
	})

	dc.OnClose(func() {
		util.LogInfo("DataChannel closed")
		mCancel()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		m.mu.RLock()
		fn := m.handler
		m.mu.RUnlock()
		if fn != nil {
			fn(msg.Data)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		m.mu.Lock()
		m.pcState = state
		m.mu.Unlock()
		if state == webrtc.PeerConnectionStateFailed {
			mCancel()
		}
	})

	m.sender = newSender(mCtx, dc, m.openSignal)

	return m, nil
}

// ---------------------------------------------------------------------------
// Medium
// ---------------------------------------------------------------------------

func (m *DataChannel) CanReceive() bool { return m.ctx.Err() == nil }

func (m *DataChannel) CanTransmit() bool {
	select {
	case <-m.openSignal:
		return m.ctx.Err() == nil
	default:
		return false
	}
}

// Open waits until the DataChannel is open.
func (m *DataChannel) Open(ctx context.Context, timeout time.Duration) error {
	return waitReady(ctx, timeout, m.openSignal, m.ctx.Done())
}

// Transmit enqueues data for the single-writer sender goroutine. Send
// failures are logged by the sender, not returned.
func (m *DataChannel) Transmit(data []byte) error {
	if m.ctx.Err() != nil {
		return ErrClosed
	}
	m.sender.send(m.ctx, data)
	return nil
}

func (m *DataChannel) OnReceive(fn func([]byte)) {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
}

// Ready is closed when the DataChannel is open.
func (m *DataChannel) Ready() <-chan struct{} { return m.openSignal }

func (m *DataChannel) Done() <-chan struct{} { return m.ctx.Done() }

// Close shuts down the DataChannel and PeerConnection.
func (m *DataChannel) Close() error {
	m.cancel()
	return errors.Join(m.dc.Close(), m.pc.Close())
}

// ConnectionState returns the last observed PeerConnection state.
func (m *DataChannel) ConnectionState() webrtc.PeerConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

func (m *DataChannel) CreateOffer() (webrtc.SessionDescription, error) {
	return m.pc.CreateOffer(nil)
}

func (m *DataChannel) CreateAnswer() (webrtc.SessionDescription, error) {
	return m.pc.CreateAnswer(nil)
}

func (m *DataChannel) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return m.pc.SetLocalDescription(sdp)
}

func (m *DataChannel) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return m.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (m *DataChannel) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	m.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (m *DataChannel) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return m.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Sender
// ---------------------------------------------------------------------------

// sender serializes all writes to a single DataChannel, adding an open gate
// and backpressure control.
type sender struct {
	inbox       chan []byte
	drainSignal chan struct{}
}

// newSender wires the backpressure callbacks on dc and starts the loop.
// The loop exits when ctx is cancelled.
func newSender(ctx context.Context, dc *webrtc.DataChannel, openSignal <-chan struct{}) *sender {
	s := &sender{
		inbox:       make(chan []byte, sendBufferSize),
		drainSignal: make(chan struct{}, 1),
	}

	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drainSignal <- struct{}{}:
		default:
		}
	})

	go s.loop(ctx, dc, openSignal)

	return s
}

func (s *sender) loop(ctx context.Context, dc *webrtc.DataChannel, openSignal <-chan struct{}) {
	// Phase 1: wait for DC to be open.
	select {
	case <-openSignal:
	case <-ctx.Done():
		return
	}

	// Phase 2: send with backpressure.
	for {
		select {
		case data := <-s.inbox:
			if dc.BufferedAmount() > uint64(highWaterMark) {
				select {
				case <-s.drainSignal:
				case <-ctx.Done():
					return
				}
			}

			if err := dc.Send(data); err != nil {
				util.LogError("DataChannel send failed (%d bytes): %v", len(data), err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// send enqueues a message. It blocks while the buffer is full and returns
// silently when ctx is cancelled.
func (s *sender) send(ctx context.Context, data []byte) {
	select {
	case s.inbox <- data:
	case <-ctx.Done():
	}
}
