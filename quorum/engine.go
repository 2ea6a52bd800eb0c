// Package quorum owns the three peer sockets, fans outbound requests out
// to all of them, and decides agreement by byte-equality over the signed
// suffix of each response (spec §4.2).
package quorum

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/energyledger/client/events"
	"github.com/energyledger/client/transport"
	"github.com/energyledger/client/wire"
	"github.com/energyledger/client/xlog"
	"go.uber.org/zap"
)

// InboundFrame is one decoded frame delivered to a consumer (the
// computer-state and transfer-status verifiers), tagged with the slot it
// arrived on.
type InboundFrame struct {
	Slot  int
	Frame wire.Frame
}

// Engine is the quorum engine: three socket slots, a rotating
// public-peer queue, and the request/agreement bookkeeping described in
// spec §4.2. All mutable state is owned by the single goroutine that
// runs Run; other goroutines (socket readers, dialers) only ever push
// onto channels.
type Engine struct {
	dial              transport.Dialer
	connectionTimeout time.Duration
	reconnectTimeout  time.Duration
	log               xlog.Logger
	metrics           *Metrics
	events            *events.Broadcaster

	slots [wire.NumberOfConnections]*socket

	publicPeers []string // rotating queue refilled by peer-exchange replies

	inbound   chan inboundMessage
	outbound  chan broadcastRequest
	setPeer   chan setPeerRequest
	reconnect chan int
	connected chan connectedMsg

	inboundOut chan InboundFrame

	mu          sync.Mutex // guards socketState, written by Run via setSocketState and read by SocketState
	socketState [wire.NumberOfConnections]SocketState
}

type broadcastRequest struct {
	frame []byte
}

type setPeerRequest struct {
	slot int
	peer string
}

// connectedMsg reports a successful dial back to the single event-loop
// goroutine, which alone is allowed to mutate socket state; gen lets the
// loop detect and discard a connection superseded by a newer attempt
// (peer changed, or the slot was closed) before it was processed.
type connectedMsg struct {
	slot int
	conn transport.Conn
	gen  chan struct{}
}

// New constructs an Engine. dial is used to open each socket slot;
// initialPeers must have exactly wire.NumberOfConnections entries.
func New(dial transport.Dialer, initialPeers [wire.NumberOfConnections]string, connectionTimeout, reconnectTimeout time.Duration, log xlog.Logger, broadcaster *events.Broadcaster, metrics *Metrics) *Engine {
	e := &Engine{
		dial:              dial,
		connectionTimeout: connectionTimeout,
		reconnectTimeout:  reconnectTimeout,
		log:               log,
		metrics:           metrics,
		events:            broadcaster,
		inbound:           make(chan inboundMessage, 64),
		outbound:          make(chan broadcastRequest, 16),
		setPeer:           make(chan setPeerRequest, wire.NumberOfConnections),
		reconnect:         make(chan int, wire.NumberOfConnections),
		connected:         make(chan connectedMsg, wire.NumberOfConnections),
		inboundOut:        make(chan InboundFrame, 64),
	}
	for i := range e.slots {
		e.slots[i] = &socket{state: StateIdle, peer: initialPeers[i]}
	}
	return e
}

// Inbound returns the channel of decoded frames from all three sockets,
// tagged by slot, for the computer-state and transfer-status verifiers
// to consume.
func (e *Engine) Inbound() <-chan InboundFrame {
	return e.inboundOut
}

// Broadcast fans frame out to every currently open socket (spec §4.2:
// "fan out each outbound request to all three").
func (e *Engine) Broadcast(frame []byte) {
	e.outbound <- broadcastRequest{frame: frame}
}

// SetPeer requests that slot i be redirected to peer, restarting the
// socket only if the address actually changes (spec §4.2).
func (e *Engine) SetPeer(i int, peer string) {
	e.setPeer <- setPeerRequest{slot: i, peer: peer}
}

// SocketState reports slot i's current lifecycle state. Safe to call
// concurrently with Run.
func (e *Engine) SocketState(i int) SocketState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.socketState[i]
}

func (e *Engine) setSocketState(i int, s SocketState) {
	e.mu.Lock()
	e.socketState[i] = s
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.SocketState.WithLabelValues(itoa(i)).Set(float64(s))
	}
}

// Run drives the engine's event loop until ctx is cancelled. It opens
// all three sockets, reconnects them on failure, rotates peers from the
// gossiped queue, and demultiplexes inbound frames onto Inbound().
func (e *Engine) Run(ctx context.Context) {
	for i := range e.slots {
		e.openSlot(ctx, i)
	}

	for {
		select {
		case <-ctx.Done():
			e.closeAll()
			return

		case msg := <-e.inbound:
			e.handleInboundMessage(ctx, msg)

		case req := <-e.outbound:
			for i, s := range e.slots {
				if s.state == StateOpen {
					if err := s.conn.Send(req.frame); err != nil {
						e.log.Warn("quorum: send failed", zap.Int("slot", i), zap.Error(err))
						e.closeSlot(i)
						e.scheduleReconnect(ctx, i)
					}
				}
			}

		case req := <-e.setPeer:
			e.handleSetPeer(ctx, req)

		case i := <-e.reconnect:
			e.openSlot(ctx, i)

		case cm := <-e.connected:
			s := e.slots[cm.slot]
			if s.genCh != cm.gen {
				// Superseded by a newer dial attempt; discard.
				cm.conn.Close()
				continue
			}
			e.onConnected(cm.slot, cm.conn)
			go e.readLoop(cm.slot, cm.conn, cm.gen)
		}
	}
}

func (e *Engine) handleInboundMessage(ctx context.Context, msg inboundMessage) {
	if msg.err != nil {
		e.log.Info("quorum: socket closed", zap.Int("slot", msg.slot), zap.Error(msg.err))
		e.closeSlot(msg.slot)
		e.scheduleReconnect(ctx, msg.slot)
		e.events.Publish(events.Event{Kind: events.KindClose, Socket: events.SocketEvent{Slot: msg.slot, Peer: e.slots[msg.slot].peer}})
		return
	}
	reader := wire.NewFrameReader(msg.data)
	for {
		f, ok, err := reader.Next()
		if err != nil {
			e.log.Warn("quorum: frame parse error", zap.Int("slot", msg.slot), zap.Error(err))
			return
		}
		if !ok {
			return
		}
		if f.Header.RequestKind == wire.RequestKindExchangePeers {
			e.handlePeerExchange(f.Payload)
			continue
		}
		select {
		case e.inboundOut <- InboundFrame{Slot: msg.slot, Frame: f}:
		case <-ctx.Done():
			return
		}
	}
}

// handlePeerExchange appends up to four 4-byte little-endian IPv4
// addresses to the rotating publicPeers queue (spec §4.2).
func (e *Engine) handlePeerExchange(payload []byte) {
	for i := 0; i+4 <= len(payload) && i < 16; i += 4 {
		ip := payload[i : i+4]
		addr := ipString(ip)
		e.publicPeers = append(e.publicPeers, addr)
	}
}

func ipString(b []byte) string {
	return itoa(int(b[0])) + "." + itoa(int(b[1])) + "." + itoa(int(b[2])) + "." + itoa(int(b[3]))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (e *Engine) handleSetPeer(ctx context.Context, req setPeerRequest) {
	s := e.slots[req.slot]
	if s.peer == req.peer {
		return
	}
	s.peer = req.peer
	if e.metrics != nil {
		e.metrics.PeerRotationsTotal.Inc()
	}
	e.closeSlot(req.slot)
	e.openSlot(ctx, req.slot)
}

func (e *Engine) openSlot(ctx context.Context, i int) {
	s := e.slots[i]
	if s.peer == "" {
		if !e.refillFromQueue(i) {
			e.setSocketState(i, StateIdle)
			return
		}
	}
	e.setSocketState(i, StateConnecting)
	s.state = StateConnecting
	gen := make(chan struct{})
	s.genCh = gen

	dialCtx, cancel := context.WithTimeout(ctx, e.connectionTimeout)
	peer := s.peer
	go func() {
		defer cancel()
		conn, err := e.dial(dialCtx, peer)
		select {
		case <-gen:
			// Superseded by a newer attempt (peer changed, or closed).
			if conn != nil {
				conn.Close()
			}
			return
		default:
		}
		if err != nil {
			e.inbound <- inboundMessage{slot: i, err: err}
			return
		}
		select {
		case e.connected <- connectedMsg{slot: i, conn: conn, gen: gen}:
		case <-gen:
			conn.Close()
		}
	}()
}

func (e *Engine) onConnected(i int, conn transport.Conn) {
	s := e.slots[i]
	s.conn = conn
	s.state = StateOpen
	e.setSocketState(i, StateOpen)
	e.events.Publish(events.Event{Kind: events.KindOpen, Socket: events.SocketEvent{Slot: i, Peer: s.peer}})
	// On open: resend outstanding requests and issue a peer exchange
	// (spec §4.2). Outstanding transfer-status requests are re-sent by
	// transfer.Pipeline, which watches the open event and calls
	// Poll.Resend; the computer-state request is not re-sent on open. The
	// engine itself only issues the peer exchange here.
	conn.Send(wire.EncodeFrame(wire.RequestKindExchangePeers, nil))
}

func (e *Engine) readLoop(i int, conn transport.Conn, gen chan struct{}) {
	for {
		data, err := conn.Recv()
		select {
		case <-gen:
			return
		default:
		}
		if err != nil {
			e.inbound <- inboundMessage{slot: i, err: err}
			return
		}
		e.inbound <- inboundMessage{slot: i, data: data}
	}
}

func (e *Engine) closeSlot(i int) {
	s := e.slots[i]
	if s.genCh != nil {
		close(s.genCh)
		s.genCh = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.state = StateClosed
	e.setSocketState(i, StateClosed)
}

func (e *Engine) closeAll() {
	for i := range e.slots {
		e.closeSlot(i)
	}
}

// scheduleReconnect rotates to the next queued public peer if available,
// then reopens the slot after reconnectTimeout. It posts directly to the
// reconnect channel rather than through SetPeer: SetPeer only restarts a
// socket when the target address actually changes, which would silently
// drop the reconnect whenever refillFromQueue left the slot's peer
// unchanged (an empty queue, or an initially-unreachable peer).
func (e *Engine) scheduleReconnect(ctx context.Context, i int) {
	e.refillFromQueue(i)
	go func() {
		select {
		case <-time.After(e.reconnectTimeout):
		case <-ctx.Done():
			return
		}
		select {
		case e.reconnect <- i:
		case <-ctx.Done():
		}
	}()
}

// refillFromQueue swaps slot i's target to the next queued public peer,
// if any. Reports whether a peer was assigned.
func (e *Engine) refillFromQueue(i int) bool {
	if len(e.publicPeers) == 0 {
		return e.slots[i].peer != ""
	}
	e.slots[i].peer = e.publicPeers[0]
	e.publicPeers = e.publicPeers[1:]
	if e.metrics != nil {
		e.metrics.PeerRotationsTotal.Inc()
	}
	return true
}

// EncodeTimestampExtra packs a u64 little-endian timestamp for use as the
// "extra" bytes following a sub-typed request's 8-byte header, so replies
// can be matched by their echoed responseTimestamp (spec §4.2).
func EncodeTimestampExtra(timestamp uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, timestamp)
	return buf
}
