// Package netio implements the per-connection framing state machine
// (Session) and the registry that tracks all live sessions.
//
// Network I/O runs in dedicated goroutines per session; game state is only
// ever touched from the tick goroutine, reached indirectly via
// action.Queue.
package netio

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dyewars/server/internal/stats"
	"github.com/dyewars/server/internal/wire"
)

// State is a session's position in the framing lifecycle.
type State int32

const (
	StateAwaitingHandshake State = iota
	StateLive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "AwaitingHandshake"
	case StateLive:
		return "Live"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Session is one client connection: a state machine over the wire
// protocol's frames and a single-writer outbound queue that guarantees
// per-session ordering. The handshake timer is run by the Inbound
// reader (ingest.Worker), not by Session.
type Session struct {
	ID   uint64
	conn net.Conn

	state atomic.Int32

	PlayerID atomic.Uint64 // 0 until login completes

	inQueue  chan []byte // the session's ingest worker reads parsed payloads from here
	outQueue chan []byte // writer goroutine reads payloads to send from here

	IP string

	lastPongAt atomic.Int64 // unix nanos, updated whenever the client proves liveness

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	sink *stats.Sink // may be nil; bandwidth accounting is best-effort

	log *zap.Logger
}

// NewSession wraps an accepted connection. The caller is responsible for
// calling Start once the session should begin reading/writing. sink may
// be nil, in which case outbound bandwidth is simply not recorded (tests
// that don't need it pass nil).
func NewSession(conn net.Conn, id uint64, inSize, outSize int, sink *stats.Sink, log *zap.Logger) *Session {
	s := &Session{
		ID:       id,
		conn:     conn,
		inQueue:  make(chan []byte, inSize),
		outQueue: make(chan []byte, outSize),
		IP:       remoteIP(conn),
		closeCh:  make(chan struct{}),
		sink:     sink,
		log:      log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(StateAwaitingHandshake))
	s.lastPongAt.Store(time.Now().UnixNano())
	return s
}

func (s *Session) State() State       { return State(s.state.Load()) }
func (s *Session) SetState(st State) { s.state.Store(int32(st)) }

// Start launches the session's reader and writer goroutines. Call once.
// Server.AcceptLoop starts a session before handing it off for
// registration; frames read in the meantime wait in the inbound queue.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Inbound returns the channel of parsed (but not yet dispatched) packet
// payloads, consumed by the session's ingest.Worker.
func (s *Session) Inbound() <-chan []byte {
	return s.inQueue
}

// Done returns a channel that closes once the session has been closed,
// for a reader of Inbound to stop waiting rather than block forever.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

// QueuePacket appends an already-serialized wire payload (see
// internal/wire's Encode* helpers) to the outbound queue. Non-blocking: a
// full queue means a slow client, and the session is disconnected rather
// than let memory grow unbounded.
func (s *Session) QueuePacket(payload []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.outQueue <- payload:
	default:
		s.log.Warn("outbound queue full, disconnecting slow client")
		s.Close()
	}
}

// RecordPong marks that the client has proven liveness (a Ping_Request or
// any other traffic), resetting the staleness clock that
// SessionRegistry.ReapIdle checks against.
func (s *Session) RecordPong() {
	s.lastPongAt.Store(time.Now().UnixNano())
}

// LastPongAt returns when the client was last heard from.
func (s *Session) LastPongAt() time.Time {
	return time.Unix(0, s.lastPongAt.Load())
}

// Close shuts the session down exactly once: closes the socket and signals
// both goroutines to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(StateClosed)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool { return s.closed.Load() }

// readLoop reads frames strictly per spec.md 4.8: 4-byte header, magic and
// size validation, then exactly `size` payload bytes. On any framing error
// the session is closed; the reader of Inbound sees Done and returns, and
// its caller runs the disconnect cleanup.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		payload, err := wire.ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("frame read error", zap.Error(err))
			}
			return
		}

		select {
		case s.inQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop is the session's single writer: at most one write in flight at
// a time, guaranteeing per-session outbound ordering.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case payload := <-s.outQueue:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := wire.WriteFrame(s.conn, payload); err != nil {
				if !s.closed.Load() {
					s.log.Debug("frame write error", zap.Error(err))
				}
				return
			}
			if s.sink != nil {
				s.sink.RecordBytesOut(wire.FrameSize(payload))
			}
		case <-s.closeCh:
			return
		}
	}
}
