package netio

import (
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dyewars/server/internal/admission"
	"github.com/dyewars/server/internal/stats"
)

// Server owns the listening socket and turns accepted connections into
// registered Sessions. It does no protocol or game-state work itself:
// each Session's Inbound channel is read by an ingest.Worker, which
// handles the handshake and queues actions for the tick goroutine.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64
	inSize   int
	outSize  int
	gate     *admission.Gate
	sink     *stats.Sink
	log      *zap.Logger
	closeCh  chan struct{}
}

// NewServer binds bindAddr and prepares (but does not yet run) the accept
// loop. gate may be nil, in which case admission checks are skipped. sink
// may be nil, in which case accepted sessions record no bandwidth stats.
func NewServer(bindAddr string, inSize, outSize int, gate *admission.Gate, sink *stats.Sink, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("netio: listen %s: %w", bindAddr, err)
	}
	return &Server{
		listener: ln,
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		inSize:   inSize,
		outSize:  outSize,
		gate:     gate,
		sink:     sink,
		log:      log,
		closeCh:  make(chan struct{}),
	}, nil
}

// AcceptLoop accepts connections until Shutdown is called. Each accepted
// connection is checked against the admission gate, wrapped in a Session,
// started, and handed off on NewSessions for the caller to register.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
				s.log.Error("accept failed", zap.Error(err))
				continue
			}
		}

		ip := remoteIP(conn)
		if s.gate != nil && !s.gate.CanConnect(ip) {
			s.log.Debug("connection rejected by admission gate", zap.String("ip", ip))
			conn.Close()
			continue
		}
		if s.gate != nil {
			s.gate.AddConnection(ip)
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.inSize, s.outSize, s.sink, s.log)
		sess.Start()

		s.log.Info("connection accepted", zap.Uint64("session", id), zap.String("ip", ip))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("new-connection queue full, dropping connection", zap.Uint64("session", id))
			sess.Close()
		}
	}
}

// NewSessions yields sessions as they're accepted, for the caller to
// register with a SessionRegistry.
func (s *Server) NewSessions() <-chan *Session { return s.newConns }

// NotifyDead records that sessionID's connection has ended, releasing its
// admission-gate slot. ip is the session's remote address as recorded at
// accept time.
func (s *Server) NotifyDead(sessionID uint64, ip string) {
	if s.gate != nil {
		s.gate.RemoveConnection(ip)
	}
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions yields session IDs as their connections end.
func (s *Server) DeadSessions() <-chan uint64 { return s.deadCh }

// Shutdown stops the accept loop and closes the listening socket.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
