// Package ingest is the network-side half of the protocol: one goroutine
// per session reads parsed payloads off Session.Inbound and turns them
// into queued Actions, or answers directly when no game state is
// involved (handshake, keepalive). It never touches world, player, or
// visibility state itself — that is the tick goroutine's exclusive job.
package ingest

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dyewars/server/internal/action"
	"github.com/dyewars/server/internal/admission"
	"github.com/dyewars/server/internal/netio"
	"github.com/dyewars/server/internal/persist"
	"github.com/dyewars/server/internal/wire"
)

// Config carries the handful of protocol-level values ingest needs,
// mirrored from config.ServerConfig/NetworkConfig/AdmissionConfig so this
// package doesn't depend on internal/config directly.
type Config struct {
	ServerVersion    uint16
	ServerMagic      uint32
	HandshakeTimeout time.Duration

	// PacketsPerSecond and PacketBurst bound one session's post-handshake
	// frame rate; exceeding it is treated as a protocol-level abuse
	// signal rather than silently dropped, since a legitimate client
	// never needs to exceed it at 20 Hz tick cadence.
	PacketsPerSecond float64
	PacketBurst      int
}

// Worker pumps one session's inbound frames into actions. Callers spawn
// one Worker.Run per accepted session.
type Worker struct {
	cfg      Config
	actions  *action.Queue
	gate     *admission.Gate
	accounts *persist.AccountRepo
	log      *zap.Logger
}

// New constructs a Worker. gate may be nil to skip failure accounting;
// accounts may be nil to skip guest account registration (tests that
// don't need a database).
func New(cfg Config, actions *action.Queue, gate *admission.Gate, accounts *persist.AccountRepo, log *zap.Logger) *Worker {
	return &Worker{cfg: cfg, actions: actions, gate: gate, accounts: accounts, log: log}
}

// Run reads sess's inbound frames until the session closes or the
// handshake timer expires, translating each into an Action. It returns
// once the session is done being read from; the caller is responsible for
// the session's own lifecycle (registry removal, dead-session notify).
func (w *Worker) Run(sess *netio.Session) {
	log := w.log.With(zap.Uint64("session", sess.ID))
	handshakeDeadline := time.NewTimer(w.cfg.HandshakeTimeout)
	defer handshakeDeadline.Stop()

	limiter := rate.NewLimiter(rate.Limit(w.cfg.PacketsPerSecond), w.cfg.PacketBurst)

	for {
		select {
		case payload := <-sess.Inbound():
			if sess.State() == netio.StateAwaitingHandshake {
				handshakeDeadline.Stop()
				if !w.handleHandshake(sess, payload, log) {
					return
				}
				continue
			}
			if !limiter.Allow() {
				log.Debug("session exceeded packet rate, closing")
				if w.gate != nil {
					w.gate.RecordFailure(sess.IP)
				}
				sess.Close()
				return
			}
			w.dispatch(sess, payload, log)

		case <-handshakeDeadline.C:
			log.Debug("handshake timed out")
			if w.gate != nil {
				w.gate.RecordFailure(sess.IP)
			}
			sess.SetState(netio.StateClosing)
			sess.Close()
			return

		case <-sess.Done():
			return
		}
	}
}

// handleHandshake processes the one frame a pre-handshake session is
// allowed to send. Any other opcode, or a version mismatch, is rejected
// and the session closed. Returns true on success, after which the
// session is live and Run keeps reading; returns false on rejection,
// once the session should no longer be read from.
func (w *Worker) handleHandshake(sess *netio.Session, payload []byte, log *zap.Logger) bool {
	r := wire.NewReader(payload)
	if op := wire.Opcode(r.Opcode()); op != wire.OpHandshakeRequest {
		w.rejectHandshake(sess, 1, "expected handshake", log)
		return false
	}

	req := wire.DecodeHandshakeRequest(r)
	if req.Version != w.cfg.ServerVersion {
		w.rejectHandshake(sess, 2, "unsupported client version", log)
		return false
	}

	sess.QueuePacket(wire.EncodeHandshakeAccepted(w.cfg.ServerVersion, w.cfg.ServerMagic))
	sess.SetState(netio.StateLive)
	sess.RecordPong()

	name := guestName(sess.ID)
	w.actions.Push(action.Login(sess.ID, name))
	if w.accounts != nil {
		go w.registerGuestAccount(name, sess.IP, log)
	}
	return true
}

// registerGuestAccount inserts a row for a newly connected guest, off
// the handshake reply's critical path. There is no credential exchange
// on this wire protocol, so the random-per-session guest name doubles
// as the password; nothing ever authenticates against it later.
func (w *Worker) registerGuestAccount(name, ip string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := w.accounts.Create(ctx, name, name, ip); err != nil {
		log.Debug("guest account registration failed", zap.Error(err))
	}
}

func (w *Worker) rejectHandshake(sess *netio.Session, code uint8, reason string, log *zap.Logger) {
	log.Debug("handshake rejected", zap.Uint8("code", code), zap.String("reason", reason))
	sess.QueuePacket(wire.EncodeHandshakeRejected(code, reason))
	if w.gate != nil {
		w.gate.RecordFailure(sess.IP)
	}
	sess.Close()
}

// dispatch handles one post-handshake frame. Unknown opcodes, and
// payloads whose length does not match wire.OpcodeTable, are a protocol
// error: per spec, a live session with a bad frame is silently dropped
// and closed rather than answered.
func (w *Worker) dispatch(sess *netio.Session, payload []byte, log *zap.Logger) {
	r := wire.NewReader(payload)
	clientID := sess.ID

	op := wire.Opcode(r.Opcode())
	if spec, ok := wire.OpcodeTable[op]; ok && (len(payload) < spec.FixedLen || (!spec.IsVariable && len(payload) != spec.FixedLen)) {
		log.Debug("dropping frame with malformed payload", zap.Uint8("opcode", r.Opcode()), zap.Int("len", len(payload)))
		if w.gate != nil {
			w.gate.RecordFailure(sess.IP)
		}
		sess.Close()
		return
	}

	switch op {
	case wire.OpMoveRequest:
		req := wire.DecodeMoveRequest(r)
		w.actions.Push(action.Move(clientID, req.Direction, req.Facing, 0))

	case wire.OpTurnRequest:
		req := wire.DecodeTurnRequest(r)
		w.actions.Push(action.Turn(clientID, req.Direction))

	case wire.OpChatRequest:
		req := wire.DecodeChatRequest(r)
		w.actions.Push(action.Chat(clientID, req.Channel, req.Text))

	case wire.OpPingRequest:
		sess.RecordPong()
		sess.QueuePacket(wire.EncodePong())

	case wire.OpDisconnectRequest:
		sess.QueuePacket(wire.EncodeDisconnectAck())
		w.actions.Push(action.Logout(clientID))
		sess.Close()

	default:
		log.Debug("dropping frame with unrecognized opcode", zap.Uint8("opcode", r.Opcode()))
		if w.gate != nil {
			w.gate.RecordFailure(sess.IP)
		}
		sess.Close()
	}
}

func guestName(sessionID uint64) string {
	return "Guest" + strconv.FormatUint(sessionID, 10)
}
