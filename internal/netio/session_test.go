package netio

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dyewars/server/internal/stats"
	"github.com/dyewars/server/internal/wire"
)

func TestSessionReadLoopDeliversFramesToInbound(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	sess := NewSession(server, 1, 4, 4, nil, zap.NewNop())
	sess.Start()
	defer sess.Close()

	payload := wire.NewWriter(byte(wire.OpMoveRequest))
	payload.WriteU8(0)
	payload.WriteU8(2)

	go wire.WriteFrame(client, payload.Bytes())

	select {
	case got := <-sess.Inbound():
		assert.Equal(t, payload.Bytes(), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}
}

func TestSessionQueuePacketDeliversOverWire(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	sess := NewSession(server, 2, 4, 4, nil, zap.NewNop())
	sess.Start()
	defer sess.Close()

	out := wire.EncodeWelcome(99, 5, 5, 0)
	sess.QueuePacket(out)

	got, err := wire.ReadFrame(client)
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	sess := NewSession(server, 3, 4, 4, nil, zap.NewNop())
	sess.Close()
	sess.Close()
	assert.True(t, sess.IsClosed())
}

func TestSessionStateDefaultsToAwaitingHandshake(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	sess := NewSession(server, 4, 4, 4, nil, zap.NewNop())
	defer sess.Close()
	assert.Equal(t, StateAwaitingHandshake, sess.State())

	sess.SetState(StateLive)
	assert.Equal(t, StateLive, sess.State())
}

func TestSessionWriteLoopRecordsBandwidth(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	sink := stats.New()
	sess := NewSession(server, 6, 4, 4, sink, zap.NewNop())
	sess.Start()
	defer sess.Close()

	out := wire.EncodeWelcome(99, 5, 5, 0)
	sess.QueuePacket(out)
	_, err := wire.ReadFrame(client)
	require.NoError(t, err)

	sink.TickBandwidth() // establishes the window's start time
	time.Sleep(1100 * time.Millisecond)
	sink.TickBandwidth() // rolls the window, now that >1s has elapsed

	snap := sink.Snapshot()
	assert.EqualValues(t, wire.FrameSize(out), snap.BytesOutPerSec)
}

func TestSessionIPIsHostOnlyMatchingAdmissionGateKey(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		acceptCh <- conn
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-acceptCh
	defer server.Close()

	sess := NewSession(server, 7, 4, 4, nil, zap.NewNop())
	defer sess.Close()

	// remoteIP strips the port; the admission gate and NotifyDead's
	// RemoveConnection both key on this same host-only form, so they
	// must agree with AcceptLoop's own ip := remoteIP(conn) lookup.
	assert.Equal(t, remoteIP(server), sess.IP)
	assert.NotContains(t, sess.IP, ":")
}

func TestRecordPongUpdatesLastPongAt(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	sess := NewSession(server, 5, 4, 4, nil, zap.NewNop())
	defer sess.Close()

	before := sess.LastPongAt()
	time.Sleep(time.Millisecond)
	sess.RecordPong()
	assert.True(t, sess.LastPongAt().After(before))
}
