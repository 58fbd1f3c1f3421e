package netio

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T, id uint64) *Session {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	return NewSession(server, id, 4, 4, nil, zap.NewNop())
}

func TestRegisterThenAssociateMakesSessionReachableByClientID(t *testing.T) {
	r := NewSessionRegistry()
	sess := newTestSession(t, 1)

	r.Register(sess)
	_, ok := r.Get(42)
	assert.False(t, ok)

	r.AssociatePlayer(42, sess)
	got, ok := r.Get(42)
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestRemoveClearsBothIndices(t *testing.T) {
	r := NewSessionRegistry()
	sess := newTestSession(t, 2)
	r.Register(sess)
	r.AssociatePlayer(7, sess)

	r.Remove(sess)

	_, ok := r.GetBySessionID(2)
	assert.False(t, ok)
	_, ok = r.Get(7)
	assert.False(t, ok)
}

func TestRemoveBySessionIDClearsClientMapping(t *testing.T) {
	r := NewSessionRegistry()
	sess := newTestSession(t, 3)
	r.Register(sess)
	r.AssociatePlayer(9, sess)

	r.RemoveBySessionID(3)

	_, ok := r.Get(9)
	assert.False(t, ok)
}

func TestBroadcastAllVisitsEverySession(t *testing.T) {
	r := NewSessionRegistry()
	for i := uint64(1); i <= 3; i++ {
		sess := newTestSession(t, i)
		r.Register(sess)
		r.AssociatePlayer(i, sess)
	}

	visited := 0
	r.BroadcastAll(func(sess *Session) { visited++ })
	assert.Equal(t, 3, visited)
	assert.Equal(t, 3, r.Count())
}

func TestBroadcastOthersExcludesGivenClient(t *testing.T) {
	r := NewSessionRegistry()
	for i := uint64(1); i <= 3; i++ {
		sess := newTestSession(t, i)
		r.Register(sess)
		r.AssociatePlayer(i, sess)
	}

	var visited []uint64
	r.BroadcastOthers(2, func(sess *Session) {
		visited = append(visited, sess.PlayerID.Load())
	})

	assert.ElementsMatch(t, []uint64{1, 3}, visited)
}

func TestBroadcastCanSafelyCallBackIntoRegistry(t *testing.T) {
	r := NewSessionRegistry()
	sess := newTestSession(t, 5)
	r.Register(sess)
	r.AssociatePlayer(5, sess)

	done := make(chan struct{})
	go func() {
		r.BroadcastAll(func(sess *Session) {
			r.Remove(sess)
		})
		close(done)
	}()
	<-done

	assert.Equal(t, 0, r.Count())
}

func TestReapIdleClosesOnlyStaleSessions(t *testing.T) {
	r := NewSessionRegistry()
	stale := newTestSession(t, 1)
	fresh := newTestSession(t, 2)
	r.Register(stale)
	r.AssociatePlayer(1, stale)
	r.Register(fresh)
	r.AssociatePlayer(2, fresh)

	stale.lastPongAt.Store(time.Now().Add(-time.Minute).UnixNano())

	n := r.ReapIdle(10 * time.Second)

	assert.Equal(t, 1, n)
	assert.True(t, stale.IsClosed())
	assert.False(t, fresh.IsClosed())
}
