package netio

import (
	"sync"
	"time"
)

// SessionRegistry maps client IDs to their live Session and supports
// snapshot-under-lock broadcast helpers, so a slow or misbehaving
// connection can never stall the tick goroutine's dispatch loop — it
// only ever blocks on that session's own bounded outQueue, not on the
// registry's lock.
type SessionRegistry struct {
	mu       sync.RWMutex
	byClient map[uint64]*Session
	bySessID map[uint64]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byClient: make(map[uint64]*Session),
		bySessID: make(map[uint64]*Session),
	}
}

// Register adds sess under its connection ID, not yet associated with any
// player. Call AssociatePlayer once login completes.
func (r *SessionRegistry) Register(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySessID[sess.ID] = sess
}

// AssociatePlayer binds a logged-in client ID to its session, making it
// reachable by Get and the broadcast helpers.
func (r *SessionRegistry) AssociatePlayer(clientID uint64, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess.PlayerID.Store(clientID)
	r.byClient[clientID] = sess
}

// Remove drops sess from both indices.
func (r *SessionRegistry) Remove(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySessID, sess.ID)
	if cid := sess.PlayerID.Load(); cid != 0 {
		delete(r.byClient, cid)
	}
}

// RemoveBySessionID drops whatever session is registered under sessionID,
// if any — for callers that hold only the session ID.
func (r *SessionRegistry) RemoveBySessionID(sessionID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.bySessID[sessionID]
	if !ok {
		return
	}
	delete(r.bySessID, sessionID)
	if cid := sess.PlayerID.Load(); cid != 0 {
		delete(r.byClient, cid)
	}
}

// Get returns the session for a logged-in client ID.
func (r *SessionRegistry) Get(clientID uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byClient[clientID]
	return sess, ok
}

// GetBySessionID returns the session for a raw connection ID, regardless
// of login state.
func (r *SessionRegistry) GetBySessionID(sessionID uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.bySessID[sessionID]
	return sess, ok
}

// Count returns the number of logged-in sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byClient)
}

// BroadcastAll snapshots the current logged-in sessions under the read
// lock, then invokes fn for each outside the lock — fn may safely call
// back into the registry (e.g. Remove on a dead session) without
// deadlocking.
func (r *SessionRegistry) BroadcastAll(fn func(sess *Session)) {
	for _, sess := range r.snapshot() {
		fn(sess)
	}
}

// BroadcastOthers is BroadcastAll excluding excludeClientID.
func (r *SessionRegistry) BroadcastOthers(excludeClientID uint64, fn func(sess *Session)) {
	for _, sess := range r.snapshot() {
		if sess.PlayerID.Load() == excludeClientID {
			continue
		}
		fn(sess)
	}
}

// ReapIdle closes every logged-in session whose last recorded liveness
// is older than threshold, returning the count closed. A session that
// has gone quiet for twice the configured ping interval is assumed
// dead; the reader goroutine on each closed session observes Done and
// unwinds on its own.
func (r *SessionRegistry) ReapIdle(threshold time.Duration) int {
	cutoff := time.Now().Add(-threshold)
	n := 0
	for _, sess := range r.snapshot() {
		if sess.LastPongAt().Before(cutoff) {
			sess.Close()
			n++
		}
	}
	return n
}

func (r *SessionRegistry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byClient))
	for _, sess := range r.byClient {
		out = append(out, sess)
	}
	return out
}
